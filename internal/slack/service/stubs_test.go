package service

import (
	"context"
	"errors"
	"fmt"

	"relay_bot/internal/slack/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errTransport = errors.New("transport failure")

// fakeRelayRecordRepository 内存实现，测试用
type fakeRelayRecordRepository struct {
	records []*models.RelayRecord
}

func (f *fakeRelayRecordRepository) Create(ctx context.Context, record *models.RelayRecord) error {
	clone := *record
	if clone.ID.IsZero() {
		clone.ID = primitive.NewObjectID()
	}
	f.records = append(f.records, &clone)
	return nil
}

func (f *fakeRelayRecordRepository) FindByAnyTS(ctx context.Context, ts string) (*models.RelayRecord, error) {
	for _, r := range f.records {
		if r.DMTS == ts || r.SelectionTS == ts || (r.ForwardedTS != "" && r.ForwardedTS == ts) {
			clone := *r
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeRelayRecordRepository) SaveSelection(ctx context.Context, selectionTS, selection string) error {
	for _, r := range f.records {
		if r.SelectionTS == selectionTS {
			r.Selection = selection
			return nil
		}
	}
	return fmt.Errorf("relay record not found for selection_ts %s", selectionTS)
}

func (f *fakeRelayRecordRepository) FinishForward(ctx context.Context, dmTS, forwardedTS string) error {
	for _, r := range f.records {
		if r.DMTS == dmTS {
			r.ForwardedTS = forwardedTS
			r.Selection = ""
			return nil
		}
	}
	return fmt.Errorf("relay record not found for dm_ts %s", dmTS)
}

func (f *fakeRelayRecordRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRelayRecordRepository) IterateAll(ctx context.Context, fn func(*models.RelayRecord) error) error {
	snapshot := make([]*models.RelayRecord, len(f.records))
	copy(snapshot, f.records)
	for _, r := range snapshot {
		clone := *r
		if err := fn(&clone); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRelayRecordRepository) EnsureIndexes(ctx context.Context) error { return nil }

func (f *fakeRelayRecordRepository) byDMTS(dmTS string) *models.RelayRecord {
	for _, r := range f.records {
		if r.DMTS == dmTS {
			return r
		}
	}
	return nil
}

// sentMessage 一次出站消息调用
type sentMessage struct {
	Channel string
	User    string // 仅临时消息
	Text    string
	Opts    *PostOptions
}

// reactionCall 一次表情增删调用
type reactionCall struct {
	Channel string
	TS      string
	Name    string
}

// promptUpdate 一次选择提示终态改写
type promptUpdate struct {
	Channel   string
	TS        string
	Anonymous bool
}

// fakeChatClient 记录所有传输调用，测试用
type fakeChatClient struct {
	posted           []sentMessage
	ephemerals       []sentMessage
	prompts          []string // 发送选择提示的频道
	promptUpdates    []promptUpdate
	reactionsAdded   []reactionCall
	reactionsRemoved []reactionCall

	nextTS        string                  // PostMessage / PostSelectionPrompt 返回的时间戳
	messages      map[string]*ChatMessage // key: channel|ts
	fetchErrs     map[string]error
	counts        map[string]int
	countsErr     error
	profiles      map[string]*UserProfile
	profileCalls  int
	members       map[string][]string
	conversations [][]string
	invites       map[string][]string
	postErr       error
	removeErr     error
}

func newFakeChatClient() *fakeChatClient {
	return &fakeChatClient{
		nextTS:    "9000.000001",
		messages:  make(map[string]*ChatMessage),
		fetchErrs: make(map[string]error),
		counts:    make(map[string]int),
		profiles:  make(map[string]*UserProfile),
		members:   make(map[string][]string),
		invites:   make(map[string][]string),
	}
}

var _ ChatClient = (*fakeChatClient)(nil)

func messageKey(channel, ts string) string { return channel + "|" + ts }

func (f *fakeChatClient) PostMessage(ctx context.Context, channel, text string, opts *PostOptions) (string, error) {
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posted = append(f.posted, sentMessage{Channel: channel, Text: text, Opts: opts})
	return f.nextTS, nil
}

func (f *fakeChatClient) PostEphemeral(ctx context.Context, channel, user, text string, opts *PostOptions) error {
	f.ephemerals = append(f.ephemerals, sentMessage{Channel: channel, User: user, Text: text, Opts: opts})
	return nil
}

func (f *fakeChatClient) PostSelectionPrompt(ctx context.Context, channel string) (string, error) {
	if f.postErr != nil {
		return "", f.postErr
	}
	f.prompts = append(f.prompts, channel)
	return f.nextTS, nil
}

func (f *fakeChatClient) MarkPromptSubmitted(ctx context.Context, channel, ts string, anonymous bool) error {
	f.promptUpdates = append(f.promptUpdates, promptUpdate{Channel: channel, TS: ts, Anonymous: anonymous})
	return nil
}

func (f *fakeChatClient) FetchMessage(ctx context.Context, channel, ts string) (*ChatMessage, error) {
	if err, ok := f.fetchErrs[messageKey(channel, ts)]; ok {
		return nil, err
	}
	return f.messages[messageKey(channel, ts)], nil
}

func (f *fakeChatClient) AddReaction(ctx context.Context, channel, ts, name string) error {
	f.reactionsAdded = append(f.reactionsAdded, reactionCall{Channel: channel, TS: ts, Name: name})
	return nil
}

func (f *fakeChatClient) RemoveReaction(ctx context.Context, channel, ts, name string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.reactionsRemoved = append(f.reactionsRemoved, reactionCall{Channel: channel, TS: ts, Name: name})
	return nil
}

func (f *fakeChatClient) ReactionCounts(ctx context.Context, channel, ts string) (map[string]int, error) {
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	return f.counts, nil
}

func (f *fakeChatClient) FetchUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	f.profileCalls++
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return profile, nil
}

func (f *fakeChatClient) ChannelMembers(ctx context.Context, channel string) ([]string, error) {
	return f.members[channel], nil
}

func (f *fakeChatClient) OpenGroupConversation(ctx context.Context, userIDs []string) (string, error) {
	f.conversations = append(f.conversations, userIDs)
	return "G999", nil
}

func (f *fakeChatClient) InviteToConversation(ctx context.Context, channel string, userIDs []string) error {
	f.invites[channel] = append(f.invites[channel], userIDs...)
	return nil
}
