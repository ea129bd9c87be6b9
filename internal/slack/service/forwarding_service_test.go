package service

import (
	"context"
	"errors"
	"testing"

	"relay_bot/internal/slack/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testReportChannel = "C_REPORT"

func newForwardingFixture() (*ForwardingServiceImpl, *fakeRelayRecordRepository, *fakeChatClient) {
	repo := &fakeRelayRecordRepository{}
	chat := newFakeChatClient()
	identity := NewIdentityService(chat, 0)
	svc := NewForwardingService(repo, chat, identity, testReportChannel)
	return svc, repo, chat
}

func TestBeginCreatesRecordAndPrompt(t *testing.T) {
	svc, repo, chat := newForwardingFixture()
	chat.nextTS = "200.000001"

	if err := svc.Begin(context.Background(), "D100", "100.000001", "? I saw something"); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	if len(chat.prompts) != 1 || chat.prompts[0] != "D100" {
		t.Fatalf("expected one selection prompt in D100, got %v", chat.prompts)
	}

	record := repo.byDMTS("100.000001")
	if record == nil {
		t.Fatal("relay record was not persisted")
	}
	if record.SelectionTS != "200.000001" {
		t.Errorf("selection_ts = %q, want %q", record.SelectionTS, "200.000001")
	}
	if record.Content != "I saw something" {
		t.Errorf("content = %q, want prefix stripped %q", record.Content, "I saw something")
	}
	if record.Forwarded() {
		t.Error("fresh record must not be in forwarded state")
	}
}

func TestSaveSelectionRejectsUnknownValue(t *testing.T) {
	svc, repo, _ := newForwardingFixture()
	repo.records = []*models.RelayRecord{{
		ID: primitive.NewObjectID(), DMTS: "100.1", DMChannel: "D100", SelectionTS: "200.1",
	}}

	if err := svc.SaveSelection(context.Background(), "200.1", "loudly"); err == nil {
		t.Fatal("expected error for unknown selection value")
	}
	if repo.records[0].Selection != "" {
		t.Errorf("selection = %q, want empty after rejected value", repo.records[0].Selection)
	}

	if err := svc.SaveSelection(context.Background(), "200.1", models.SelectionAnonymous); err != nil {
		t.Fatalf("SaveSelection returned error: %v", err)
	}
	if repo.records[0].Selection != models.SelectionAnonymous {
		t.Errorf("selection = %q, want %q", repo.records[0].Selection, models.SelectionAnonymous)
	}
}

func TestSubmitWithoutSelectionDoesNotForward(t *testing.T) {
	svc, repo, chat := newForwardingFixture()
	repo.records = []*models.RelayRecord{{
		ID: primitive.NewObjectID(), DMTS: "100.1", DMChannel: "D100", SelectionTS: "200.1",
	}}

	err := svc.Submit(context.Background(), "D100", "200.1", "U1")
	if !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}

	if repo.records[0].Forwarded() {
		t.Error("forwarded_ts must stay empty when no selection was made")
	}
	if len(chat.posted) != 1 || chat.posted[0].Channel != "D100" {
		t.Fatalf("expected only the re-prompt in D100, got %v", chat.posted)
	}
	for _, m := range chat.posted {
		if m.Channel == testReportChannel {
			t.Error("nothing may reach the report channel without a selection")
		}
	}
}

func TestSubmitAnonymousForwardsCurrentContent(t *testing.T) {
	svc, repo, chat := newForwardingFixture()
	repo.records = []*models.RelayRecord{{
		ID: primitive.NewObjectID(), DMTS: "100.1", DMChannel: "D100", SelectionTS: "200.1",
		Selection: models.SelectionAnonymous, Content: "? stale cached text",
	}}
	// 提交时取现场文本，而不是创建时缓存的内容
	chat.messages[messageKey("D100", "100.1")] = &ChatMessage{TS: "100.1", User: "U1", Text: "? I saw something"}
	chat.nextTS = "300.1"

	if err := svc.Submit(context.Background(), "D100", "200.1", "U1"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if len(chat.posted) != 1 {
		t.Fatalf("expected exactly one forwarded message, got %d", len(chat.posted))
	}
	forwarded := chat.posted[0]
	if forwarded.Channel != testReportChannel {
		t.Errorf("forwarded to %q, want %q", forwarded.Channel, testReportChannel)
	}
	if forwarded.Text != "I saw something" {
		t.Errorf("forwarded text = %q, want %q", forwarded.Text, "I saw something")
	}
	if forwarded.Opts.Username != "" || forwarded.Opts.IconURL != "" {
		t.Error("anonymous forward must not carry sender identity")
	}

	record := repo.byDMTS("100.1")
	if record.ForwardedTS != "300.1" {
		t.Errorf("forwarded_ts = %q, want %q", record.ForwardedTS, "300.1")
	}
	if record.Selection != "" {
		t.Errorf("selection = %q, want cleared after submission", record.Selection)
	}

	if len(chat.reactionsAdded) != 1 || chat.reactionsAdded[0].Name != markerPending {
		t.Errorf("expected pending marker on forwarded message, got %v", chat.reactionsAdded)
	}
	if len(chat.promptUpdates) != 1 || !chat.promptUpdates[0].Anonymous {
		t.Errorf("expected prompt marked submitted anonymously, got %v", chat.promptUpdates)
	}
	if len(chat.ephemerals) != 1 || chat.ephemerals[0].User != "U1" {
		t.Errorf("expected confirmation to the sender, got %v", chat.ephemerals)
	}
}

func TestSubmitWithUsernameCarriesIdentity(t *testing.T) {
	svc, repo, chat := newForwardingFixture()
	repo.records = []*models.RelayRecord{{
		ID: primitive.NewObjectID(), DMTS: "100.1", DMChannel: "D100", SelectionTS: "200.1",
		Selection: models.SelectionWithUsername,
	}}
	chat.messages[messageKey("D100", "100.1")] = &ChatMessage{TS: "100.1", User: "U1", Text: "report text"}
	chat.profiles["U1"] = &UserProfile{DisplayName: "Alice", AvatarURL: "https://img/a.png"}

	if err := svc.Submit(context.Background(), "D100", "200.1", "U1"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if len(chat.posted) != 1 {
		t.Fatalf("expected one forwarded message, got %d", len(chat.posted))
	}
	opts := chat.posted[0].Opts
	if opts.Username != "Alice" || opts.IconURL != "https://img/a.png" {
		t.Errorf("forward identity = (%q, %q), want sender profile", opts.Username, opts.IconURL)
	}
	if chat.promptUpdates[0].Anonymous {
		t.Error("prompt terminal text must reflect the with-username choice")
	}
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	svc, repo, chat := newForwardingFixture()
	repo.records = []*models.RelayRecord{{
		ID: primitive.NewObjectID(), DMTS: "100.1", DMChannel: "D100", SelectionTS: "200.1",
		ForwardedTS: "300.1",
	}}

	err := svc.Submit(context.Background(), "D100", "200.1", "U1")
	if !errors.Is(err, ErrAlreadyForwarded) {
		t.Fatalf("err = %v, want ErrAlreadyForwarded", err)
	}

	if len(chat.posted) != 0 {
		t.Errorf("duplicate submit must not forward again, got %v", chat.posted)
	}
	if repo.byDMTS("100.1").ForwardedTS != "300.1" {
		t.Error("forwarded_ts must not change on duplicate submit")
	}
	if len(chat.ephemerals) != 1 {
		t.Errorf("expected a single notice to the sender, got %v", chat.ephemerals)
	}
}

func TestSubmitUnknownPromptIsHandledQuietly(t *testing.T) {
	svc, _, chat := newForwardingFixture()

	if err := svc.Submit(context.Background(), "D100", "999.9", "U1"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if len(chat.posted) != 0 {
		t.Errorf("nothing may be forwarded for an unknown prompt, got %v", chat.posted)
	}
	if len(chat.ephemerals) != 1 {
		t.Errorf("expected a notice about the stale prompt, got %v", chat.ephemerals)
	}
}

func TestSubmitFailsWhenSourceMessageGone(t *testing.T) {
	svc, repo, _ := newForwardingFixture()
	repo.records = []*models.RelayRecord{{
		ID: primitive.NewObjectID(), DMTS: "100.1", DMChannel: "D100", SelectionTS: "200.1",
		Selection: models.SelectionAnonymous,
	}}
	// 私聊消息已不存在，FetchMessage 返回 (nil, nil)

	if err := svc.Submit(context.Background(), "D100", "200.1", "U1"); err == nil {
		t.Fatal("expected error when the source message no longer exists")
	}
	if repo.byDMTS("100.1").Forwarded() {
		t.Error("record must not enter forwarded state when content fetch fails")
	}
}
