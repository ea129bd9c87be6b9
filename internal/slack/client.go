package slack

import (
	"context"
	"fmt"
	"strings"

	"relay_bot/internal/slack/service"

	"github.com/slack-go/slack"
)

// 交互组件 action_id
const (
	actionSelectForwarding = "report_forwarding"
	actionSubmitForwarding = "submit_forwarding"
)

// ChatClientImpl service.ChatClient 的 Slack Web API 实现
type ChatClientImpl struct {
	api *slack.Client
}

// NewChatClient 创建聊天传输适配器
func NewChatClient(api *slack.Client) *ChatClientImpl {
	return &ChatClientImpl{api: api}
}

// PostMessage 发送消息，返回新消息的时间戳
func (c *ChatClientImpl) PostMessage(ctx context.Context, channel, text string, opts *service.PostOptions) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channel, buildMsgOptions(text, opts)...)
	if err != nil {
		return "", fmt.Errorf("failed to post message to %s: %w", channel, err)
	}
	return ts, nil
}

// PostEphemeral 向单个用户发送临时消息
func (c *ChatClientImpl) PostEphemeral(ctx context.Context, channel, user, text string, opts *service.PostOptions) error {
	if _, err := c.api.PostEphemeralContext(ctx, channel, user, buildMsgOptions(text, opts)...); err != nil {
		return fmt.Errorf("failed to post ephemeral to %s in %s: %w", user, channel, err)
	}
	return nil
}

// PostSelectionPrompt 发送身份选择提示（下拉选择 + 提交按钮）
func (c *ChatClientImpl) PostSelectionPrompt(ctx context.Context, channel string) (string, error) {
	prompt := slack.NewTextBlockObject(slack.MarkdownType,
		"Do you want to forward this report anonymously or with your username?", false, false)

	options := []*slack.OptionBlockObject{
		slack.NewOptionBlockObject("anonymous",
			slack.NewTextBlockObject(slack.PlainTextType, "Forward Anonymously", false, false), nil),
		slack.NewOptionBlockObject("with_username",
			slack.NewTextBlockObject(slack.PlainTextType, "Forward with Username", false, false), nil),
	}
	selectElement := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic,
		slack.NewTextBlockObject(slack.PlainTextType, "Choose an option", false, false),
		actionSelectForwarding, options...)

	submitButton := slack.NewButtonBlockElement(actionSubmitForwarding, "submit",
		slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false))
	submitButton.Style = slack.StylePrimary

	_, ts, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText("Select how this message should be forwarded", false),
		slack.MsgOptionBlocks(
			slack.NewSectionBlock(prompt, nil, slack.NewAccessory(selectElement)),
			slack.NewActionBlock("", submitButton),
		),
	)
	if err != nil {
		return "", fmt.Errorf("failed to post selection prompt: %w", err)
	}
	return ts, nil
}

// MarkPromptSubmitted 把选择提示改写为终态「已提交」展示
func (c *ChatClientImpl) MarkPromptSubmitted(ctx context.Context, channel, ts string, anonymous bool) error {
	text := "This report has been submitted."
	if anonymous {
		text = "This report has been submitted anonymously."
	}

	_, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts,
		slack.MsgOptionText("Report submitted", false),
		slack.MsgOptionBlocks(
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to update prompt %s: %w", ts, err)
	}
	return nil
}

// FetchMessage 按时间戳取回单条消息。历史接口取不到时回退到线程回复
// 接口（目标可能是线程内消息）；两处都取不到返回 (nil, nil)。
func (c *ChatClientImpl) FetchMessage(ctx context.Context, channel, ts string) (*service.ChatMessage, error) {
	history, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Latest:    ts,
		Oldest:    ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history of %s: %w", channel, err)
	}
	if len(history.Messages) > 0 && history.Messages[0].Timestamp == ts {
		return toChatMessage(&history.Messages[0]), nil
	}

	replies, _, _, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: ts,
		Oldest:    ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		// 历史接口已确认频道可达，这里的失败意味着消息不存在
		return nil, nil
	}
	if len(replies) > 0 && replies[0].Timestamp == ts {
		return toChatMessage(&replies[0]), nil
	}
	return nil, nil
}

// AddReaction 添加表情标记
func (c *ChatClientImpl) AddReaction(ctx context.Context, channel, ts, name string) error {
	if err := c.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channel, ts)); err != nil {
		return fmt.Errorf("failed to add reaction %s: %w", name, err)
	}
	return nil
}

// RemoveReaction 移除表情标记
func (c *ChatClientImpl) RemoveReaction(ctx context.Context, channel, ts, name string) error {
	if err := c.api.RemoveReactionContext(ctx, name, slack.NewRefToMessage(channel, ts)); err != nil {
		return fmt.Errorf("failed to remove reaction %s: %w", name, err)
	}
	return nil
}

// ReactionCounts 取回消息当前的表情计数
func (c *ChatClientImpl) ReactionCounts(ctx context.Context, channel, ts string) (map[string]int, error) {
	reactions, err := c.api.GetReactionsContext(ctx, slack.NewRefToMessage(channel, ts), slack.NewGetReactionsParameters())
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}

	counts := make(map[string]int, len(reactions))
	for _, r := range reactions {
		counts[r.Name] = r.Count
	}
	return counts, nil
}

// FetchUserProfile 取回用户展示资料
func (c *ChatClientImpl) FetchUserProfile(ctx context.Context, userID string) (*service.UserProfile, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	return &service.UserProfile{
		DisplayName: user.RealName,
		AvatarURL:   user.Profile.Image512,
	}, nil
}

// ChannelMembers 列出频道全部成员（翻页聚合）
func (c *ChatClientImpl) ChannelMembers(ctx context.Context, channel string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		page, next, err := c.api.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
			ChannelID: channel,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list members of %s: %w", channel, err)
		}
		members = append(members, page...)
		if next == "" {
			return members, nil
		}
		cursor = next
	}
}

// OpenGroupConversation 创建或复用一个多人私聊
func (c *ChatClientImpl) OpenGroupConversation(ctx context.Context, userIDs []string) (string, error) {
	conversation, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: userIDs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open conversation with %v: %w", userIDs, err)
	}
	return conversation.ID, nil
}

// InviteToConversation 邀请用户进入频道；已在频道内不算错误
func (c *ChatClientImpl) InviteToConversation(ctx context.Context, channel string, userIDs []string) error {
	if _, err := c.api.InviteUsersToConversationContext(ctx, channel, userIDs...); err != nil {
		if strings.Contains(err.Error(), "already_in_channel") {
			return nil
		}
		return fmt.Errorf("failed to invite %v to %s: %w", userIDs, channel, err)
	}
	return nil
}

func buildMsgOptions(text string, opts *service.PostOptions) []slack.MsgOption {
	msgOpts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if opts == nil {
		return msgOpts
	}

	if opts.ThreadTS != "" {
		msgOpts = append(msgOpts, slack.MsgOptionTS(opts.ThreadTS))
	}
	if opts.Username != "" {
		msgOpts = append(msgOpts, slack.MsgOptionUsername(opts.Username))
	}
	if opts.IconURL != "" {
		msgOpts = append(msgOpts, slack.MsgOptionIconURL(opts.IconURL))
	}
	if len(opts.Attachments) > 0 {
		attachments := make([]slack.Attachment, 0, len(opts.Attachments))
		for _, a := range opts.Attachments {
			attachments = append(attachments, slack.Attachment{
				Fallback: a.Fallback,
				Title:    a.Title,
				Text:     a.Text,
				ImageURL: a.ImageURL,
			})
		}
		msgOpts = append(msgOpts, slack.MsgOptionAttachments(attachments...))
	}
	return msgOpts
}

func toChatMessage(m *slack.Message) *service.ChatMessage {
	return &service.ChatMessage{
		TS:      m.Timestamp,
		User:    m.User,
		Text:    m.Text,
		SubType: m.SubType,
	}
}
