package slack

import (
	"context"

	"relay_bot/internal/logger"
	"relay_bot/internal/slack/service"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// handleMessageEvent 消息事件：规范化后交给中继关联器
func (b *Bot) handleMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) error {
	normalized := normalizeMessageEvent(ev, b.botUserID)
	if normalized == nil {
		logger.L().Debugf("Message event skipped: channel=%s subtype=%q", ev.Channel, ev.SubType)
		return nil
	}
	return b.relay.HandleMessage(ctx, normalized)
}

// handleReactionAdded 表情添加事件
func (b *Bot) handleReactionAdded(ctx context.Context, ev *slackevents.ReactionAddedEvent) error {
	normalized := normalizeReactionAdded(ev)
	if normalized == nil {
		return nil
	}
	return b.reactions.HandleAdded(ctx, normalized)
}

// handleReactionRemoved 表情移除事件
func (b *Bot) handleReactionRemoved(ctx context.Context, ev *slackevents.ReactionRemovedEvent) error {
	normalized := normalizeReactionRemoved(ev)
	if normalized == nil {
		return nil
	}
	return b.reactions.HandleRemoved(ctx, normalized)
}

// handleInteraction 交互回调：身份选择与提交按钮
func (b *Bot) handleInteraction(ctx context.Context, cb *slack.InteractionCallback) error {
	switch ev := normalizeInteraction(cb).(type) {
	case *service.InteractionSelected:
		return b.forwarding.SaveSelection(ctx, ev.PromptTS, ev.Value)
	case *service.InteractionSubmitted:
		return b.forwarding.Submit(ctx, ev.Channel, ev.PromptTS, ev.User)
	default:
		logger.L().Debugf("Interaction callback skipped: type=%s", cb.Type)
		return nil
	}
}

// respondEphemeral 用临时消息回应斜杠命令
func (b *Bot) respondEphemeral(ctx context.Context, cmd *slack.SlashCommand, text string) {
	if err := b.chat.PostEphemeral(ctx, cmd.ChannelID, cmd.UserID, text, nil); err != nil {
		logger.L().Errorf("Failed to respond to command %s: %v", cmd.Command, err)
	}
}
