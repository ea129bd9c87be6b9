package slack

import (
	"relay_bot/internal/slack/service"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// 消息事件 subtype
const (
	subtypeMessageChanged = "message_changed"
	subtypeMessageDeleted = "message_deleted"
	subtypeBotMessage     = "bot_message"
)

// normalizeMessageEvent 把平台消息事件的联合结构规范化为带标签的变体。
// 不需要处理的事件（机器人自身消息、未知 subtype）返回 nil。
func normalizeMessageEvent(ev *slackevents.MessageEvent, botUserID string) service.InboundEvent {
	// 机器人发出的消息及其变更一律跳过：中继线程的根消息总是 bot_message，
	// 线程内回复被删改时顶层事件会表现为 bot 消息的更新
	if ev.BotID != "" || ev.SubType == subtypeBotMessage {
		return nil
	}
	if botUserID != "" && ev.User == botUserID {
		return nil
	}
	if ev.Message != nil && (ev.Message.BotID != "" || ev.Message.SubType == subtypeBotMessage) {
		return nil
	}

	switch ev.SubType {
	case "":
		return &service.NormalMessage{
			Channel:     ev.Channel,
			ChannelType: ev.ChannelType,
			TS:          ev.TimeStamp,
			ThreadTS:    ev.ThreadTimeStamp,
			User:        ev.User,
			Text:        ev.Text,
			Attachments: convertAttachments(ev.Attachments),
		}

	case subtypeMessageChanged:
		if ev.Message == nil || ev.PreviousMessage == nil {
			return nil
		}
		return &service.EditedMessage{
			Channel:     ev.Channel,
			ChannelType: ev.ChannelType,
			TS:          ev.Message.TimeStamp,
			ThreadTS:    ev.Message.ThreadTimeStamp,
			User:        ev.Message.User,
			Text:        ev.Message.Text,
			PrevText:    ev.PreviousMessage.Text,
		}

	case subtypeMessageDeleted:
		if ev.PreviousMessage == nil {
			return nil
		}
		return &service.DeletedMessage{
			Channel:     ev.Channel,
			ChannelType: ev.ChannelType,
			DeletedTS:   ev.PreviousMessage.TimeStamp,
			ThreadTS:    ev.PreviousMessage.ThreadTimeStamp,
			User:        ev.PreviousMessage.User,
		}

	default:
		return nil
	}
}

// normalizeReactionAdded 规范化表情添加事件；非消息目标返回 nil
func normalizeReactionAdded(ev *slackevents.ReactionAddedEvent) *service.ReactionAdded {
	if ev.Item.Type != "message" {
		return nil
	}
	return &service.ReactionAdded{
		Channel:  ev.Item.Channel,
		ItemTS:   ev.Item.Timestamp,
		User:     ev.User,
		Reaction: ev.Reaction,
	}
}

// normalizeReactionRemoved 规范化表情移除事件；非消息目标返回 nil
func normalizeReactionRemoved(ev *slackevents.ReactionRemovedEvent) *service.ReactionRemoved {
	if ev.Item.Type != "message" {
		return nil
	}
	return &service.ReactionRemoved{
		Channel:  ev.Item.Channel,
		ItemTS:   ev.Item.Timestamp,
		User:     ev.User,
		Reaction: ev.Reaction,
	}
}

// normalizeInteraction 规范化交互回调（身份选择下拉与提交按钮）
func normalizeInteraction(cb *slack.InteractionCallback) service.InboundEvent {
	if cb.Type != slack.InteractionTypeBlockActions {
		return nil
	}
	if len(cb.ActionCallback.BlockActions) == 0 {
		return nil
	}

	action := cb.ActionCallback.BlockActions[0]
	switch action.ActionID {
	case actionSelectForwarding:
		return &service.InteractionSelected{
			Channel:  cb.Channel.ID,
			PromptTS: cb.Container.MessageTs,
			User:     cb.User.ID,
			Value:    action.SelectedOption.Value,
		}
	case actionSubmitForwarding:
		return &service.InteractionSubmitted{
			Channel:  cb.Channel.ID,
			PromptTS: cb.Container.MessageTs,
			User:     cb.User.ID,
		}
	default:
		return nil
	}
}

func convertAttachments(attachments []slack.Attachment) []service.Attachment {
	if len(attachments) == 0 {
		return nil
	}
	converted := make([]service.Attachment, 0, len(attachments))
	for _, a := range attachments {
		converted = append(converted, service.Attachment{
			Fallback: a.Fallback,
			Title:    a.Title,
			Text:     a.Text,
			ImageURL: a.ImageURL,
		})
	}
	return converted
}
