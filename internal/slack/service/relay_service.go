package service

import (
	"context"
	"fmt"
	"strings"

	"relay_bot/internal/logger"
	"relay_bot/internal/slack/models"
	"relay_bot/internal/slack/repository"
)

// 群组侧回复的前缀约定：内容只有被显式授权（? 前缀）才会跨界转发，
// ! 是被确认的空操作，其余一律丢弃并记录日志。
const (
	forwardPrefix = "?"
	ignorePrefix  = "!"
)

// stripForwardPrefix 去掉转发前缀（以及紧随的一个空格），
// 返回剩余内容和「是否带有转发前缀」。
func stripForwardPrefix(text string) (string, bool) {
	if strings.HasPrefix(text, forwardPrefix+" ") {
		return text[2:], true
	}
	if strings.HasPrefix(text, forwardPrefix) {
		return text[1:], true
	}
	return text, false
}

// RelayServiceImpl 中继关联器实现。每次调用无共享可变状态，
// 查找/写入都走仓储与传输适配器，可按事件并发运行单实例。
type RelayServiceImpl struct {
	records       repository.RelayRecordRepository
	chat          ChatClient
	identity      IdentityService
	forwarding    ForwardingService
	reportChannel string
}

// NewRelayService 创建中继关联器
func NewRelayService(records repository.RelayRecordRepository, chat ChatClient, identity IdentityService, forwarding ForwardingService, reportChannel string) *RelayServiceImpl {
	return &RelayServiceImpl{
		records:       records,
		chat:          chat,
		identity:      identity,
		forwarding:    forwarding,
		reportChannel: reportChannel,
	}
}

// HandleMessage 对入站消息事件分类并路由
func (s *RelayServiceImpl) HandleMessage(ctx context.Context, event InboundEvent) error {
	switch ev := event.(type) {
	case *NormalMessage:
		return s.handleNormal(ctx, ev)
	case *EditedMessage:
		// 编辑不转发：已转发副本与改动后的内容会失配，直接通知作者
		return s.notifyMutationUnsupported(ctx, ev.Channel, ev.ChannelType,
			lookupKey(ev.ThreadTS, ev.TS), ev.User, "Message edits are not forwarded.")
	case *DeletedMessage:
		return s.notifyMutationUnsupported(ctx, ev.Channel, ev.ChannelType,
			lookupKey(ev.ThreadTS, ev.DeletedTS), ev.User, "Message deletions are not forwarded.")
	default:
		logger.L().Debugf("Relay correlator ignoring event type %T", event)
		return nil
	}
}

// lookupKey 事件属于线程时用根消息时间戳查找，否则用自身时间戳
func lookupKey(threadTS, ts string) string {
	if threadTS != "" {
		return threadTS
	}
	return ts
}

func (s *RelayServiceImpl) handleNormal(ctx context.Context, ev *NormalMessage) error {
	record, err := s.records.FindByAnyTS(ctx, lookupKey(ev.ThreadTS, ev.TS))
	if err != nil {
		return err
	}

	switch {
	case ev.IsDM() && record == nil && ev.ThreadTS == "":
		// 新的私聊会话，发起中继
		return s.forwarding.Begin(ctx, ev.Channel, ev.TS, ev.Text)

	case ev.IsDM() && record == nil:
		// 私聊侧的陌生线程：防御性回复，避免把无关线程当成中继
		if _, err := s.chat.PostMessage(ctx, ev.Channel,
			"No relay exists for this thread.", &PostOptions{ThreadTS: ev.ThreadTS}); err != nil {
			return fmt.Errorf("failed to reply to unknown thread: %w", err)
		}
		return nil

	case ev.IsDM():
		return s.forwardPrivateReply(ctx, ev, record)

	case record != nil:
		return s.handleGroupReply(ctx, ev, record)

	default:
		// 报告频道可能有无关会话，未命中记录直接忽略
		logger.L().Debugf("No relay record for message in %s at %s; ignoring", ev.Channel, ev.TS)
		return nil
	}
}

// forwardPrivateReply 把私聊线程里的新内容追加到报告频道的对应线程
func (s *RelayServiceImpl) forwardPrivateReply(ctx context.Context, ev *NormalMessage, record *models.RelayRecord) error {
	if !record.Forwarded() {
		if err := s.chat.PostEphemeral(ctx, ev.Channel, ev.User,
			"This report has not been submitted yet. Use the prompt above to submit it first.", nil); err != nil {
			logger.L().Warnf("Failed to notify sender about unsubmitted relay: dm_ts=%s err=%v", record.DMTS, err)
		}
		return nil
	}

	if _, err := s.chat.PostMessage(ctx, s.reportChannel, ev.Text, &PostOptions{
		ThreadTS:    record.ForwardedTS,
		Attachments: ev.Attachments,
	}); err != nil {
		return fmt.Errorf("failed to forward private reply: %w", err)
	}

	logger.L().Infof("Private reply forwarded: dm_ts=%s forwarded_ts=%s", record.DMTS, record.ForwardedTS)
	return nil
}

// handleGroupReply 按前缀策略处理报告频道线程里的回复
func (s *RelayServiceImpl) handleGroupReply(ctx context.Context, ev *NormalMessage, record *models.RelayRecord) error {
	if strings.HasPrefix(ev.Text, ignorePrefix) {
		if err := s.chat.PostEphemeral(ctx, ev.Channel, ev.User,
			"`!` does nothing. By default, messages are not forwarded unless `?` is prepended to them.",
			&PostOptions{ThreadTS: ev.ThreadTS}); err != nil {
			logger.L().Warnf("Failed to acknowledge no-op reply: channel=%s err=%v", ev.Channel, err)
		}
		return nil
	}

	content, authorized := stripForwardPrefix(ev.Text)
	if !authorized {
		logger.L().Infof("Group reply without `!` or `?` prefix dropped: channel=%s ts=%s", ev.Channel, ev.TS)
		return nil
	}

	name, err := s.identity.DisplayName(ctx, ev.User)
	if err != nil {
		return err
	}
	avatar, err := s.identity.AvatarURL(ctx, ev.User)
	if err != nil {
		return err
	}

	if _, err := s.chat.PostMessage(ctx, record.DMChannel, content, &PostOptions{
		ThreadTS:    record.DMTS,
		Username:    name,
		IconURL:     avatar,
		Attachments: ev.Attachments,
	}); err != nil {
		return fmt.Errorf("failed to forward group reply: %w", err)
	}

	logger.L().Infof("Group reply forwarded: forwarded_ts=%s dm_ts=%s", record.ForwardedTS, record.DMTS)
	return nil
}

// notifyMutationUnsupported 编辑/删除不跨界传播，只给原作者一条临时提示。
// 私聊之外只有命中记录的线程才提示，避免打扰无关会话。
func (s *RelayServiceImpl) notifyMutationUnsupported(ctx context.Context, channel, channelType, key, user, notice string) error {
	record, err := s.records.FindByAnyTS(ctx, key)
	if err != nil {
		return err
	}

	if channelType != ChannelTypeIM && record == nil {
		logger.L().Debugf("Mutation in untracked conversation ignored: channel=%s key=%s", channel, key)
		return nil
	}
	if user == "" {
		logger.L().Warnf("Mutation event without author: channel=%s key=%s", channel, key)
		return nil
	}

	if err := s.chat.PostEphemeral(ctx, channel, user, notice, nil); err != nil {
		return fmt.Errorf("failed to notify author about unsupported mutation: %w", err)
	}
	return nil
}
