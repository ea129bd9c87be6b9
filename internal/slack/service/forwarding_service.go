package service

import (
	"context"
	"fmt"

	"relay_bot/internal/logger"
	"relay_bot/internal/slack/models"
	"relay_bot/internal/slack/repository"
)

// ForwardingServiceImpl 两步身份选择工作流实现。
// 状态存在 RelayRecord 里：selection_ts 已写而 forwarded_ts 为空即 AWAITING_SELECTION，
// forwarded_ts 已写即 SUBMITTED（终态）。
type ForwardingServiceImpl struct {
	records       repository.RelayRecordRepository
	chat          ChatClient
	identity      IdentityService
	reportChannel string
}

// NewForwardingService 创建转发工作流服务
func NewForwardingService(records repository.RelayRecordRepository, chat ChatClient, identity IdentityService, reportChannel string) *ForwardingServiceImpl {
	return &ForwardingServiceImpl{
		records:       records,
		chat:          chat,
		identity:      identity,
		reportChannel: reportChannel,
	}
}

// Begin 发起新中继：发送身份选择提示并持久化记录
func (s *ForwardingServiceImpl) Begin(ctx context.Context, channel, ts, text string) error {
	selectionTS, err := s.chat.PostSelectionPrompt(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to post selection prompt: %w", err)
	}

	content, _ := stripForwardPrefix(text)
	record := &models.RelayRecord{
		DMTS:        ts,
		DMChannel:   channel,
		SelectionTS: selectionTS,
		Content:     content,
	}

	if err := s.records.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to persist relay record: %w", err)
	}

	logger.L().Infof("Relay started: dm_ts=%s dm_channel=%s selection_ts=%s", ts, channel, selectionTS)
	return nil
}

// SaveSelection 记录身份选择。可重复触发，后写覆盖。
func (s *ForwardingServiceImpl) SaveSelection(ctx context.Context, promptTS, selection string) error {
	if selection != models.SelectionAnonymous && selection != models.SelectionWithUsername {
		return fmt.Errorf("unknown selection value %q", selection)
	}

	if err := s.records.SaveSelection(ctx, promptTS, selection); err != nil {
		return err
	}

	logger.L().Debugf("Selection saved: selection_ts=%s selection=%s", promptTS, selection)
	return nil
}

// Submit 提交中继。重新读取记录校验状态，取私聊消息的当前文本
// （而不是创建时缓存的内容，容忍提交前的编辑），转发进报告频道，
// 然后一次性写入 forwarded_ts 并清空 selection。
func (s *ForwardingServiceImpl) Submit(ctx context.Context, channel, promptTS, userID string) error {
	record, err := s.records.FindByAnyTS(ctx, promptTS)
	if err != nil {
		return err
	}
	if record == nil {
		logger.L().Warnf("Submit pressed on unknown prompt: ts=%s channel=%s", promptTS, channel)
		_ = s.chat.PostEphemeral(ctx, channel, userID, "This prompt is no longer active.", nil)
		return nil
	}

	// 终态记录的重复提交不是正常路径，按已处理对待
	if record.Forwarded() {
		logger.L().Warnf("Duplicate submit on forwarded relay: dm_ts=%s forwarded_ts=%s", record.DMTS, record.ForwardedTS)
		_ = s.chat.PostEphemeral(ctx, channel, userID, "This report has already been submitted.", nil)
		return ErrAlreadyForwarded
	}

	if !record.HasSelection() {
		if _, err := s.chat.PostMessage(ctx, record.DMChannel, "Please select an option before submitting.", nil); err != nil {
			logger.L().Errorf("Failed to re-prompt for selection: dm_channel=%s err=%v", record.DMChannel, err)
		}
		return ErrNoSelection
	}

	// 取当前文本而非缓存内容
	text, err := s.identity.MessageText(ctx, record.DMChannel, record.DMTS)
	if err != nil {
		return fmt.Errorf("failed to fetch report content: %w", err)
	}
	content, _ := stripForwardPrefix(text)

	anonymous := record.Selection == models.SelectionAnonymous
	if err := s.chat.MarkPromptSubmitted(ctx, record.DMChannel, record.SelectionTS, anonymous); err != nil {
		logger.L().Warnf("Failed to mark prompt submitted: selection_ts=%s err=%v", record.SelectionTS, err)
	}

	opts := &PostOptions{}
	if !anonymous {
		name, err := s.identity.DisplayName(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to resolve display name: %w", err)
		}
		avatar, err := s.identity.AvatarURL(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to resolve avatar: %w", err)
		}
		opts.Username = name
		opts.IconURL = avatar
	}

	forwardedTS, err := s.chat.PostMessage(ctx, s.reportChannel, content, opts)
	if err != nil {
		return fmt.Errorf("failed to forward report: %w", err)
	}

	// 新报告挂上待处理标记，供状态同步组件维护
	if err := s.chat.AddReaction(ctx, s.reportChannel, forwardedTS, markerPending); err != nil {
		logger.L().Warnf("Failed to add pending marker: forwarded_ts=%s err=%v", forwardedTS, err)
	}

	if err := s.records.FinishForward(ctx, record.DMTS, forwardedTS); err != nil {
		// 已转发但记录未落终态：留给清理任务兜底
		logger.L().Errorf("Forward posted but record not finalized: dm_ts=%s forwarded_ts=%s err=%v",
			record.DMTS, forwardedTS, err)
		return err
	}

	if err := s.chat.PostEphemeral(ctx, record.DMChannel, userID,
		"Message content forwarded. Any replies to the forwarded message will be sent back to you as a threaded reply.", nil); err != nil {
		logger.L().Warnf("Failed to confirm submission: dm_channel=%s err=%v", record.DMChannel, err)
	}

	logger.L().Infof("Relay submitted: dm_ts=%s forwarded_ts=%s anonymous=%v", record.DMTS, forwardedTS, anonymous)
	return nil
}
