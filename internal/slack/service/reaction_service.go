package service

import (
	"context"
	"fmt"

	"relay_bot/internal/logger"
	"relay_bot/internal/slack/repository"
)

// 状态标记：报告根消息挂 hourglass 表示待处理，
// white_check_mark / x 是参与者打上的处理结论。
const (
	markerPending  = "hourglass"
	markerApproved = "white_check_mark"
	markerRejected = "x"
)

func isResolutionMarker(name string) bool {
	return name == markerApproved || name == markerRejected
}

// ReactionServiceImpl 状态标记同步实现。只跟踪命中中继记录的消息。
type ReactionServiceImpl struct {
	records repository.RelayRecordRepository
	chat    ChatClient
}

// NewReactionService 创建状态标记同步服务
func NewReactionService(records repository.RelayRecordRepository, chat ChatClient) *ReactionServiceImpl {
	return &ReactionServiceImpl{
		records: records,
		chat:    chat,
	}
}

// HandleAdded 处理结论标记被添加：摘掉待处理标记（尽力而为）
func (s *ReactionServiceImpl) HandleAdded(ctx context.Context, event *ReactionAdded) error {
	if !isResolutionMarker(event.Reaction) {
		return nil
	}

	record, err := s.records.FindByAnyTS(ctx, event.ItemTS)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	if err := s.chat.RemoveReaction(ctx, event.Channel, event.ItemTS, markerPending); err != nil {
		// 失败只记录，不重试；标记可能本来就不在
		logger.L().Warnf("Failed to remove pending marker: channel=%s ts=%s err=%v",
			event.Channel, event.ItemTS, err)
		return nil
	}

	logger.L().Debugf("Pending marker removed: channel=%s ts=%s reaction=%s",
		event.Channel, event.ItemTS, event.Reaction)
	return nil
}

// HandleRemoved 处理结论标记被移除：两种结论标记的计数都归零时补回待处理标记。
// 多个参与者可能独立增删，本地计数会竞态，必须以服务端当前状态为准。
func (s *ReactionServiceImpl) HandleRemoved(ctx context.Context, event *ReactionRemoved) error {
	if !isResolutionMarker(event.Reaction) {
		return nil
	}

	record, err := s.records.FindByAnyTS(ctx, event.ItemTS)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	counts, err := s.chat.ReactionCounts(ctx, event.Channel, event.ItemTS)
	if err != nil {
		return fmt.Errorf("failed to read reaction counts: %w", err)
	}

	if counts[markerApproved] == 0 && counts[markerRejected] == 0 {
		if err := s.chat.AddReaction(ctx, event.Channel, event.ItemTS, markerPending); err != nil {
			logger.L().Warnf("Failed to re-add pending marker: channel=%s ts=%s err=%v",
				event.Channel, event.ItemTS, err)
			return nil
		}
		logger.L().Debugf("Pending marker restored: channel=%s ts=%s", event.Channel, event.ItemTS)
	}
	return nil
}
