package service

import (
	"context"
	"fmt"
	"time"

	"relay_bot/internal/logger"
	"relay_bot/internal/slack/models"
	"relay_bot/internal/slack/repository"

	"golang.org/x/time/rate"
)

// CleanerServiceImpl 中继记录清理实现。O(records) 扫描，每条记录至多
// 两次远程取回，出站请求经速率限制以尊重传输侧的请求预算。
type CleanerServiceImpl struct {
	records       repository.RelayRecordRepository
	chat          ChatClient
	reportChannel string
	promptTTL     time.Duration
	limiter       *rate.Limiter
}

// NewCleanerService 创建清理服务。requestsPerSecond 限制锚点取回速率。
func NewCleanerService(records repository.RelayRecordRepository, chat ChatClient, reportChannel string, promptTTL time.Duration, requestsPerSecond float64) *CleanerServiceImpl {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &CleanerServiceImpl{
		records:       records,
		chat:          chat,
		reportChannel: reportChannel,
		promptTTL:     promptTTL,
		limiter:       rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Clean 扫描全部中继记录：
//   - 未转发且超过选择提示存活时间的记录按过期删除；
//   - 任一侧锚点消息不可达或已被移除（tombstone）的记录删除。
func (s *CleanerServiceImpl) Clean(ctx context.Context) (CleanReport, error) {
	var report CleanReport

	err := s.records.IterateAll(ctx, func(record *models.RelayRecord) error {
		report.Scanned++

		if !record.Forwarded() {
			// 被放弃的选择提示不会自行消失，按 TTL 过期
			if s.promptTTL > 0 && time.Since(record.CreatedAt) > s.promptTTL {
				if err := s.records.Delete(ctx, record.ID); err != nil {
					return err
				}
				report.Deleted++
				report.Expired++
				logger.L().Infof("Expired unsubmitted relay removed: dm_ts=%s age=%s",
					record.DMTS, time.Since(record.CreatedAt).Round(time.Minute))
				return nil
			}

			// 选择窗口内只校验私聊侧锚点
			alive, err := s.anchorAlive(ctx, record.DMChannel, record.DMTS)
			if err != nil {
				return err
			}
			if !alive {
				return s.deleteDead(ctx, record, &report, "dm anchor gone")
			}
			return nil
		}

		dmAlive, err := s.anchorAlive(ctx, record.DMChannel, record.DMTS)
		if err != nil {
			return err
		}
		if !dmAlive {
			return s.deleteDead(ctx, record, &report, "dm anchor gone")
		}

		fwdAlive, err := s.anchorAlive(ctx, s.reportChannel, record.ForwardedTS)
		if err != nil {
			return err
		}
		if !fwdAlive {
			return s.deleteDead(ctx, record, &report, "forwarded anchor gone")
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("relay record sweep failed: %w", err)
	}

	logger.L().Infof("Relay record sweep finished: scanned=%d deleted=%d expired=%d",
		report.Scanned, report.Deleted, report.Expired)
	return report, nil
}

// anchorAlive 取回锚点消息并判断其是否仍然存在。
// 取回出错按「频道/消息不可达」处理，返回 false；只有限速等待被取消才中断扫描。
func (s *CleanerServiceImpl) anchorAlive(ctx context.Context, channel, ts string) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}

	msg, err := s.chat.FetchMessage(ctx, channel, ts)
	if err != nil {
		logger.L().Debugf("Anchor fetch failed, treating as gone: channel=%s ts=%s err=%v", channel, ts, err)
		return false, nil
	}
	if msg == nil || msg.Tombstoned() {
		return false, nil
	}
	return true, nil
}

func (s *CleanerServiceImpl) deleteDead(ctx context.Context, record *models.RelayRecord, report *CleanReport, reason string) error {
	if err := s.records.Delete(ctx, record.ID); err != nil {
		return err
	}
	report.Deleted++
	logger.L().Infof("Dead relay record removed (%s): dm_ts=%s forwarded_ts=%s",
		reason, record.DMTS, record.ForwardedTS)
	return nil
}
