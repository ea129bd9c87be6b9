package repository

import (
	"context"

	"relay_bot/internal/slack/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RelayRecordRepository 中继记录数据访问接口
type RelayRecordRepository interface {
	// Create 创建中继记录
	Create(ctx context.Context, record *models.RelayRecord) error

	// FindByAnyTS 按任意别名键（dm_ts / selection_ts / forwarded_ts）查找记录。
	// 未命中返回 (nil, nil)：缺失是常规控制流信号，不作为错误。
	FindByAnyTS(ctx context.Context, ts string) (*models.RelayRecord, error)

	// SaveSelection 记录发送者的身份选择（按 selection_ts 定位，后写覆盖）
	SaveSelection(ctx context.Context, selectionTS, selection string) error

	// FinishForward 写入 forwarded_ts 并同时清空 selection（按 dm_ts 定位，单次更新）
	FinishForward(ctx context.Context, dmTS, forwardedTS string) error

	// Delete 删除记录
	Delete(ctx context.Context, id primitive.ObjectID) error

	// IterateAll 以游标方式遍历全部记录；fn 返回错误则中断遍历
	IterateAll(ctx context.Context, fn func(*models.RelayRecord) error) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}
