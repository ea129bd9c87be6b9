package repository

import (
	"context"
	"fmt"
	"time"

	"relay_bot/internal/slack/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRelayRecordRepository 中继记录仓储的 MongoDB 实现
type MongoRelayRecordRepository struct {
	collection *mongo.Collection
}

// NewRelayRecordRepository 创建中继记录仓储实例
func NewRelayRecordRepository(db *mongo.Database) *MongoRelayRecordRepository {
	return &MongoRelayRecordRepository{
		collection: db.Collection("relay_records"),
	}
}

// Create 创建中继记录
func (r *MongoRelayRecordRepository) Create(ctx context.Context, record *models.RelayRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to create relay record: %w", err)
	}
	return nil
}

// FindByAnyTS 按任意别名键查找记录，未命中返回 (nil, nil)
func (r *MongoRelayRecordRepository) FindByAnyTS(ctx context.Context, ts string) (*models.RelayRecord, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"dm_ts": ts},
			{"selection_ts": ts},
			{"forwarded_ts": ts},
		},
	}

	var record models.RelayRecord
	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find relay record by ts %s: %w", ts, err)
	}
	return &record, nil
}

// SaveSelection 记录发送者的身份选择（后写覆盖）
func (r *MongoRelayRecordRepository) SaveSelection(ctx context.Context, selectionTS, selection string) error {
	update := bson.M{
		"$set": bson.M{
			"selection":  selection,
			"updated_at": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"selection_ts": selectionTS}, update)
	if err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("relay record not found for selection_ts %s", selectionTS)
	}
	return nil
}

// FinishForward 写入 forwarded_ts 并清空 selection。
// 两个字段在同一次更新中变更，保证不会出现「已转发但身份选择仍可查」的中间态。
func (r *MongoRelayRecordRepository) FinishForward(ctx context.Context, dmTS, forwardedTS string) error {
	update := bson.M{
		"$set": bson.M{
			"forwarded_ts": forwardedTS,
			"updated_at":   time.Now().UTC(),
		},
		"$unset": bson.M{
			"selection": "",
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"dm_ts": dmTS}, update)
	if err != nil {
		return fmt.Errorf("failed to finish forward: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("relay record not found for dm_ts %s", dmTS)
	}
	return nil
}

// Delete 删除记录
func (r *MongoRelayRecordRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete relay record: %w", err)
	}
	return nil
}

// IterateAll 以游标方式遍历全部记录
func (r *MongoRelayRecordRepository) IterateAll(ctx context.Context, fn func(*models.RelayRecord) error) error {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to iterate relay records: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var record models.RelayRecord
		if err := cursor.Decode(&record); err != nil {
			return fmt.Errorf("failed to decode relay record: %w", err)
		}
		if err := fn(&record); err != nil {
			return err
		}
	}

	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor error while iterating relay records: %w", err)
	}
	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoRelayRecordRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// 私聊侧主关联键
		{
			Keys:    bson.D{{Key: "dm_ts", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// 身份选择提示键
		{
			Keys:    bson.D{{Key: "selection_ts", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// 群组侧关联键（提交前不存在，稀疏索引）
		{
			Keys:    bson.D{{Key: "forwarded_ts", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		// 过期清理扫描
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes for relay_records: %w", err)
	}
	return nil
}
