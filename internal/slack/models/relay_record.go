package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 身份选择常量
const (
	SelectionAnonymous    = "anonymous"
	SelectionWithUsername = "with_username"
)

// RelayRecord 中继记录：关联私聊会话与报告频道线程的唯一持久化实体。
// 三个时间戳字段互不重叠，各自作为同一条记录的别名键：
//   - dm_ts        私聊侧原始消息（创建后不可变）
//   - selection_ts 身份选择提示消息（创建时写入，提交后不再使用）
//   - forwarded_ts 报告频道侧消息（提交后写入，至多一次）
type RelayRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	DMTS        string             `bson:"dm_ts"`                  // 私聊消息时间戳
	DMChannel   string             `bson:"dm_channel"`             // 私聊频道 ID
	SelectionTS string             `bson:"selection_ts"`           // 身份选择提示消息时间戳
	Selection   string             `bson:"selection,omitempty"`    // anonymous / with_username，提交后清空
	ForwardedTS string             `bson:"forwarded_ts,omitempty"` // 报告频道消息时间戳（提交后写入）
	Content     string             `bson:"content,omitempty"`      // 发起时捕获的消息文本，仅在选择窗口期使用
	CreatedAt   time.Time          `bson:"created_at"`             // 记录创建时间（用于过期清理）
	UpdatedAt   time.Time          `bson:"updated_at"`             // 记录更新时间
}

// Forwarded 内容是否已转发进报告频道（终态）
func (r *RelayRecord) Forwarded() bool {
	return r.ForwardedTS != ""
}

// HasSelection 发送者是否已选择转发身份
func (r *RelayRecord) HasSelection() bool {
	return r.Selection == SelectionAnonymous || r.Selection == SelectionWithUsername
}
