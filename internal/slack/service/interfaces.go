package service

import (
	"context"
	"errors"
)

// 可预期的业务错误。处理器据此选择用户可见的提示，而不是让事件循环崩溃。
var (
	// ErrNoSelection 提交时尚未选择转发身份（重新提示，不是故障）
	ErrNoSelection = errors.New("no identity selection recorded")

	// ErrAlreadyForwarded 记录已处于终态，重复提交按已处理对待
	ErrAlreadyForwarded = errors.New("relay already forwarded")

	// ErrUnauthorized 调用者未通过成员资格校验
	ErrUnauthorized = errors.New("caller is not authorized")
)

// PostOptions 发送消息的可选参数
type PostOptions struct {
	ThreadTS    string       // 线程锚点
	Username    string       // 覆盖显示名（具名转发时使用）
	IconURL     string       // 覆盖头像（具名转发时使用）
	Attachments []Attachment // 附件透传
}

// Attachment 传输层无关的附件表示
type Attachment struct {
	Fallback string
	Title    string
	Text     string
	ImageURL string
}

// ChatMessage 按时间戳取回的单条消息
type ChatMessage struct {
	TS      string
	User    string
	Text    string
	SubType string
}

// Tombstoned 消息本体是否已被移除（仅剩占位）
func (m *ChatMessage) Tombstoned() bool {
	return m.SubType == "tombstone"
}

// UserProfile 用户展示资料
type UserProfile struct {
	DisplayName string
	AvatarURL   string
}

// ChatClient 聊天平台传输操作。实现位于传输边界，业务层只依赖本接口。
type ChatClient interface {
	// PostMessage 发送消息，返回新消息的时间戳
	PostMessage(ctx context.Context, channel, text string, opts *PostOptions) (string, error)

	// PostEphemeral 向单个用户发送临时消息
	PostEphemeral(ctx context.Context, channel, user, text string, opts *PostOptions) error

	// PostSelectionPrompt 发送身份选择提示，返回提示消息的时间戳
	PostSelectionPrompt(ctx context.Context, channel string) (string, error)

	// MarkPromptSubmitted 将选择提示改写为终态「已提交」展示，防止重复使用
	MarkPromptSubmitted(ctx context.Context, channel, ts string, anonymous bool) error

	// FetchMessage 按时间戳取回单条消息；不存在时返回 (nil, nil)
	FetchMessage(ctx context.Context, channel, ts string) (*ChatMessage, error)

	// AddReaction / RemoveReaction 增删表情标记
	AddReaction(ctx context.Context, channel, ts, name string) error
	RemoveReaction(ctx context.Context, channel, ts, name string) error

	// ReactionCounts 取回消息当前的表情计数（服务端状态为准）
	ReactionCounts(ctx context.Context, channel, ts string) (map[string]int, error)

	// FetchUserProfile 取回用户展示资料
	FetchUserProfile(ctx context.Context, userID string) (*UserProfile, error)

	// ChannelMembers 列出频道成员
	ChannelMembers(ctx context.Context, channel string) ([]string, error)

	// OpenGroupConversation 创建或复用一个多人私聊，返回频道 ID
	OpenGroupConversation(ctx context.Context, userIDs []string) (string, error)

	// InviteToConversation 邀请用户进入频道
	InviteToConversation(ctx context.Context, channel string, userIDs []string) error
}

// IdentityService 身份解析接口
type IdentityService interface {
	// DisplayName 解析用户显示名
	DisplayName(ctx context.Context, userID string) (string, error)

	// AvatarURL 解析用户头像地址
	AvatarURL(ctx context.Context, userID string) (string, error)

	// Invalidate 清除某个用户的缓存资料
	Invalidate(userID string)

	// MessageText 按时间戳取回消息当前文本
	MessageText(ctx context.Context, channel, ts string) (string, error)
}

// RelayService 中继关联器：对入站消息事件分类并路由
type RelayService interface {
	HandleMessage(ctx context.Context, event InboundEvent) error
}

// ForwardingService 两步身份选择工作流
type ForwardingService interface {
	// Begin 发起新中继：发送选择提示并持久化记录
	Begin(ctx context.Context, channel, ts, text string) error

	// SaveSelection 记录身份选择（可重复，后写覆盖）
	SaveSelection(ctx context.Context, promptTS, selection string) error

	// Submit 提交中继：转发内容进报告频道并落终态
	Submit(ctx context.Context, channel, promptTS, userID string) error
}

// ReactionService 状态标记同步
type ReactionService interface {
	HandleAdded(ctx context.Context, event *ReactionAdded) error
	HandleRemoved(ctx context.Context, event *ReactionRemoved) error
}

// CleanReport 一次清理扫描的结果
type CleanReport struct {
	Scanned int // 扫描的记录数
	Deleted int // 删除的记录数
	Expired int // 其中因选择提示过期而删除的数量
}

// CleanerService 清理锚点消息已消失的中继记录
type CleanerService interface {
	Clean(ctx context.Context) (CleanReport, error)
}
