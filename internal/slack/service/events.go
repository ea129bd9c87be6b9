package service

// 频道类型（入站事件的 channel_type 字段）
const (
	ChannelTypeIM      = "im"
	ChannelTypeGroup   = "group"
	ChannelTypeChannel = "channel"
)

// InboundEvent 规范化后的入站事件。传输边界把平台事件的联合结构
// 拆成带标签的变体，每个变体只携带自己相关的字段。
type InboundEvent interface {
	isInboundEvent()
}

// NormalMessage 普通消息
type NormalMessage struct {
	Channel     string
	ChannelType string
	TS          string
	ThreadTS    string // 属于线程时为根消息时间戳，否则为空
	User        string
	Text        string
	Attachments []Attachment
}

// EditedMessage 消息被编辑
type EditedMessage struct {
	Channel     string
	ChannelType string
	TS          string // 被编辑消息本身的时间戳
	ThreadTS    string
	User        string // 被编辑消息的作者
	Text        string // 编辑后的文本
	PrevText    string // 编辑前的文本
}

// DeletedMessage 消息被删除
type DeletedMessage struct {
	Channel     string
	ChannelType string
	DeletedTS   string // 被删除消息的时间戳
	ThreadTS    string
	User        string // 被删除消息的作者
}

// ReactionAdded 表情标记被添加
type ReactionAdded struct {
	Channel  string
	ItemTS   string // 被标记消息的时间戳
	User     string
	Reaction string
}

// ReactionRemoved 表情标记被移除
type ReactionRemoved struct {
	Channel  string
	ItemTS   string
	User     string
	Reaction string
}

// InteractionSelected 用户在选择提示中选定了转发身份
type InteractionSelected struct {
	Channel  string
	PromptTS string
	User     string
	Value    string // anonymous / with_username
}

// InteractionSubmitted 用户按下提交按钮
type InteractionSubmitted struct {
	Channel  string
	PromptTS string
	User     string
}

func (*NormalMessage) isInboundEvent()       {}
func (*EditedMessage) isInboundEvent()       {}
func (*DeletedMessage) isInboundEvent()      {}
func (*ReactionAdded) isInboundEvent()       {}
func (*ReactionRemoved) isInboundEvent()     {}
func (*InteractionSelected) isInboundEvent() {}
func (*InteractionSubmitted) isInboundEvent() {}

// IsDM 事件是否来自一对一私聊
func (m *NormalMessage) IsDM() bool  { return m.ChannelType == ChannelTypeIM }
func (m *EditedMessage) IsDM() bool  { return m.ChannelType == ChannelTypeIM }
func (m *DeletedMessage) IsDM() bool { return m.ChannelType == ChannelTypeIM }
