package game

import "time"

// EventType 对局事件类型
type EventType string

const (
	EventSessionCreated  EventType = "session_created"  // 新对局创建
	EventMovePlayed      EventType = "move_played"      // 落子
	EventSessionWon      EventType = "session_won"      // 分出胜负
	EventSessionDrawn    EventType = "session_drawn"    // 平局
	EventSessionResigned EventType = "session_resigned" // 认输
	EventForfeitClaimed  EventType = "forfeit_claimed"  // 超时判负
)

// Event 对局事件，状态提交成功后发出
type Event struct {
	Type      EventType `json:"type"`
	SessionID uint64    `json:"session_id"`
	Account   string    `json:"account,omitempty"`  // 触发事件的账户
	Opponent  string    `json:"opponent,omitempty"` // 创建事件携带的对手席位
	Column    int       `json:"column,omitempty"`
	Row       int       `json:"row,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Prize     int64     `json:"prize,omitempty"` // 终局事件携带整个奖池
	Board     string    `json:"board,omitempty"` // 42字符棋盘编码
	Timestamp int64     `json:"timestamp"`
}

// Notifier 对局事件接收方
// 实现方不得阻塞引擎，慢消费者自行排队或丢弃
type Notifier interface {
	Notify(event Event)
}

// NopNotifier 丢弃所有事件
type NopNotifier struct{}

// Notify 实现Notifier接口
func (NopNotifier) Notify(Event) {}

// stamp 补充事件时间戳
func stamp(ev Event, at time.Time) Event {
	ev.Timestamp = at.Unix()
	return ev
}
