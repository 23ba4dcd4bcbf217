package websocket

import (
	"encoding/json"

	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/logger"
	"go.uber.org/zap"
)

// EventNotifier 把引擎对局事件桥接为WebSocket推送
// 实现game.Notifier。所有推送走非阻塞发送，慢客户端丢消息而不是拖住引擎
type EventNotifier struct {
	hub   *Hub
	rules game.Rules
	log   *zap.Logger
}

// NewEventNotifier 创建事件桥接器
func NewEventNotifier(hub *Hub, rules game.Rules, log *zap.Logger) *EventNotifier {
	return &EventNotifier{
		hub:   hub,
		rules: rules,
		log:   log,
	}
}

// Notify 实现game.Notifier接口
func (n *EventNotifier) Notify(ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.log.Error("序列化对局事件失败",
			zap.Uint64("match_id", ev.SessionID),
			zap.Error(err))
		return
	}

	msg := &Message{
		Type:      messageTypeFor(ev.Type),
		MatchID:   ev.SessionID,
		Data:      data,
		Timestamp: ev.Timestamp,
	}

	switch ev.Type {
	case game.EventSessionCreated:
		// 新对局对大厅可见，广播给所有在线客户端
		select {
		case n.hub.broadcast <- msg:
		default:
			n.log.Warn("广播通道已满，丢弃对局创建推送",
				zap.Uint64("match_id", ev.SessionID))
		}
		logger.LogGameEvent(string(ev.Type), ev.SessionID, map[string]interface{}{
			"account":  ev.Account,
			"opponent": ev.Opponent,
		})

	case game.EventMovePlayed:
		n.hub.SendToMatch(ev.SessionID, msg)
		logger.LogGameEvent(string(ev.Type), ev.SessionID, map[string]interface{}{
			"account": ev.Account,
			"column":  ev.Column,
			"row":     ev.Row,
		})

	case game.EventSessionWon:
		n.hub.SendToMatch(ev.SessionID, msg)
		n.hub.SendToAccount(ev.Winner, msg)
		logger.LogSettlement(ev.SessionID, "won", ev.Winner, ev.Prize, n.winFee(ev.Prize))

	case game.EventSessionDrawn:
		n.hub.SendToMatch(ev.SessionID, msg)
		logger.LogSettlement(ev.SessionID, "drawn", "", ev.Prize, n.drawFee(ev.Prize))

	case game.EventSessionResigned:
		n.hub.SendToMatch(ev.SessionID, msg)
		logger.LogGameEvent(string(ev.Type), ev.SessionID, map[string]interface{}{
			"account": ev.Account,
		})

	case game.EventForfeitClaimed:
		n.hub.SendToMatch(ev.SessionID, msg)
		logger.LogGameEvent(string(ev.Type), ev.SessionID, map[string]interface{}{
			"account": ev.Account,
		})
	}
}

// messageTypeFor 对局事件类型到推送消息类型的映射
func messageTypeFor(t game.EventType) string {
	switch t {
	case game.EventSessionCreated:
		return MessageTypeMatchCreated
	case game.EventMovePlayed:
		return MessageTypeMovePlayed
	case game.EventSessionWon:
		return MessageTypeMatchWon
	case game.EventSessionDrawn:
		return MessageTypeMatchDrawn
	case game.EventSessionResigned:
		return MessageTypeMatchResigned
	case game.EventForfeitClaimed:
		return MessageTypeMatchForfeited
	}
	return string(t)
}

// winFee 整池按费率计算平台抽成
func (n *EventNotifier) winFee(prize int64) int64 {
	return prize * n.rules.FeePercent / 100
}

// drawFee 平局两份半池各抽一次，奇数余数不参与
func (n *EventNotifier) drawFee(prize int64) int64 {
	half := prize / 2
	return half * n.rules.FeePercent / 100 * 2
}
