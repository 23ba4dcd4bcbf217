package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/wfunc/connect4-game/internal/game"
	"go.uber.org/zap"
)

func testRules() game.Rules {
	return game.Rules{
		Stake:           100,
		ClaimWindow:     time.Minute,
		FeePercent:      5,
		PlatformAccount: "platform",
	}
}

// TestNotifierMovePush 测试落子事件推送给对局订阅者
func TestNotifierMovePush(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	alice := newTestClient(hub, "c1", 1, "alice")
	alice.MatchID = 7
	bob := newTestClient(hub, "c2", 2, "bob")
	bob.MatchID = 7
	hub.Register(alice)
	hub.Register(bob)
	waitOnline(t, hub, 2)
	readMessage(t, alice)
	readMessage(t, bob)

	notifier := NewEventNotifier(hub, testRules(), zap.NewNop())
	notifier.Notify(game.Event{
		Type:      game.EventMovePlayed,
		SessionID: 7,
		Account:   "alice",
		Column:    3,
		Row:       5,
		Timestamp: 123,
	})

	for _, c := range []*Client{alice, bob} {
		msg := readMessage(t, c)
		if msg.Type != MessageTypeMovePlayed {
			t.Errorf("消息类型不匹配，期望%s，实际%s", MessageTypeMovePlayed, msg.Type)
		}
		if msg.MatchID != 7 {
			t.Errorf("对局ID不匹配，期望7，实际%d", msg.MatchID)
		}
		if msg.Timestamp != 123 {
			t.Errorf("时间戳未透传，实际%d", msg.Timestamp)
		}

		var ev game.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("解析事件失败: %v", err)
		}
		if ev.Account != "alice" || ev.Column != 3 || ev.Row != 5 {
			t.Errorf("事件内容不匹配: %+v", ev)
		}
	}
}

// TestNotifierWinPush 测试终局事件同时推给订阅者和胜者账户
func TestNotifierWinPush(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	alice := newTestClient(hub, "c1", 1, "alice")
	alice.MatchID = 7
	bob := newTestClient(hub, "c2", 2, "bob")
	bob.MatchID = 7
	hub.Register(alice)
	hub.Register(bob)
	waitOnline(t, hub, 2)
	readMessage(t, alice)
	readMessage(t, bob)

	notifier := NewEventNotifier(hub, testRules(), zap.NewNop())
	notifier.Notify(game.Event{
		Type:      game.EventSessionWon,
		SessionID: 7,
		Winner:    "alice",
		Prize:     700,
	})

	// alice既是订阅者又是胜者，收到两条
	for i := 0; i < 2; i++ {
		msg := readMessage(t, alice)
		if msg.Type != MessageTypeMatchWon {
			t.Errorf("消息类型不匹配，期望%s，实际%s", MessageTypeMatchWon, msg.Type)
		}
	}

	msg := readMessage(t, bob)
	if msg.Type != MessageTypeMatchWon {
		t.Errorf("消息类型不匹配，期望%s，实际%s", MessageTypeMatchWon, msg.Type)
	}
	var ev game.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("解析事件失败: %v", err)
	}
	if ev.Winner != "alice" || ev.Prize != 700 {
		t.Errorf("事件内容不匹配: %+v", ev)
	}
}

// TestNotifierCreatedBroadcast 测试对局创建事件全量广播
func TestNotifierCreatedBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	c1 := newTestClient(hub, "c1", 1, "alice")
	c2 := newTestClient(hub, "c2", 2, "bob")
	hub.Register(c1)
	hub.Register(c2)
	waitOnline(t, hub, 2)
	readMessage(t, c1)
	readMessage(t, c2)

	notifier := NewEventNotifier(hub, testRules(), zap.NewNop())
	notifier.Notify(game.Event{
		Type:      game.EventSessionCreated,
		SessionID: 9,
		Account:   "carol",
	})

	for _, c := range []*Client{c1, c2} {
		msg := readMessage(t, c)
		if msg.Type != MessageTypeMatchCreated || msg.MatchID != 9 {
			t.Errorf("广播消息不匹配: type=%s match_id=%d", msg.Type, msg.MatchID)
		}
	}
}

// TestMessageTypeMapping 测试事件类型到消息类型的映射
func TestMessageTypeMapping(t *testing.T) {
	cases := []struct {
		event game.EventType
		want  string
	}{
		{game.EventSessionCreated, MessageTypeMatchCreated},
		{game.EventMovePlayed, MessageTypeMovePlayed},
		{game.EventSessionWon, MessageTypeMatchWon},
		{game.EventSessionDrawn, MessageTypeMatchDrawn},
		{game.EventSessionResigned, MessageTypeMatchResigned},
		{game.EventForfeitClaimed, MessageTypeMatchForfeited},
	}

	for _, c := range cases {
		if got := messageTypeFor(c.event); got != c.want {
			t.Errorf("映射不匹配: %s -> %s，期望%s", c.event, got, c.want)
		}
	}
}

// TestNotifierFees 测试结算日志的手续费口径
func TestNotifierFees(t *testing.T) {
	notifier := NewEventNotifier(NewHub(zap.NewNop()), testRules(), zap.NewNop())

	if fee := notifier.winFee(700); fee != 35 {
		t.Errorf("整池手续费不匹配，期望35，实际%d", fee)
	}
	// 不足一个百分点的池子不抽成
	if fee := notifier.winFee(3); fee != 0 {
		t.Errorf("小池手续费不匹配，期望0，实际%d", fee)
	}
	// 7的半池是3，各自抽成取整为0
	if fee := notifier.drawFee(7); fee != 0 {
		t.Errorf("平局手续费不匹配，期望0，实际%d", fee)
	}
	if fee := notifier.drawFee(200); fee != 10 {
		t.Errorf("平局手续费不匹配，期望10，实际%d", fee)
	}
}
