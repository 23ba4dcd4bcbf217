package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

// waitOnline 等待在线人数达到期望值
func waitOnline(t *testing.T, hub *Hub, want int) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if hub.GetOnlineCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("在线人数未达到%d，当前%d", want, hub.GetOnlineCount())
}

// readMessage 从客户端发送队列里取一条消息
func readMessage(t *testing.T, client *Client) *Message {
	t.Helper()
	select {
	case data, ok := <-client.Send:
		if !ok {
			t.Fatal("发送通道已关闭")
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("解析消息失败: %v", err)
		}
		return &msg
	case <-time.After(time.Second):
		t.Fatal("等待消息超时")
	}
	return nil
}

// newTestClient 构造不带底层连接的客户端，读写泵不启动
func newTestClient(hub *Hub, id string, userID uint, account string) *Client {
	return &Client{
		ID:      id,
		UserID:  userID,
		Account: account,
		Hub:     hub,
		Send:    make(chan []byte, 16),
	}
}

// TestHubRegisterAndUnregister 测试客户端注册与注销
func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	client := newTestClient(hub, "c1", 1, "alice")
	hub.Register(client)
	waitOnline(t, hub, 1)

	// 注册后收到连接成功消息
	msg := readMessage(t, client)
	if msg.Type != MessageTypeConnected {
		t.Errorf("消息类型不匹配，期望%s，实际%s", MessageTypeConnected, msg.Type)
	}

	users := hub.GetOnlineUsers()
	if len(users) != 1 || users[0] != 1 {
		t.Errorf("在线用户列表不匹配: %v", users)
	}

	hub.Unregister(client)
	waitOnline(t, hub, 0)

	// 注销后通道被关闭
	select {
	case _, ok := <-client.Send:
		if ok {
			t.Error("注销后不应再收到消息")
		}
	case <-time.After(time.Second):
		t.Error("等待通道关闭超时")
	}
}

// TestHubSendToUser 测试按用户ID定向发送
func TestHubSendToUser(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	client := newTestClient(hub, "c1", 1, "alice")
	hub.Register(client)
	waitOnline(t, hub, 1)
	readMessage(t, client) // 排掉连接成功消息

	msg := &Message{
		Type:      MessageTypeBalanceUpdate,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"balance":900}`),
	}
	if err := hub.SendToUser(1, msg); err != nil {
		t.Fatalf("发送失败: %v", err)
	}

	got := readMessage(t, client)
	if got.Type != MessageTypeBalanceUpdate {
		t.Errorf("消息类型不匹配，期望%s，实际%s", MessageTypeBalanceUpdate, got.Type)
	}

	// 未连接的用户
	if err := hub.SendToUser(42, msg); err != ErrUserNotConnected {
		t.Errorf("期望ErrUserNotConnected，实际%v", err)
	}
}

// TestHubSendToAccount 测试按结算账户定向发送
func TestHubSendToAccount(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	alice := newTestClient(hub, "c1", 1, "alice")
	bob := newTestClient(hub, "c2", 2, "bob")
	hub.Register(alice)
	hub.Register(bob)
	waitOnline(t, hub, 2)
	readMessage(t, alice)
	readMessage(t, bob)

	msg := &Message{
		Type:      MessageTypeMatchWon,
		MatchID:   7,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"winner":"alice"}`),
	}
	if err := hub.SendToAccount("alice", msg); err != nil {
		t.Fatalf("发送失败: %v", err)
	}

	got := readMessage(t, alice)
	if got.Type != MessageTypeMatchWon || got.MatchID != 7 {
		t.Errorf("消息不匹配: type=%s match_id=%d", got.Type, got.MatchID)
	}

	// bob不应收到
	select {
	case data := <-bob.Send:
		t.Errorf("bob不应收到消息: %s", string(data))
	case <-time.After(100 * time.Millisecond):
	}

	if err := hub.SendToAccount("ghost", msg); err != ErrUserNotConnected {
		t.Errorf("期望ErrUserNotConnected，实际%v", err)
	}
}

// TestHubSendToMatch 测试对局订阅推送
func TestHubSendToMatch(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	watcher := newTestClient(hub, "c1", 1, "alice")
	watcher.MatchID = 7
	other := newTestClient(hub, "c2", 2, "bob")
	other.MatchID = 8
	hub.Register(watcher)
	hub.Register(other)
	waitOnline(t, hub, 2)
	readMessage(t, watcher)
	readMessage(t, other)

	msg := &Message{
		Type:      MessageTypeMovePlayed,
		MatchID:   7,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"column":3}`),
	}
	if err := hub.SendToMatch(7, msg); err != nil {
		t.Fatalf("发送失败: %v", err)
	}

	got := readMessage(t, watcher)
	if got.Type != MessageTypeMovePlayed {
		t.Errorf("消息类型不匹配，期望%s，实际%s", MessageTypeMovePlayed, got.Type)
	}

	// 订阅其他对局的客户端不应收到
	select {
	case data := <-other.Send:
		t.Errorf("不应收到消息: %s", string(data))
	case <-time.After(100 * time.Millisecond):
	}

	// 无人订阅的对局
	if err := hub.SendToMatch(99, msg); err != ErrNoSubscriber {
		t.Errorf("期望ErrNoSubscriber，实际%v", err)
	}
}

// TestHubBroadcast 测试全量广播
func TestHubBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	c1 := newTestClient(hub, "c1", 1, "alice")
	c2 := newTestClient(hub, "c2", 2, "bob")
	hub.Register(c1)
	hub.Register(c2)
	waitOnline(t, hub, 2)
	readMessage(t, c1)
	readMessage(t, c2)

	hub.Broadcast(&Message{
		Type:      MessageTypeMatchCreated,
		MatchID:   9,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"account":"alice"}`),
	})

	for _, c := range []*Client{c1, c2} {
		got := readMessage(t, c)
		if got.Type != MessageTypeMatchCreated || got.MatchID != 9 {
			t.Errorf("广播消息不匹配: type=%s match_id=%d", got.Type, got.MatchID)
		}
	}
}
