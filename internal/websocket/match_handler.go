package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/connect4-game/internal/service"
	"go.uber.org/zap"
)

// MatchMessageHandler WebSocket对局消息处理器
// 只处理订阅和查询类上行，对局动作一律走HTTP接口
type MatchMessageHandler struct {
	hub           *Hub
	matchService  service.MatchService
	walletService service.WalletService
	logger        *zap.Logger
}

// NewMatchMessageHandler 创建对局消息处理器
func NewMatchMessageHandler(hub *Hub, matchService service.MatchService, walletService service.WalletService, logger *zap.Logger) *MatchMessageHandler {
	return &MatchMessageHandler{
		hub:           hub,
		matchService:  matchService,
		walletService: walletService,
		logger:        logger,
	}
}

// HandleClientMessage 处理客户端消息
func (h *MatchMessageHandler) HandleClientMessage(client *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Error("解析消息失败",
			zap.String("client_id", client.ID),
			zap.Error(err))
		h.sendError(client, "消息格式错误")
		client.Close()
		return
	}

	// 验证消息类型不为空
	if msg.Type == "" {
		h.logger.Warn("收到空消息类型",
			zap.String("client_id", client.ID))
		h.sendError(client, "消息类型不能为空")
		client.Close()
		return
	}

	// 设置消息元数据
	msg.UserID = client.UserID
	msg.Timestamp = time.Now().Unix()

	h.logger.Debug("收到WebSocket消息",
		zap.String("client_id", client.ID),
		zap.String("type", msg.Type),
		zap.Uint("user_id", client.UserID))

	// 根据消息类型处理
	switch msg.Type {
	case MessageTypePing:
		h.handlePing(client)

	case MessageTypePong:
		// 客户端响应服务端ping
		h.logger.Debug("收到pong", zap.String("client_id", client.ID))

	case MessageTypeHeartbeat:
		h.handleHeartbeat(client)

	case MessageTypeSubscribe:
		h.handleSubscribe(client, &msg)

	case MessageTypeGetState:
		h.handleGetState(client, &msg)

	case MessageTypeGetBalance:
		h.handleGetBalance(client)

	default:
		h.logger.Warn("未知消息类型",
			zap.String("client_id", client.ID),
			zap.String("type", msg.Type))
		h.sendError(client, "不支持的消息类型: "+msg.Type)
		client.Close()
	}
}

// handlePing 处理ping消息
func (h *MatchMessageHandler) handlePing(client *Client) {
	response := &Message{
		Type:      MessageTypePong,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(fmt.Sprintf(`{"server_time":%d}`, time.Now().Unix())),
	}
	h.hub.SendToClient(client.ID, response)
}

// handleHeartbeat 处理心跳消息
func (h *MatchMessageHandler) handleHeartbeat(client *Client) {
	response := &Message{
		Type:      MessageTypeHeartbeat,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(fmt.Sprintf(`{"status":"alive","server_time":%d}`, time.Now().Unix())),
	}
	h.hub.SendToClient(client.ID, response)
}

// handleSubscribe 处理对局订阅
// 订阅成功后该客户端开始接收对局推送，并立即回发一份当前局面
func (h *MatchMessageHandler) handleSubscribe(client *Client, msg *Message) {
	matchID := msg.MatchID
	if matchID == 0 && msg.Data != nil {
		var data struct {
			MatchID uint64 `json:"match_id"`
		}
		if err := json.Unmarshal(msg.Data, &data); err == nil {
			matchID = data.MatchID
		}
	}
	if matchID == 0 {
		h.sendError(client, "缺少对局ID")
		return
	}

	ctx := context.Background()
	view, err := h.matchService.GetBoard(ctx, matchID)
	if err != nil {
		h.logger.Warn("订阅的对局不存在",
			zap.String("client_id", client.ID),
			zap.Uint64("match_id", matchID),
			zap.Error(err))
		h.sendError(client, "对局不存在")
		return
	}

	client.MatchID = matchID

	h.logger.Info("客户端订阅对局",
		zap.String("client_id", client.ID),
		zap.Uint64("match_id", matchID))

	h.sendState(client, view)
}

// handleGetState 处理局面查询
func (h *MatchMessageHandler) handleGetState(client *Client, msg *Message) {
	matchID := msg.MatchID
	if matchID == 0 {
		matchID = client.MatchID
	}

	// 没有订阅也没有指定对局
	if matchID == 0 {
		response := &Message{
			Type:      MessageTypeMatchState,
			UserID:    client.UserID,
			Timestamp: time.Now().Unix(),
			Data:      json.RawMessage(`{"state":"idle","message":"当前没有订阅的对局"}`),
		}
		h.hub.SendToClient(client.ID, response)
		return
	}

	ctx := context.Background()
	view, err := h.matchService.GetBoard(ctx, matchID)
	if err != nil {
		h.sendError(client, "对局不存在")
		return
	}

	h.sendState(client, view)
}

// handleGetBalance 处理余额查询
func (h *MatchMessageHandler) handleGetBalance(client *Client) {
	if client.UserID == 0 {
		h.sendError(client, "未登录")
		return
	}

	ctx := context.Background()
	balance, err := h.walletService.GetBalance(ctx, client.UserID)
	if err != nil {
		h.logger.Error("获取余额失败",
			zap.Uint("user_id", client.UserID),
			zap.Error(err))
		h.sendError(client, "获取余额失败")
		return
	}

	data, _ := json.Marshal(balance)
	response := &Message{
		Type:      MessageTypeBalanceUpdate,
		UserID:    client.UserID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
	h.hub.SendToClient(client.ID, response)
}

// sendState 回发局面
func (h *MatchMessageHandler) sendState(client *Client, view *service.BoardView) {
	data, err := json.Marshal(view)
	if err != nil {
		h.logger.Error("序列化局面失败", zap.Error(err))
		return
	}

	response := &Message{
		Type:      MessageTypeMatchState,
		UserID:    client.UserID,
		MatchID:   view.MatchID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
	h.hub.SendToClient(client.ID, response)
}

// sendError 发送错误消息
func (h *MatchMessageHandler) sendError(client *Client, message string) {
	errorMsg := &Message{
		Type:      MessageTypeError,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(fmt.Sprintf(`{"error":"%s","timestamp":%d}`, message, time.Now().Unix())),
	}
	h.hub.SendToClient(client.ID, errorMsg)
}
