package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/connect4-game/internal/middleware"
	ws "github.com/wfunc/connect4-game/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 在生产环境中应该检查Origin
				return true
			},
		},
		logger: logger,
	}
}

// MatchWebSocket 对局WebSocket连接
//
// 未认证的连接以访客身份接入，只能收到broadcast类消息；
// 认证后的连接额外按用户和账号索引，可收到定向推送。
func (h *WebSocketHandler) MatchWebSocket(c *gin.Context) {
	// 获取用户身份（可选）
	userID, _ := middleware.GetUserID(c)
	account, _ := middleware.GetUsername(c)

	if userID == 0 {
		h.logger.Info("WebSocket访客连接", zap.String("ip", c.ClientIP()))
	}

	// 升级为WebSocket连接
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.Uint("user_id", userID),
			zap.Error(err))
		return
	}

	// 创建客户端
	client := ws.NewClient(h.hub, conn, userID, account)

	// 连接时可直接订阅对局
	if raw := c.Query("match_id"); raw != "" {
		if matchID, err := strconv.ParseUint(raw, 10, 64); err == nil && matchID > 0 {
			client.MatchID = matchID
		}
	}

	// 注册客户端
	h.hub.Register(client)

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.Uint("user_id", userID),
		zap.String("account", account),
		zap.Uint64("match_id", client.MatchID))
}

// GetOnlineCount 获取在线人数
func (h *WebSocketHandler) GetOnlineCount(c *gin.Context) {
	count := h.hub.GetOnlineCount()
	users := h.hub.GetOnlineUsers()

	c.JSON(http.StatusOK, gin.H{
		"online_count": count,
		"online_users": users,
	})
}
