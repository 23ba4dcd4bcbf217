package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/connect4-game/internal/middleware"
	"github.com/wfunc/connect4-game/internal/service"
	ws "github.com/wfunc/connect4-game/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	services       *service.Services
	hub            *ws.Hub
	authHandler    *AuthHandler
	matchHandler   *MatchHandler
	walletHandler  *WalletHandler
	userHandler    *UserHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
//
// 先建WebSocket中心再建服务，引擎产生的对局事件经由通知器推送；
// 客户端上行消息由对局消息处理器分发。
func NewRouter(db *gorm.DB, config *service.Config, log *zap.Logger) (*Router, error) {
	if config == nil {
		config = service.DefaultConfig()
	}

	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	hub := ws.NewHub(log)
	notifier := ws.NewEventNotifier(hub, config.Rules, log)

	// 创建服务
	services, err := service.NewServices(db, config, notifier, log)
	if err != nil {
		return nil, err
	}

	hub.SetMessageHandler(ws.NewMatchMessageHandler(hub, services.Match, services.Wallet, log))
	go hub.Run()

	// 创建处理器
	authHandler := NewAuthHandler(services.Auth, services.User)
	matchHandler := NewMatchHandler(services.Match, log)
	walletHandler := NewWalletHandler(services.Wallet, log)
	userHandler := NewUserHandler(services.User, log)
	wsHandler := NewWebSocketHandler(hub, log)

	// 创建中间件
	authMiddleware := middleware.NewAuthMiddleware(services.Auth)

	router := &Router{
		engine:         engine,
		db:             db,
		services:       services,
		hub:            hub,
		authHandler:    authHandler,
		matchHandler:   matchHandler,
		walletHandler:  walletHandler,
		userHandler:    userHandler,
		wsHandler:      wsHandler,
		authMiddleware: authMiddleware,
		log:            log,
	}

	// 设置路由
	router.setupRoutes()

	return router, nil
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// WebSocket路由（访客可连，认证后收定向推送）
	wsGroup := r.engine.Group("/ws")
	wsGroup.Use(r.authMiddleware.OptionalAuth())
	{
		wsGroup.GET("", r.wsHandler.MatchWebSocket)
		wsGroup.GET("/online", r.wsHandler.GetOnlineCount)
	}

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)

			// 需要认证的路由
			authRequired := auth.Group("")
			authRequired.Use(r.authMiddleware.RequireAuth())
			{
				authRequired.POST("/logout", r.authHandler.Logout)
				authRequired.GET("/profile", r.authHandler.GetProfile)
				authRequired.PUT("/profile", r.authHandler.UpdateProfile)
				authRequired.PUT("/password", r.authHandler.UpdatePassword)
				authRequired.GET("/sessions", r.authHandler.GetSessions)
				authRequired.DELETE("/sessions/:session_id", r.authHandler.RevokeSession)
				authRequired.DELETE("/sessions", r.authHandler.RevokeAllSessions)
			}
		}

		// 对局查询路由（可匿名）
		matches := v1.Group("/matches")
		matches.Use(r.authMiddleware.OptionalAuth())
		{
			matches.GET("", r.matchHandler.ListMatches)
			matches.GET("/open", r.matchHandler.ListOpenMatches)
			matches.GET("/:id", r.matchHandler.GetMatch)
			matches.GET("/:id/board", r.matchHandler.GetBoard)
			matches.GET("/:id/moves", r.matchHandler.GetMoves)
		}

		// 对局动作路由（需要认证）
		matchActions := v1.Group("/matches")
		matchActions.Use(r.authMiddleware.RequireAuth())
		{
			matchActions.POST("", r.matchHandler.CreateMatch)
			matchActions.GET("/mine", r.matchHandler.MyMatches)
			matchActions.POST("/:id/move", r.matchHandler.Move)
			matchActions.POST("/:id/resign", r.matchHandler.Resign)
			matchActions.POST("/:id/claim", r.matchHandler.ClaimForfeit)
		}

		// 用户查询路由（需要认证）
		users := v1.Group("/users")
		users.Use(r.authMiddleware.RequireAuth())
		{
			users.GET("/:id", r.userHandler.GetUser)
			users.GET("/:id/stats", r.userHandler.GetUserStats)
			users.GET("/:id/matches", r.userHandler.GetUserMatches)
		}

		// 钱包相关路由（需要认证）
		wallet := v1.Group("/wallet")
		wallet.Use(r.authMiddleware.RequireAuth())
		{
			wallet.GET("/balance", r.walletHandler.GetBalance)
			wallet.POST("/withdraw", r.walletHandler.Withdraw)
			wallet.GET("/transactions", r.walletHandler.GetTransactions)
			wallet.GET("/withdrawals", r.walletHandler.GetWithdrawals)
		}

		// 排行榜（公开）
		v1.GET("/leaderboard", r.walletHandler.GetLeaderboard)

		// 管理员路由（需要管理员权限）
		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.RequireRole("admin"))
		{
			admin.GET("/users", r.userHandler.ListUsers)
			admin.PUT("/users/:id/status", r.userHandler.UpdateUserStatus)
			admin.POST("/users/:id/ban", r.userHandler.BanUser)
			admin.POST("/users/:id/unban", r.userHandler.UnbanUser)
		}
	}

	// API文档路由
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Services 获取服务集合（用于后台任务等场景）
func (r *Router) Services() *service.Services {
	return r.services
}
