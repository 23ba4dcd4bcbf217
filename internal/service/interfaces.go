package service

import (
	"context"
	"time"

	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/models"
)

// AuthService 认证服务接口
type AuthService interface {
	// 注册登录
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context, userID uint, token string) error
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)

	// 验证
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
	ValidateSession(ctx context.Context, sessionID string) (*models.UserSession, error)

	// 会话管理
	GetActiveSessions(ctx context.Context, userID uint) ([]*models.UserSession, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeAllSessions(ctx context.Context, userID uint) error
}

// UserService 用户服务接口
type UserService interface {
	// 用户管理
	GetUserByID(ctx context.Context, userID uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, userID uint, updates map[string]interface{}) error
	UpdatePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error
	GetUserList(ctx context.Context, page, pageSize int) ([]*models.User, int64, error)

	// 用户状态
	UpdateUserStatus(ctx context.Context, userID uint, status string) error
	BanUser(ctx context.Context, userID uint, reason string, duration time.Duration) error
	UnbanUser(ctx context.Context, userID uint) error

	// 用户统计
	GetUserStats(ctx context.Context, userID uint) (*UserStats, error)
	GetUserMatchHistory(ctx context.Context, userID uint, page, pageSize int) ([]*models.Match, int64, error)
}

// MatchService 对局服务
// 负责钱包与引擎之间的资金编排：落子前扣押注，引擎拒绝后退款，
// 每一步都留资金流水与落子审计
type MatchService interface {
	CreateMatch(ctx context.Context, userID uint, opponent string) (*game.Session, error)
	Move(ctx context.Context, userID uint, matchID uint64, column int) (*game.MoveResult, error)
	Resign(ctx context.Context, userID uint, matchID uint64) (*game.Session, error)
	ClaimForfeit(ctx context.Context, userID uint, matchID uint64) (*game.Session, error)

	// 查询
	GetMatch(ctx context.Context, matchID uint64) (*game.Session, error)
	GetBoard(ctx context.Context, matchID uint64) (*BoardView, error)
	ListMatches(ctx context.Context, page, pageSize int) ([]*game.Session, int64, error)
	ListOpenMatches(ctx context.Context, page, pageSize int) ([]*models.Match, int64, error)
	GetMatchMoves(ctx context.Context, matchID uint64) ([]*models.MatchMove, error)
	GetPlayerMatches(ctx context.Context, userID uint, page, pageSize int) ([]*models.Match, int64, error)
}

// WalletService 钱包服务
// 可用余额、奖金提现与资金流水的查询入口；
// 奖金从账本提回钱包要经过引擎侧的清零-转账-补偿流程
type WalletService interface {
	GetBalance(ctx context.Context, userID uint) (*BalanceResponse, error)
	Withdraw(ctx context.Context, userID uint) (*WithdrawResponse, error)
	GetTransactions(ctx context.Context, userID uint, page, pageSize int) ([]*models.Transaction, int64, error)
	GetWithdrawals(ctx context.Context, userID uint, page, pageSize int) ([]*models.Withdrawal, int64, error)
	GetLeaderboard(ctx context.Context, page, pageSize int) ([]*LeaderboardEntry, int64, error)
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=20"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Nickname        string `json:"nickname"`
	Avatar          string `json:"avatar"`
	IP              string `json:"-"` // 客户端IP，由handler设置
}

// LoginRequest 登录请求
type LoginRequest struct {
	Account  string `json:"account" binding:"required"` // 用户名/邮箱
	Password string `json:"password" binding:"required"`
	Device   string `json:"device"`
	IP       string `json:"ip"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	TokenType    string       `json:"token_type"`
}

// TokenClaims JWT Claims
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// UserStats 用户统计
type UserStats struct {
	TotalMatches int64     `json:"total_matches"`
	Wins         int64     `json:"wins"`
	Draws        int64     `json:"draws"`
	LiveMatches  int64     `json:"live_matches"`
	TotalPool    int64     `json:"total_pool"`
	TotalStake   int64     `json:"total_stake"`
	TotalPrize   int64     `json:"total_prize"`
	WinRate      float64   `json:"win_rate"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// BoardView 棋盘快照
type BoardView struct {
	MatchID   uint64 `json:"match_id"`
	Cells     string `json:"cells"`  // 42字符编码，自顶行到底行逐行拼接
	Render    string `json:"render"` // 人类可读的棋盘图
	Status    string `json:"status"`
	MoveCount int    `json:"move_count"`
	Turn      string `json:"turn,omitempty"` // 当前轮到落子的账户
}

// BalanceResponse 余额查询响应
type BalanceResponse struct {
	AccountID     string `json:"account_id"`
	Balance       int64  `json:"balance"`        // 钱包可用余额（分）
	PrizeBalance  int64  `json:"prize_balance"`  // 账本侧可提现奖金（分）
	Score         int64  `json:"score"`          // 税前累计战绩
	TotalStake    int64  `json:"total_stake"`    // 累计押注
	TotalPrize    int64  `json:"total_prize"`    // 累计提回奖金
	TotalWithdraw int64  `json:"total_withdraw"` // 累计提现
}

// WithdrawResponse 提现响应
type WithdrawResponse struct {
	Amount  int64 `json:"amount"`  // 本次提回的奖金（分）
	Balance int64 `json:"balance"` // 提现后的钱包可用余额
}

// LeaderboardEntry 获奖榜条目，按首次获奖登记序号排列
type LeaderboardEntry struct {
	RankIndex uint64 `json:"rank_index"`
	Account   string `json:"account"`
	Score     int64  `json:"score"`
}
