package service

import (
	"time"

	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/repository"
	"github.com/wfunc/connect4-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config 服务配置
type Config struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	InitialBalance     int64 // 新钱包的初始可用余额（分）
	Rules              game.Rules
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		JWTSecret:          "your-secret-key-change-in-production",
		AccessTokenExpiry:  24 * time.Hour,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		InitialBalance:     1000,
		Rules: game.Rules{
			Stake:           1,
			ClaimWindow:     10 * time.Minute,
			FeePercent:      5,
			PlatformAccount: "platform",
		},
	}
}

// Services 服务集合
type Services struct {
	Auth   AuthService
	User   UserService
	Match  MatchService
	Wallet WalletService

	// 引擎与账本直接暴露给需要的调用方（比如后台任务）
	Engine *game.Engine
	Ledger *game.Ledger
}

// NewServices 创建服务集合
// notifier 为 nil 时引擎静默运行，对局事件不对外推送
func NewServices(db *gorm.DB, config *Config, notifier game.Notifier, log *zap.Logger) (*Services, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// 初始化仓储
	userRepo := repository.NewUserRepository(db)
	authRepo := repository.NewUserAuthRepository(db)
	sessionRepo := repository.NewUserSessionRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	moveRepo := repository.NewMatchMoveRepository(db)

	// 初始化JWT管理器
	jwtManager := utils.NewJWTManager(
		config.JWTSecret,
		config.AccessTokenExpiry,
		config.RefreshTokenExpiry,
	)

	// 初始化结算引擎：账本的提现经钱包转账适配器落地
	store := repository.NewStore(db)
	transfer := NewWalletTransfer(db, walletRepo, transactionRepo, withdrawalRepo, log)
	ledger := game.NewLedger(store, transfer, config.Rules, log)

	engine, err := game.NewEngine(store, ledger, config.Rules, notifier, log)
	if err != nil {
		return nil, err
	}

	// 初始化服务
	authService := NewAuthService(
		db,
		userRepo,
		authRepo,
		sessionRepo,
		walletRepo,
		jwtManager,
		config.InitialBalance,
		log,
	)

	userService := NewUserService(
		db,
		userRepo,
		authRepo,
		walletRepo,
		matchRepo,
		log,
	)

	matchService := NewMatchService(
		db,
		engine,
		walletRepo,
		transactionRepo,
		matchRepo,
		moveRepo,
		log,
	)

	walletService := NewWalletService(
		db,
		walletRepo,
		transactionRepo,
		withdrawalRepo,
		ledger,
		log,
	)

	return &Services{
		Auth:   authService,
		User:   userService,
		Match:  matchService,
		Wallet: walletService,
		Engine: engine,
		Ledger: ledger,
	}, nil
}
