package repository

import (
	"context"
	"sync"

	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/models"
	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 事务管理器
	txManager TransactionManager

	// 仓储实例（使用懒加载）
	userOnce sync.Once
	user     UserRepository

	userAuthOnce sync.Once
	userAuth     UserAuthRepository

	userSessionOnce sync.Once
	userSession     UserSessionRepository

	// 资金相关
	walletOnce sync.Once
	wallet     WalletRepository

	transactionOnce sync.Once
	transaction     TransactionRepository

	withdrawalOnce sync.Once
	withdrawal     WithdrawalRepository

	// 对局相关
	matchOnce sync.Once
	match     MatchRepository

	matchMoveOnce sync.Once
	matchMove     MatchMoveRepository

	// 引擎存储
	storeOnce sync.Once
	store     game.Store
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:        db,
		txManager: NewTransactionManager(db),
	}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Transaction 获取事务管理器
func (m *Manager) Transaction() TransactionManager {
	return m.txManager
}

// User 获取用户仓储
func (m *Manager) User() UserRepository {
	m.userOnce.Do(func() {
		m.user = NewUserRepository(m.db)
	})
	return m.user
}

// UserAuth 获取用户认证仓储
func (m *Manager) UserAuth() UserAuthRepository {
	m.userAuthOnce.Do(func() {
		m.userAuth = NewUserAuthRepository(m.db)
	})
	return m.userAuth
}

// UserSession 获取用户会话仓储
func (m *Manager) UserSession() UserSessionRepository {
	m.userSessionOnce.Do(func() {
		m.userSession = NewUserSessionRepository(m.db)
	})
	return m.userSession
}

// Wallet 获取钱包仓储
func (m *Manager) Wallet() WalletRepository {
	m.walletOnce.Do(func() {
		m.wallet = NewWalletRepository(m.db)
	})
	return m.wallet
}

// TransactionRepo 获取资金流水仓储
func (m *Manager) TransactionRepo() TransactionRepository {
	m.transactionOnce.Do(func() {
		m.transaction = NewTransactionRepository(m.db)
	})
	return m.transaction
}

// Withdrawal 获取提现记录仓储
func (m *Manager) Withdrawal() WithdrawalRepository {
	m.withdrawalOnce.Do(func() {
		m.withdrawal = NewWithdrawalRepository(m.db)
	})
	return m.withdrawal
}

// Match 获取对局仓储
func (m *Manager) Match() MatchRepository {
	m.matchOnce.Do(func() {
		m.match = NewMatchRepository(m.db)
	})
	return m.match
}

// MatchMove 获取落子记录仓储
func (m *Manager) MatchMove() MatchMoveRepository {
	m.matchMoveOnce.Do(func() {
		m.matchMove = NewMatchMoveRepository(m.db)
	})
	return m.matchMove
}

// Store 获取对局引擎的持久化存储
func (m *Manager) Store() game.Store {
	m.storeOnce.Do(func() {
		m.store = NewStore(m.db)
	})
	return m.store
}

// WithTransaction 在事务中执行操作
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.txManager.WithTransaction(ctx, fn)
}

// WithReadOnlyTransaction 在只读事务中执行操作
func (m *Manager) WithReadOnlyTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	opts := &TxOptions{
		ReadOnly: true,
	}
	return m.txManager.WithTransactionOptions(ctx, opts, fn)
}

// RepositoryProvider 仓储提供者接口，用于依赖注入
type RepositoryProvider interface {
	GetManager() *Manager
	User() UserRepository
	Wallet() WalletRepository
	Match() MatchRepository
	Store() game.Store
}

// provider 仓储提供者实现
type provider struct {
	manager *Manager
}

// NewProvider 创建仓储提供者
func NewProvider(db *gorm.DB) RepositoryProvider {
	return &provider{
		manager: NewManager(db),
	}
}

// GetManager 获取仓储管理器
func (p *provider) GetManager() *Manager {
	return p.manager
}

// User 获取用户仓储
func (p *provider) User() UserRepository {
	return p.manager.User()
}

// Wallet 获取钱包仓储
func (p *provider) Wallet() WalletRepository {
	return p.manager.Wallet()
}

// Match 获取对局仓储
func (p *provider) Match() MatchRepository {
	return p.manager.Match()
}

// Store 获取引擎存储
func (p *provider) Store() game.Store {
	return p.manager.Store()
}

// UnitOfWork 工作单元模式实现
type UnitOfWork struct {
	tx         *Transaction
	manager    *Manager
	operations []func(*Transaction) error
}

// NewUnitOfWork 创建工作单元
func NewUnitOfWork(manager *Manager) *UnitOfWork {
	return &UnitOfWork{
		manager:    manager,
		operations: make([]func(*Transaction) error, 0),
	}
}

// Register 注册操作
func (u *UnitOfWork) Register(op func(*Transaction) error) {
	u.operations = append(u.operations, op)
}

// Commit 提交所有操作
func (u *UnitOfWork) Commit(ctx context.Context) error {
	return u.manager.WithTransaction(ctx, func(tx *Transaction) error {
		for _, op := range u.operations {
			if err := op(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear 清除所有操作
func (u *UnitOfWork) Clear() {
	u.operations = u.operations[:0]
}

// BatchOperator 批量操作器
type BatchOperator struct {
	manager *Manager
}

// NewBatchOperator 创建批量操作器
func NewBatchOperator(manager *Manager) *BatchOperator {
	return &BatchOperator{manager: manager}
}

// CreateUserWithWallet 注册时一并建好用户、认证信息和钱包
func (b *BatchOperator) CreateUserWithWallet(
	ctx context.Context,
	user *models.User,
	auth *models.UserAuth,
	wallet *models.Wallet,
) error {
	return b.manager.WithTransaction(ctx, func(tx *Transaction) error {
		// 创建用户
		if err := tx.User().Create(ctx, user); err != nil {
			return err
		}

		// 认证信息和钱包都挂在新用户上
		auth.UserID = user.ID
		if err := tx.UserAuth().Create(ctx, auth); err != nil {
			return err
		}

		wallet.UserID = user.ID
		return tx.Wallet().Create(ctx, wallet)
	})
}

// RecordMoveWithAudit 落子记录和押注流水一起入库
func (b *BatchOperator) RecordMoveWithAudit(
	ctx context.Context,
	move *models.MatchMove,
	audit *models.Transaction,
) error {
	return b.manager.WithTransaction(ctx, func(tx *Transaction) error {
		if err := tx.MatchMove().Create(ctx, move); err != nil {
			return err
		}
		if audit != nil {
			return tx.TransactionRepo().Create(ctx, audit)
		}
		return nil
	})
}
