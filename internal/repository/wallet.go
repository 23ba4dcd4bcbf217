package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/connect4-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientBalance 可用余额不足以完成扣款
var ErrInsufficientBalance = errors.New("余额不足")

// WalletRepository 钱包仓储接口
// 钱包的可用余额归服务层管：扣押注、退押注、提现入账都走这里。
// 账本侧的奖金与战绩列归引擎管，见 Store
type WalletRepository interface {
	BaseRepository
	Create(ctx context.Context, wallet *models.Wallet) error
	FindByUserID(ctx context.Context, userID uint) (*models.Wallet, error)
	FindByAccountID(ctx context.Context, accountID string) (*models.Wallet, error)
	AddBalance(ctx context.Context, accountID string, amount int64) error
	DeductBalance(ctx context.Context, accountID string, amount int64) error
	LockForUpdate(ctx context.Context, accountID string) (*models.Wallet, error)
	AddStakeStats(ctx context.Context, accountID string, stake int64) error
	AddPrizeStats(ctx context.Context, accountID string, prize int64) error
	AddWithdrawStats(ctx context.Context, accountID string, amount int64) error
}

// walletRepo 钱包仓储实现
type walletRepo struct {
	*BaseRepo
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建钱包
func (r *walletRepo) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

// FindByUserID 根据用户ID查找钱包
func (r *walletRepo) FindByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("钱包不存在")
		}
		return nil, err
	}
	return &wallet, nil
}

// FindByAccountID 根据账户标识查找钱包
func (r *walletRepo) FindByAccountID(ctx context.Context, accountID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("钱包不存在")
		}
		return nil, err
	}
	return &wallet, nil
}

// AddBalance 增加可用余额
func (r *walletRepo) AddBalance(ctx context.Context, accountID string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("钱包不存在")
	}
	return nil
}

// DeductBalance 扣减可用余额
// 余额校验和扣减在同一条语句里完成，并发扣款不会扣穿
func (r *walletRepo) DeductBalance(ctx context.Context, accountID string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ? AND balance >= ?", accountID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}

	return nil
}

// LockForUpdate 锁定钱包用于更新（悲观锁）
func (r *walletRepo) LockForUpdate(ctx context.Context, accountID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID).
		First(&wallet).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("钱包不存在")
		}
		return nil, err
	}
	return &wallet, nil
}

// AddStakeStats 累加押注统计
func (r *walletRepo) AddStakeStats(ctx context.Context, accountID string, stake int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ?", accountID).
		Update("total_stake", gorm.Expr("total_stake + ?", stake)).Error
}

// AddPrizeStats 累加提回奖金统计
func (r *walletRepo) AddPrizeStats(ctx context.Context, accountID string, prize int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ?", accountID).
		Update("total_prize", gorm.Expr("total_prize + ?", prize)).Error
}

// AddWithdrawStats 累加提现统计
func (r *walletRepo) AddWithdrawStats(ctx context.Context, accountID string, amount int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ?", accountID).
		Update("total_withdraw", gorm.Expr("total_withdraw + ?", amount)).Error
}

// WithTx 使用事务
func (r *walletRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &walletRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// TransactionRepository 资金流水仓储接口
type TransactionRepository interface {
	BaseRepository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uint) (*models.Transaction, error)
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Transaction, error)
	FindByUserID(ctx context.Context, userID uint, pagination *Pagination) ([]*models.Transaction, error)
	FindByRef(ctx context.Context, refType, refID string) ([]*models.Transaction, error)
	UpdateStatus(ctx context.Context, orderNo string, status string) error
}

// transactionRepo 资金流水仓储实现
type transactionRepo struct {
	*BaseRepo
}

// NewTransactionRepository 创建资金流水仓储
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建流水记录
func (r *transactionRepo) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

// FindByID 根据ID查找流水
func (r *transactionRepo) FindByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).First(&transaction, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("交易记录不存在")
		}
		return nil, err
	}
	return &transaction, nil
}

// FindByOrderNo 根据单号查找流水
func (r *transactionRepo) FindByOrderNo(ctx context.Context, orderNo string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("交易记录不存在")
		}
		return nil, err
	}
	return &transaction, nil
}

// FindByUserID 查找用户的流水记录
func (r *transactionRepo) FindByUserID(ctx context.Context, userID uint, pagination *Pagination) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	query := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)

	// 获取总数
	var total int64
	query.Count(&total)
	pagination.Total = total

	// 分页查询
	err := query.
		Limit(pagination.PageSize).
		Offset((pagination.Page - 1) * pagination.PageSize).
		Order("created_at DESC").
		Find(&transactions).Error

	return transactions, err
}

// FindByRef 查找关联对象的全部流水（如一局对局的押注明细）
func (r *transactionRepo) FindByRef(ctx context.Context, refType, refID string) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ?", refType, refID).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

// UpdateStatus 更新流水状态
func (r *transactionRepo) UpdateStatus(ctx context.Context, orderNo string, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("order_no = ?", orderNo).
		Update("status", status).Error
}

// WithTx 使用事务
func (r *transactionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &transactionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// WithdrawalRepository 提现记录仓储接口
type WithdrawalRepository interface {
	BaseRepository
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	Update(ctx context.Context, withdrawal *models.Withdrawal) error
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Withdrawal, error)
	FindByUserID(ctx context.Context, userID uint, pagination *Pagination) ([]*models.Withdrawal, error)
	MarkSuccess(ctx context.Context, orderNo string) error
	MarkFailed(ctx context.Context, orderNo string, reason string) error
}

// withdrawalRepo 提现记录仓储实现
type withdrawalRepo struct {
	*BaseRepo
}

// NewWithdrawalRepository 创建提现记录仓储
func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建提现记录
func (r *withdrawalRepo) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

// Update 更新提现记录
func (r *withdrawalRepo) Update(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Save(withdrawal).Error
}

// FindByOrderNo 根据单号查找提现记录
func (r *withdrawalRepo) FindByOrderNo(ctx context.Context, orderNo string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&withdrawal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("提现记录不存在")
		}
		return nil, err
	}
	return &withdrawal, nil
}

// FindByUserID 查找用户的提现记录
func (r *withdrawalRepo) FindByUserID(ctx context.Context, userID uint, pagination *Pagination) ([]*models.Withdrawal, error) {
	var withdrawals []*models.Withdrawal
	query := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("user_id = ?", userID)

	// 获取总数
	var total int64
	query.Count(&total)
	pagination.Total = total

	// 分页查询
	err := query.
		Limit(pagination.PageSize).
		Offset((pagination.Page - 1) * pagination.PageSize).
		Order("created_at DESC").
		Find(&withdrawals).Error

	return withdrawals, err
}

// MarkSuccess 标记提现成功
func (r *withdrawalRepo) MarkSuccess(ctx context.Context, orderNo string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("order_no = ?", orderNo).
		Updates(map[string]interface{}{
			"status":       "success",
			"processed_at": now,
		}).Error
}

// MarkFailed 标记提现失败
func (r *withdrawalRepo) MarkFailed(ctx context.Context, orderNo string, reason string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("order_no = ?", orderNo).
		Updates(map[string]interface{}{
			"status":       "failed",
			"fail_reason":  reason,
			"processed_at": now,
		}).Error
}

// WithTx 使用事务
func (r *withdrawalRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &withdrawalRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
