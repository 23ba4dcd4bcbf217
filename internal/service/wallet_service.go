package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/wfunc/connect4-game/internal/errors"
	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/models"
	"github.com/wfunc/connect4-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// walletTransfer 账本提现落地到钱包的转账实现
// 账本侧的清零-转账-补偿流程把这里当外部收款方：
// 入账、统计、流水、提现单在同一事务里写完，
// 整体失败时账本会把在途金额补偿回去
type walletTransfer struct {
	db              *gorm.DB
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	withdrawalRepo  repository.WithdrawalRepository
	log             *zap.Logger
}

// NewWalletTransfer 创建钱包转账适配器
func NewWalletTransfer(
	db *gorm.DB,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	withdrawalRepo repository.WithdrawalRepository,
	log *zap.Logger,
) game.Transfer {
	return &walletTransfer{
		db:              db,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		withdrawalRepo:  withdrawalRepo,
		log:             log,
	}
}

// Transfer 把提现金额记入钱包可用余额
func (t *walletTransfer) Transfer(ctx context.Context, account string, amount int64) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		walletTx := t.walletRepo.WithTx(tx).(repository.WalletRepository)

		wallet, err := walletTx.LockForUpdate(ctx, account)
		if err != nil {
			return fmt.Errorf("锁定钱包失败: %w", err)
		}

		if err := walletTx.AddBalance(ctx, account, amount); err != nil {
			return fmt.Errorf("提现入账失败: %w", err)
		}
		if err := walletTx.AddPrizeStats(ctx, account, amount); err != nil {
			return fmt.Errorf("更新奖金统计失败: %w", err)
		}
		if err := walletTx.AddWithdrawStats(ctx, account, amount); err != nil {
			return fmt.Errorf("更新提现统计失败: %w", err)
		}

		now := time.Now()
		orderNo := fmt.Sprintf("WDR-%s-%d", account, now.UnixNano())

		txn := &models.Transaction{
			UserID:        wallet.UserID,
			OrderNo:       fmt.Sprintf("PRZ-%s-%d", account, now.UnixNano()),
			Type:          models.TransactionTypePrize,
			Amount:        amount,
			BeforeBalance: wallet.Balance,
			AfterBalance:  wallet.Balance + amount,
			Status:        "success",
			RefID:         orderNo,
			RefType:       "withdrawal",
			Description:   "奖金提回钱包",
			ProcessedAt:   &now,
		}
		txnRepo := t.transactionRepo.WithTx(tx).(repository.TransactionRepository)
		if err := txnRepo.Create(ctx, txn); err != nil {
			return fmt.Errorf("创建奖金流水失败: %w", err)
		}

		withdrawal := &models.Withdrawal{
			UserID:        wallet.UserID,
			OrderNo:       orderNo,
			TransactionID: txn.ID,
			AccountID:     account,
			Amount:        amount,
			Status:        "success",
			ProcessedAt:   &now,
		}
		wdRepo := t.withdrawalRepo.WithTx(tx).(repository.WithdrawalRepository)
		if err := wdRepo.Create(ctx, withdrawal); err != nil {
			return fmt.Errorf("创建提现单失败: %w", err)
		}

		t.log.Info("奖金已提回钱包",
			zap.String("account", account),
			zap.Int64("amount", amount),
			zap.String("order_no", orderNo))
		return nil
	})
}

// walletService 钱包服务实现
type walletService struct {
	db              *gorm.DB
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	withdrawalRepo  repository.WithdrawalRepository
	ledger          *game.Ledger
	log             *zap.Logger
}

// NewWalletService 创建钱包服务
func NewWalletService(
	db *gorm.DB,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	withdrawalRepo repository.WithdrawalRepository,
	ledger *game.Ledger,
	log *zap.Logger,
) WalletService {
	return &walletService{
		db:              db,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		withdrawalRepo:  withdrawalRepo,
		ledger:          ledger,
		log:             log,
	}
}

// GetBalance 查询余额
// 钱包侧是可用余额，账本侧是还没提回来的奖金和税前战绩
func (s *walletService) GetBalance(ctx context.Context, userID uint) (*BalanceResponse, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrWalletNotFound, "读取钱包失败")
	}

	acct, err := s.ledger.Account(ctx, wallet.AccountID)
	if err != nil {
		return nil, fmt.Errorf("读取账本失败: %w", err)
	}

	return &BalanceResponse{
		AccountID:     wallet.AccountID,
		Balance:       wallet.Balance,
		PrizeBalance:  acct.Balance,
		Score:         acct.Score,
		TotalStake:    wallet.TotalStake,
		TotalPrize:    wallet.TotalPrize,
		TotalWithdraw: wallet.TotalWithdraw,
	}, nil
}

// Withdraw 把账本侧的全部可提奖金转入钱包
// 成功路径的流水和提现单由转账适配器在同一事务里写好，
// 这里只负责失败路径的审计
func (s *walletService) Withdraw(ctx context.Context, userID uint) (*WithdrawResponse, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrWalletNotFound, "读取钱包失败")
	}

	amount, err := s.ledger.Withdraw(ctx, wallet.AccountID)
	if err != nil {
		code := apperrors.GetCode(err)
		if code == apperrors.ErrTransferFailed || code == apperrors.ErrDataIntegrity {
			s.recordFailedWithdrawal(ctx, wallet, err)
		}
		return nil, err
	}

	// 重读钱包拿到入账后的余额
	balance := wallet.Balance + amount
	if updated, err := s.walletRepo.FindByUserID(ctx, userID); err == nil {
		balance = updated.Balance
	}

	s.log.Info("提现成功",
		zap.Uint("user_id", userID),
		zap.String("account", wallet.AccountID),
		zap.Int64("amount", amount))

	return &WithdrawResponse{
		Amount:  amount,
		Balance: balance,
	}, nil
}

// recordFailedWithdrawal 留一条失败的提现单
func (s *walletService) recordFailedWithdrawal(ctx context.Context, wallet *models.Wallet, cause error) {
	now := time.Now()
	withdrawal := &models.Withdrawal{
		UserID:      wallet.UserID,
		OrderNo:     fmt.Sprintf("WDR-%s-%d", wallet.AccountID, now.UnixNano()),
		AccountID:   wallet.AccountID,
		Amount:      0,
		Status:      "failed",
		FailReason:  cause.Error(),
		ProcessedAt: &now,
	}
	if err := s.withdrawalRepo.Create(ctx, withdrawal); err != nil {
		s.log.Error("记录失败提现单出错",
			zap.Error(err), zap.String("account", wallet.AccountID))
	}
}

// GetTransactions 查询资金流水
func (s *walletService) GetTransactions(ctx context.Context, userID uint, page, pageSize int) ([]*models.Transaction, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	transactions, err := s.transactionRepo.FindByUserID(ctx, userID, pagination)
	if err != nil {
		return nil, 0, fmt.Errorf("查询流水失败: %w", err)
	}
	return transactions, pagination.Total, nil
}

// GetWithdrawals 查询提现记录
func (s *walletService) GetWithdrawals(ctx context.Context, userID uint, page, pageSize int) ([]*models.Withdrawal, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	withdrawals, err := s.withdrawalRepo.FindByUserID(ctx, userID, pagination)
	if err != nil {
		return nil, 0, fmt.Errorf("查询提现记录失败: %w", err)
	}
	return withdrawals, pagination.Total, nil
}

// GetLeaderboard 获奖榜，按首次获奖的登记序号排序
func (s *walletService) GetLeaderboard(ctx context.Context, page, pageSize int) ([]*LeaderboardEntry, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	accounts, total, err := s.ledger.Earners(ctx, pagination.Offset(), pagination.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("查询获奖榜失败: %w", err)
	}

	entries := make([]*LeaderboardEntry, 0, len(accounts))
	for _, acct := range accounts {
		entries = append(entries, &LeaderboardEntry{
			RankIndex: acct.EarnerIndex,
			Account:   acct.ID,
			Score:     acct.Score,
		})
	}
	return entries, total, nil
}
