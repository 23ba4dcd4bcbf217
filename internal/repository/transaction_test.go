package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/connect4-game/internal/models"
)

func TestTransactionManager_Begin(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	manager := NewTransactionManager(db)
	ctx := context.Background()

	// 开始事务
	tx, err := manager.Begin(ctx)
	require.NoError(t, err)
	assert.NotNil(t, tx)
	assert.NotNil(t, tx.GetDB())

	// 提交事务
	err = tx.Commit()
	require.NoError(t, err)
}

func TestTransactionManager_BeginWithOptions(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	manager := NewTransactionManager(db)
	ctx := context.Background()

	// 使用选项开始事务
	opts := &TxOptions{
		ReadOnly: true,
		Timeout:  30,
	}

	tx, err := manager.BeginWithOptions(ctx, opts)
	require.NoError(t, err)
	assert.NotNil(t, tx)

	// 提交事务
	err = tx.Commit()
	require.NoError(t, err)
}

func TestTransactionManager_WithTransaction(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	manager := NewTransactionManager(db)
	ctx := context.Background()

	// 成功的事务：创建对局并记录第一手落子
	err := manager.WithTransaction(ctx, func(tx *Transaction) error {
		match := CreateTestMatch(100, "testuser1", "testuser2")
		if err := tx.Match().Create(ctx, match); err != nil {
			return err
		}

		move := &models.MatchMove{
			MatchID:  match.ID,
			Seq:      1,
			Account:  "testuser1",
			ColIndex: 3,
			RowIndex: 0,
			Stake:    1,
		}
		return tx.MatchMove().Create(ctx, move)
	})
	require.NoError(t, err)

	// 验证数据已创建
	matchRepo := NewMatchRepository(db)
	match, err := matchRepo.FindByID(ctx, 100)
	require.NoError(t, err)
	assert.NotNil(t, match)
	assert.Equal(t, "testuser1", match.Player1)

	moveRepo := NewMatchMoveRepository(db)
	count, err := moveRepo.CountByMatch(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTransactionManager_Rollback(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	manager := NewTransactionManager(db)
	ctx := context.Background()

	// 失败的事务（应该回滚）
	err := manager.WithTransaction(ctx, func(tx *Transaction) error {
		match := CreateTestMatch(200, "testuser1", "testuser2")
		if err := tx.Match().Create(ctx, match); err != nil {
			return err
		}

		// 扣掉的钱也要随事务一起回滚
		if err := tx.Wallet().DeductBalance(ctx, "testuser1", 100); err != nil {
			return err
		}

		// 故意返回错误以触发回滚
		return errors.New("故意的错误")
	})
	assert.Error(t, err)

	// 验证对局未创建（已回滚）
	matchRepo := NewMatchRepository(db)
	match, err := matchRepo.FindByID(ctx, 200)
	assert.Error(t, err)
	assert.Nil(t, match)

	// 验证余额原封不动
	walletRepo := NewWalletRepository(db)
	wallet, err := walletRepo.FindByAccountID(ctx, "testuser1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), wallet.Balance)
}

func TestTransaction_CommitRollback(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	manager := NewTransactionManager(db)
	ctx := context.Background()

	// 测试手动提交
	tx1, err := manager.Begin(ctx)
	require.NoError(t, err)

	match1 := CreateTestMatch(300, "testuser1", "")
	err = tx1.Match().Create(ctx, match1)
	require.NoError(t, err)

	err = tx1.Commit()
	require.NoError(t, err)

	// 验证重复提交错误
	err = tx1.Commit()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "已提交")

	// 测试手动回滚
	tx2, err := manager.Begin(ctx)
	require.NoError(t, err)

	match2 := CreateTestMatch(301, "testuser2", "")
	err = tx2.Match().Create(ctx, match2)
	require.NoError(t, err)

	err = tx2.Rollback()
	require.NoError(t, err)

	// 验证重复回滚错误
	err = tx2.Rollback()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "已回滚")

	// 验证已回滚的事务不能提交
	err = tx2.Commit()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "已回滚")

	// 提交的在，回滚的不在
	matchRepo := NewMatchRepository(db)
	committed, err := matchRepo.FindByID(ctx, 300)
	require.NoError(t, err)
	assert.NotNil(t, committed)

	rolledback, err := matchRepo.FindByID(ctx, 301)
	assert.Error(t, err)
	assert.Nil(t, rolledback)
}

func TestTransaction_Repositories(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	manager := NewTransactionManager(db)
	ctx := context.Background()

	// 事务内的仓储实例应该复用同一个事务连接
	err := manager.WithTransaction(ctx, func(tx *Transaction) error {
		assert.NotNil(t, tx.User())
		assert.NotNil(t, tx.UserAuth())
		assert.NotNil(t, tx.UserSession())
		assert.NotNil(t, tx.Wallet())
		assert.NotNil(t, tx.TransactionRepo())
		assert.NotNil(t, tx.Withdrawal())
		assert.NotNil(t, tx.Match())
		assert.NotNil(t, tx.MatchMove())

		// 同一事务内读己之写
		if err := tx.Wallet().DeductBalance(ctx, "testuser2", 200); err != nil {
			return err
		}
		wallet, err := tx.Wallet().FindByAccountID(ctx, "testuser2")
		if err != nil {
			return err
		}
		assert.Equal(t, int64(300), wallet.Balance)
		return nil
	})
	require.NoError(t, err)

	// 提交后外部可见
	walletRepo := NewWalletRepository(db)
	wallet, err := walletRepo.FindByAccountID(ctx, "testuser2")
	require.NoError(t, err)
	assert.Equal(t, int64(300), wallet.Balance)
}

func TestTransaction_SavePoint(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	manager := NewTransactionManager(db)
	ctx := context.Background()

	tx, err := manager.Begin(ctx)
	require.NoError(t, err)

	// 保存点之前的写入保留
	match := CreateTestMatch(400, "testuser1", "testuser2")
	err = tx.Match().Create(ctx, match)
	require.NoError(t, err)

	err = tx.SavePoint("sp1")
	require.NoError(t, err)

	// 保存点之后的写入被回滚
	doomed := CreateTestMatch(401, "testuser2", "")
	err = tx.Match().Create(ctx, doomed)
	require.NoError(t, err)

	err = tx.RollbackToSavePoint("sp1")
	require.NoError(t, err)

	err = tx.Commit()
	require.NoError(t, err)

	matchRepo := NewMatchRepository(db)
	kept, err := matchRepo.FindByID(ctx, 400)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	gone, err := matchRepo.FindByID(ctx, 401)
	assert.Error(t, err)
	assert.Nil(t, gone)
}

func TestTransactionHelper_ExecuteInTransaction(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	manager := NewTransactionManager(db)
	helper := NewTransactionHelper(manager)
	ctx := context.Background()

	// 全部操作成功
	err := helper.ExecuteInTransaction(ctx,
		func(tx *Transaction) error {
			return tx.Match().Create(ctx, CreateTestMatch(500, "testuser1", "testuser2"))
		},
		func(tx *Transaction) error {
			return tx.MatchMove().Create(ctx, &models.MatchMove{
				MatchID:  500,
				Seq:      1,
				Account:  "testuser1",
				ColIndex: 0,
				RowIndex: 0,
				Stake:    1,
			})
		},
	)
	require.NoError(t, err)

	matchRepo := NewMatchRepository(db)
	match, err := matchRepo.FindByID(ctx, 500)
	require.NoError(t, err)
	assert.NotNil(t, match)

	// 第二个操作失败，整个事务回滚
	err = helper.ExecuteInTransaction(ctx,
		func(tx *Transaction) error {
			return tx.Match().Create(ctx, CreateTestMatch(501, "testuser2", ""))
		},
		func(tx *Transaction) error {
			return fmt.Errorf("第二步失败")
		},
	)
	assert.Error(t, err)

	gone, err := matchRepo.FindByID(ctx, 501)
	assert.Error(t, err)
	assert.Nil(t, gone)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("Deadlock found when trying to get lock")))
	assert.True(t, isRetryableError(errors.New("deadlock detected")))
	assert.False(t, isRetryableError(errors.New("记录不存在")))
	assert.False(t, isRetryableError(errors.New("syntax error")))
}
