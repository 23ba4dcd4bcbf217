package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/connect4-game/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// isCI 检查是否在CI环境中运行
func isCI() bool {
	// GitHub Actions 设置 CI=true
	// 其他CI系统也通常设置 CI 环境变量
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}

// SetupTestDB 为测试套件设置测试数据库
func SetupTestDB() *gorm.DB {
	// 使用内存数据库进行测试（更快，不需要文件系统，在所有环境中都能工作）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 清理所有表数据（保留表结构）
	// 注意：清理顺序很重要，先清理有外键依赖的表
	tables := []interface{}{
		&models.Withdrawal{},
		&models.Transaction{},
		&models.MatchMove{},
		&models.Match{},
		&models.LedgerAccount{},
		&models.Sequence{},
		&models.Wallet{},
		&models.UserSession{},
		&models.UserAuth{},
		&models.User{},
	}

	for _, table := range tables {
		db.Unscoped().Where("1 = 1").Delete(table)
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		// 用户系统
		&models.User{},
		&models.UserAuth{},
		&models.UserSession{},

		// 资金系统
		&models.Wallet{},
		&models.Transaction{},
		&models.Withdrawal{},

		// 对局与账本
		&models.Match{},
		&models.MatchMove{},
		&models.LedgerAccount{},
		&models.Sequence{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	// 关闭数据库连接
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SeedTestData 创建测试数据
func SeedTestData(t *testing.T, db *gorm.DB) {
	// 创建测试用户
	users := []models.User{
		{
			Username: "testuser1",
			Email:    "test1@example.com",
			Nickname: "测试用户1",
			Avatar:   "avatar1.png",
			Status:   "active",
		},
		{
			Username: "testuser2",
			Email:    "test2@example.com",
			Nickname: "测试用户2",
			Avatar:   "avatar2.png",
			Status:   "active",
		},
	}
	err := db.Create(&users).Error
	require.NoError(t, err)

	// 创建测试钱包
	wallets := []models.Wallet{
		{
			UserID:    users[0].ID,
			AccountID: "testuser1",
			Balance:   1000,
		},
		{
			UserID:    users[1].ID,
			AccountID: "testuser2",
			Balance:   500,
		},
	}
	err = db.Create(&wallets).Error
	require.NoError(t, err)

	// 创建测试对局
	matches := []models.Match{
		*CreateTestMatch(1, "testuser1", "testuser2"),
		*CreateTestMatch(2, "testuser2", ""),
	}
	err = db.Create(&matches).Error
	require.NoError(t, err)
}

// AssertMatch 验证对局
func AssertMatch(t *testing.T, expected, actual *models.Match) {
	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.Player1, actual.Player1)
	assert.Equal(t, expected.Player2, actual.Player2)
	assert.Equal(t, expected.Status, actual.Status)
	assert.Equal(t, expected.Winner, actual.Winner)
	assert.Equal(t, expected.MoveCount, actual.MoveCount)
}

// AssertWallet 验证钱包
func AssertWallet(t *testing.T, expected, actual *models.Wallet) {
	assert.Equal(t, expected.UserID, actual.UserID)
	assert.Equal(t, expected.AccountID, actual.AccountID)
	assert.Equal(t, expected.Balance, actual.Balance)
}

// CreateTestMatch 创建测试对局（空棋盘，轮到玩家1）
func CreateTestMatch(id uint64, player1, player2 string) *models.Match {
	return &models.Match{
		ID:            id,
		Player1:       player1,
		Player2:       player2,
		BoardCells:    strings.Repeat("0", 42),
		Player2Turn:   false,
		PrizePool:     1,
		ClaimDeadline: time.Now().Add(10 * time.Minute),
		Status:        models.MatchStatusLive,
		MoveCount:     1,
	}
}

// CreateTestWallet 创建测试钱包
func CreateTestWallet(userID uint, accountID string, balance int64) *models.Wallet {
	return &models.Wallet{
		UserID:    userID,
		AccountID: accountID,
		Balance:   balance,
	}
}
