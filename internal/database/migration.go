package database

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/wfunc/connect4-game/internal/config"
	"github.com/wfunc/connect4-game/internal/logger"
	"github.com/wfunc/connect4-game/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 清理过期锁文件
	CleanupStaleLocks()

	// 获取迁移锁，避免多个进程同时迁移
	dbPath := getDBPath()
	if dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	// 定义需要迁移的模型
	migrationModels := []interface{}{
		// 用户相关
		&models.User{},
		&models.UserAuth{},
		&models.UserSession{},

		// 对局相关
		&models.Match{},
		&models.MatchMove{},

		// 资金相关
		&models.Wallet{},
		&models.Transaction{},
		&models.Withdrawal{},

		// 结算引擎相关
		&models.LedgerAccount{},
		&models.Sequence{},
	}

	// 执行迁移
	logger.Info("开始数据库迁移...")

	// 设置 SQLite 专用配置，避免锁定问题
	if DB.Dialector.Name() == "sqlite" {
		// 禁用外键约束，避免重建表时的问题
		DB.Exec("PRAGMA foreign_keys = OFF")
		defer DB.Exec("PRAGMA foreign_keys = ON")
	}

	for _, model := range migrationModels {
		tableName := getTableName(model)

		// 检查表是否存在且有数据
		if shouldSkipMigration(tableName) {
			logger.Info("跳过大型表的迁移", zap.String("table", tableName))
			continue
		}

		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	// 创建索引
	if err := createIndexes(); err != nil {
		return err
	}

	// 初始化默认数据
	if err := initDefaultData(); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建数据库索引
func createIndexes() error {
	// 用户表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_users_username"), zap.Error(err))
	}

	// 对局表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_matches_status"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches(player1)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_matches_player1"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches(player2)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_matches_player2"), zap.Error(err))
	}

	// 落子记录表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_match_moves_match_id ON match_moves(match_id)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_match_moves_match_id"), zap.Error(err))
	}

	// 交易表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_transactions_user_id"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_transactions_type"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_transactions_created_at"), zap.Error(err))
	}

	// 结算账户表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_ledger_accounts_rank_index ON ledger_accounts(rank_index)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_ledger_accounts_rank_index"), zap.Error(err))
	}

	logger.Info("数据库索引创建完成")
	return nil
}

// initDefaultData 初始化默认数据
func initDefaultData() error {
	// 确保平台账户存在，抽成入账时直接累加
	platformAccount := "platform"
	if cfg := config.Get(); cfg != nil && cfg.Game.PlatformAccount != "" {
		platformAccount = cfg.Game.PlatformAccount
	}

	var count int64
	DB.Model(&models.LedgerAccount{}).Where("account_id = ?", platformAccount).Count(&count)
	if count > 0 {
		return nil
	}

	if err := DB.Create(&models.LedgerAccount{AccountID: platformAccount}).Error; err != nil {
		logger.Error("创建平台账户失败",
			zap.String("account", platformAccount),
			zap.Error(err),
		)
		return err
	}

	logger.Info("默认数据初始化完成", zap.String("platform_account", platformAccount))
	return nil
}

// getTableName 获取模型对应的表名
func getTableName(model interface{}) string {
	// 使用反射获取类型
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	// 尝试调用TableName方法
	if tabler, ok := model.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}

	// 否则使用GORM默认的表名规则
	modelName := t.Name()
	// 转换为蛇形命名并复数化
	tableName := toSnakeCase(modelName) + "s"
	return tableName
}

// toSnakeCase 将驼峰命名转换为蛇形命名
func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, r)
	}
	return strings.ToLower(string(result))
}

// shouldSkipMigration 检查是否应该跳过迁移
func shouldSkipMigration(tableName string) bool {
	// 落子记录只增不改，数据量大时跳过结构迁移避免重建表
	if tableName == "match_moves" {
		var count int64
		var exists bool

		// 检查表是否存在
		err := DB.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name=?", tableName).Scan(&exists).Error
		if err != nil || !exists {
			return false
		}

		// 检查表中的数据量
		DB.Raw(fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)).Scan(&count)

		// 如果表存在且数据量超过10000条，跳过迁移
		if count > 10000 {
			logger.Info("表中数据量较大，跳过AutoMigrate",
				zap.String("table", tableName),
				zap.Int64("count", count))

			// 仅添加新的索引，不修改表结构
			ensureIndexesForLargeTable(tableName)
			return true
		}
	}
	return false
}

// ensureIndexesForLargeTable 为大表确保索引存在
func ensureIndexesForLargeTable(tableName string) {
	if tableName == "match_moves" {
		// 仅创建不存在的索引，避免重建表
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_match_moves_match_id ON match_moves(match_id)",
			"CREATE INDEX IF NOT EXISTS idx_match_moves_account ON match_moves(account)",
			"CREATE INDEX IF NOT EXISTS idx_match_moves_played_at ON match_moves(played_at)",
		}

		for _, idx := range indexes {
			if err := DB.Exec(idx).Error; err != nil {
				// 忽略索引已存在的错误
				if !strings.Contains(err.Error(), "already exists") {
					logger.Warn("创建索引失败", zap.String("index", idx), zap.Error(err))
				}
			}
		}
	}
}

// DropAllTables 删除所有表（仅用于测试环境）
func DropAllTables() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 获取所有表名
	var tables []string
	if err := DB.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tables).Error; err != nil {
		return err
	}

	// 删除所有表
	for _, table := range tables {
		if err := DB.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)).Error; err != nil {
			logger.Error("删除表失败", zap.String("table", table), zap.Error(err))
			return err
		}
	}

	logger.Info("所有表已删除")
	return nil
}
