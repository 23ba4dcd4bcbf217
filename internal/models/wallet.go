package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet 用户钱包表
// Balance是可自由支配的余额（分）：落子前从这里扣押注，
// 引擎拒绝落子时原路退回，奖金提现后到这里入账
type Wallet struct {
	BaseModel
	UserID        uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	AccountID     string    `gorm:"uniqueIndex;size:64;not null" json:"account_id"` // 对局与账本侧的账户标识
	Balance       int64     `gorm:"default:0" json:"balance"`                       // 可用余额（分）
	FrozenBalance int64     `gorm:"default:0" json:"frozen_balance"`
	TotalStake    int64     `gorm:"default:0" json:"total_stake"`    // 累计押注
	TotalPrize    int64     `gorm:"default:0" json:"total_prize"`    // 累计提回的奖金
	TotalWithdraw int64     `gorm:"default:0" json:"total_withdraw"` // 累计提现
	LastResetAt   time.Time `json:"last_reset_at"`

	// 关联（注意：不直接嵌入 User，避免循环依赖）
	// 查询时使用 Preload("User") 来加载用户信息
}

// LedgerAccount 结算账本条目表
// 引擎终局结算的唯一落点：战绩积分、可提奖金、获奖登记序号。
// 平台手续费账户也是一行普通条目，只有余额没有战绩。
// 这些列只允许引擎的存储事务改写，服务层只读
type LedgerAccount struct {
	AccountID string    `gorm:"primaryKey;size:64" json:"account_id"`
	Score     int64     `gorm:"default:0" json:"score"`                    // 税前累计战绩
	Balance   int64     `gorm:"default:0" json:"balance"`                  // 可提现奖金余额
	RankIndex uint64    `gorm:"index;default:0" json:"rank_index"`         // 首次获奖登记序号，0表示未获过奖
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定LedgerAccount表名
func (LedgerAccount) TableName() string {
	return "ledger_accounts"
}

// BeforeCreate 钱包创建前的钩子
func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	w.LastResetAt = time.Now()
	return nil
}

// CanStake 检查可用余额是否够付一手押注
func (w *Wallet) CanStake(amount int64) bool {
	return w.Balance-w.FrozenBalance >= amount
}

// UpdateStakeStats 更新押注统计
func (w *Wallet) UpdateStakeStats(stake int64) {
	w.TotalStake += stake
}
