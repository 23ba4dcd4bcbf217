package models

import (
	"time"
)

// 资金流水类型
const (
	TransactionTypeStake       = "stake"        // 落子押注扣款
	TransactionTypeStakeRefund = "stake_refund" // 押注退回
	TransactionTypePrize       = "prize"        // 奖金提回钱包
	TransactionTypeWithdraw    = "withdraw"     // 余额提现
)

// Transaction 资金流水表
// 每笔押注扣款、押注退回、奖金提回、余额提现都留一行审计记录
type Transaction struct {
	BaseModel
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	OrderNo       string     `gorm:"uniqueIndex;size:64;not null" json:"order_no"`
	Type          string     `gorm:"size:50;not null;index" json:"type"` // stake, stake_refund, prize, withdraw
	Amount        int64      `gorm:"not null" json:"amount"`
	BeforeBalance int64      `json:"before_balance"`
	AfterBalance  int64      `json:"after_balance"`
	Status        string     `gorm:"size:20;default:'pending';index" json:"status"` // pending, success, failed
	RefID         string     `gorm:"size:100;index" json:"ref_id"`                  // 关联ID（对局ID、提现单号等）
	RefType       string     `gorm:"size:50" json:"ref_type"`                       // match, withdrawal
	Description   string     `gorm:"size:500" json:"description"`
	Metadata      JSONMap    `gorm:"type:json" json:"metadata"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`

	// 关联（注意：不直接嵌入 User，避免循环依赖）
}

// Withdrawal 奖金提现记录表
// 把账本侧的可提奖金转入钱包可用余额的一次请求
type Withdrawal struct {
	BaseModel
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	OrderNo       string     `gorm:"uniqueIndex;size:64;not null" json:"order_no"`
	TransactionID uint       `gorm:"index" json:"transaction_id"`
	AccountID     string     `gorm:"size:64;not null;index" json:"account_id"`
	Amount        int64      `gorm:"not null" json:"amount"`
	Status        string     `gorm:"size:20;default:'pending';index" json:"status"` // pending, success, failed
	FailReason    string     `gorm:"size:500" json:"fail_reason"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`

	// 关联（注意：不直接嵌入 User，避免循环依赖）
	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}

// Sequence 单调序列表
// 对局ID与获奖登记序号的权威来源，行内计数只增不减，
// 事务里用行锁递增，崩溃重启后继续而不回绕
type Sequence struct {
	Name      string    `gorm:"primaryKey;size:50" json:"name"`
	Value     uint64    `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定Sequence表名
func (Sequence) TableName() string {
	return "sequences"
}
