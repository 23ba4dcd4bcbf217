package game

import "context"

// Account 结算账本条目
// Score 只增不减，记录税前累计奖金；Balance 是税后可提现余额
type Account struct {
	ID          string `json:"id"`
	Score       int64  `json:"score"`
	Balance     int64  `json:"balance"`
	EarnerIndex uint64 `json:"earner_index"` // 首次获奖时分配的登记序号，0表示尚未获奖
}

// Store 对局与账本的持久化抽象
// 引擎和账本只通过本接口读写，便于在测试里换成内存实现。
// 要求：同一事务内读己之写；WithinTx 回调内的写入要么全部提交要么全部回滚。
// Get 系列在记录不存在时返回 (nil, nil) 而不是错误，是否存在由调用方判断。
type Store interface {
	// GetSession 按ID读取对局快照
	GetSession(ctx context.Context, id uint64) (*Session, error)
	// PutSession 写入对局快照
	PutSession(ctx context.Context, s *Session) error
	// ListSessions 按分配顺序分页枚举对局，limit<=0 表示不分页
	ListSessions(ctx context.Context, offset, limit int) ([]*Session, int64, error)

	// GetAccount 按账户ID读取账本条目
	GetAccount(ctx context.Context, id string) (*Account, error)
	// PutAccount 写入账本条目
	PutAccount(ctx context.Context, a *Account) error
	// ListEarners 按登记序号枚举获过奖的账户，limit<=0 表示不分页
	ListEarners(ctx context.Context, offset, limit int) ([]*Account, int64, error)

	// NextSequence 分配指定序号生成器的下一个值，首次分配返回1
	NextSequence(ctx context.Context, name string) (uint64, error)

	// WithinTx 在单个事务内执行回调，回调收到绑定事务的Store
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// Transfer 外部转账协作方
// 提现时由账本调用，把资金转出本系统；失败不得丢失或重复在途金额
type Transfer interface {
	Transfer(ctx context.Context, account string, amount int64) error
}

// TransferFunc 函数式转账适配器
type TransferFunc func(ctx context.Context, account string, amount int64) error

// Transfer 实现Transfer接口
func (f TransferFunc) Transfer(ctx context.Context, account string, amount int64) error {
	return f(ctx, account, amount)
}
