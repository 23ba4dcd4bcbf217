package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/wfunc/connect4-game/internal/errors"
	"github.com/wfunc/connect4-game/internal/utils"
)

// Ledger 结算账本
// 维护每个账户的累计战绩（税前、只增）与可提现余额（税后），
// 终局分账按手续费比例切给平台账户。
// 同一账户的余额修改与对局一样遵守单写者纪律：
// 并发入账必须串行，否则"首次获奖登记"在竞态下会重复执行。
type Ledger struct {
	store      Store
	transfer   Transfer
	feePercent int64
	platform   string
	locks      *lockTable
	log        *zap.Logger
}

// NewLedger 创建结算账本
// 费率超出0-100范围时收敛到边界
func NewLedger(store Store, transfer Transfer, rules Rules, log *zap.Logger) *Ledger {
	fee := rules.FeePercent
	if fee < 0 {
		fee = 0
	}
	if fee > 100 {
		fee = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		store:      store,
		transfer:   transfer,
		feePercent: fee,
		platform:   rules.PlatformAccount,
		locks:      newLockTable(),
		log:        log,
	}
}

// LockAccounts 锁定一组账户，返回释放函数
// 内部会去重并按固定顺序加锁，引擎结算多个账户时必须整组获取
func (l *Ledger) LockAccounts(accounts ...string) func() {
	return l.locks.AcquireAll(accounts...)
}

// Distribute 给账户入账一笔奖金
// 调用方必须已锁定涉及的账户（含平台账户）并处于存储事务内。
// amount 为0时无任何效果；账户战绩首次从零变为非零时，
// 先在登记表分配序号，再更新战绩。
// 手续费 fee = amount * feePercent / 100（整数除法，小额奖金费率取整为零），
// 账户到账 amount-fee，平台余额到账 fee；战绩按税前全额累计。
func (l *Ledger) Distribute(ctx context.Context, tx Store, account string, amount int64) error {
	if amount == 0 {
		return nil
	}
	if amount < 0 {
		return errors.Newf(errors.ErrAmountInvalid, "入账金额: %d", amount)
	}

	acct, err := tx.GetAccount(ctx, account)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &Account{ID: account}
	}

	// 首次获奖：登记先于记分
	if acct.Score == 0 {
		index, err := NextEarnerIndex(ctx, tx)
		if err != nil {
			return err
		}
		acct.EarnerIndex = index
		l.log.Info("账户首次获奖登记",
			zap.String("account", account),
			zap.Uint64("earner_index", index))
	}

	score, err := utils.AddInt64(acct.Score, amount)
	if err != nil {
		return errors.Wrapf(err, errors.ErrArithmetic, "账户 %s 战绩累计", account)
	}
	acct.Score = score

	fee, err := l.feeOf(amount)
	if err != nil {
		return err
	}
	net, err := utils.SubInt64(amount, fee)
	if err != nil {
		return errors.Wrap(err, errors.ErrArithmetic)
	}
	balance, err := utils.AddInt64(acct.Balance, net)
	if err != nil {
		return errors.Wrapf(err, errors.ErrArithmetic, "账户 %s 余额入账", account)
	}
	acct.Balance = balance

	if err := tx.PutAccount(ctx, acct); err != nil {
		return err
	}

	// 手续费只进平台余额，不计平台战绩
	if fee > 0 {
		platform, err := tx.GetAccount(ctx, l.platform)
		if err != nil {
			return err
		}
		if platform == nil {
			platform = &Account{ID: l.platform}
		}
		balance, err := utils.AddInt64(platform.Balance, fee)
		if err != nil {
			return errors.Wrap(err, errors.ErrArithmetic, "平台手续费入账")
		}
		platform.Balance = balance
		if err := tx.PutAccount(ctx, platform); err != nil {
			return err
		}
	}

	l.log.Info("奖金结算入账",
		zap.String("account", account),
		zap.Int64("amount", amount),
		zap.Int64("fee", fee),
		zap.Int64("net", net))
	return nil
}

// Refund 退还一笔在途资金到账户余额
// 与Distribute不同：不收手续费、不计战绩、不做获奖登记，
// 用于无人应战时把奖池原路退回创建者
func (l *Ledger) Refund(ctx context.Context, tx Store, account string, amount int64) error {
	if amount == 0 {
		return nil
	}
	if amount < 0 {
		return errors.Newf(errors.ErrAmountInvalid, "退款金额: %d", amount)
	}

	acct, err := tx.GetAccount(ctx, account)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &Account{ID: account}
	}
	balance, err := utils.AddInt64(acct.Balance, amount)
	if err != nil {
		return errors.Wrapf(err, errors.ErrArithmetic, "账户 %s 退款入账", account)
	}
	acct.Balance = balance
	if err := tx.PutAccount(ctx, acct); err != nil {
		return err
	}

	l.log.Info("奖池退款",
		zap.String("account", account),
		zap.Int64("amount", amount))
	return nil
}

// Withdraw 提现账户的全部可提余额，返回实际提走的金额
// 先清零后转账：重试或重入的调用看到的是零余额，不会重复出金。
// 外部转账失败时执行补偿，把余额原数恢复，整个操作以转账失败上报。
func (l *Ledger) Withdraw(ctx context.Context, account string) (int64, error) {
	if account == "" {
		return 0, errors.New(errors.ErrInvalidParam, "账户ID不能为空")
	}

	release := l.locks.Acquire(account)
	defer release()

	var amount int64
	err := l.store.WithinTx(ctx, func(tx Store) error {
		acct, err := tx.GetAccount(ctx, account)
		if err != nil {
			return err
		}
		if acct == nil || acct.Balance == 0 {
			return errors.Newf(errors.ErrNoBalance, "账户: %s", account)
		}
		amount = acct.Balance
		acct.Balance = 0
		return tx.PutAccount(ctx, acct)
	})
	if err != nil {
		return 0, err
	}

	if err := l.transfer.Transfer(ctx, account, amount); err != nil {
		// 补偿：转账没有成立，恢复余额
		restoreErr := l.store.WithinTx(ctx, func(tx Store) error {
			acct, err := tx.GetAccount(ctx, account)
			if err != nil {
				return err
			}
			if acct == nil {
				acct = &Account{ID: account}
			}
			balance, err := utils.AddInt64(acct.Balance, amount)
			if err != nil {
				return errors.Wrap(err, errors.ErrArithmetic)
			}
			acct.Balance = balance
			return tx.PutAccount(ctx, acct)
		})
		if restoreErr != nil {
			l.log.Error("提现补偿失败，余额未恢复",
				zap.String("account", account),
				zap.Int64("amount", amount),
				zap.Error(restoreErr))
			return 0, errors.Wrapf(restoreErr, errors.ErrDataIntegrity,
				"账户 %s 的 %d 在途金额恢复失败", account, amount)
		}
		l.log.Warn("外部转账失败，余额已恢复",
			zap.String("account", account),
			zap.Int64("amount", amount),
			zap.Error(err))
		return 0, errors.Wrap(err, errors.ErrTransferFailed)
	}

	l.log.Info("提现完成",
		zap.String("account", account),
		zap.Int64("amount", amount))
	return amount, nil
}

// Account 读取账户的账本条目，从未入账的账户返回零值条目
func (l *Ledger) Account(ctx context.Context, id string) (*Account, error) {
	acct, err := l.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return &Account{ID: id}, nil
	}
	return acct, nil
}

// Earners 按登记序号枚举获过奖的账户
func (l *Ledger) Earners(ctx context.Context, offset, limit int) ([]*Account, int64, error) {
	return l.store.ListEarners(ctx, offset, limit)
}

// feeOf 计算amount的平台手续费
func (l *Ledger) feeOf(amount int64) (int64, error) {
	product, err := utils.MulInt64(amount, l.feePercent)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrArithmetic, "手续费计算")
	}
	fee, err := utils.DivInt64(product, 100)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrArithmetic, "手续费计算")
	}
	return fee, nil
}
