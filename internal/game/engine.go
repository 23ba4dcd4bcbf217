package game

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/connect4-game/internal/errors"
	"github.com/wfunc/connect4-game/internal/game/board"
	"github.com/wfunc/connect4-game/internal/utils"
)

// Engine 对局状态机
// 每个对局都是独立串行访问的资源：同一对局的操作按键锁排队，
// 不同对局完全并行。每次操作的全部效果（落子、转手、奖池、结算）
// 在一个存储事务内提交，外界看不到改到一半的对局。
// 超时不靠后台定时器，只在判超时被调用的那一刻比对截止时间。
type Engine struct {
	store    Store
	ledger   *Ledger
	rules    Rules
	locks    *lockTable
	notifier Notifier
	now      func() time.Time
	log      *zap.Logger
}

// NewEngine 创建对局状态机
func NewEngine(store Store, ledger *Ledger, rules Rules, notifier Notifier, log *zap.Logger) (*Engine, error) {
	if store == nil || ledger == nil {
		return nil, errors.New(errors.ErrInvalidParam, "store和ledger不能为空")
	}
	if rules.Stake <= 0 {
		return nil, errors.Newf(errors.ErrConfigValidate, "无效的押注额: %d", rules.Stake)
	}
	if rules.ClaimWindow <= 0 {
		return nil, errors.Newf(errors.ErrConfigValidate, "无效的超时窗口: %s", rules.ClaimWindow)
	}
	if rules.PlatformAccount == "" {
		return nil, errors.New(errors.ErrConfigValidate, "平台账户不能为空")
	}
	if rules.FeePercent < 0 {
		rules.FeePercent = 0
	}
	if rules.FeePercent > 100 {
		rules.FeePercent = 100
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		ledger:   ledger,
		rules:    rules,
		locks:    newLockTable(),
		notifier: notifier,
		now:      time.Now,
		log:      log,
	}, nil
}

// Rules 返回对局规则
func (e *Engine) Rules() Rules {
	return e.rules
}

// Create 创建新对局
// opponent 可以为空串，表示虚位以待，第一个落子的对手自动入座
func (e *Engine) Create(ctx context.Context, caller, opponent string) (*Session, error) {
	if caller == "" {
		return nil, errors.New(errors.ErrInvalidParam, "账户ID不能为空")
	}
	if opponent == caller {
		return nil, errors.Newf(errors.ErrSelfPlay, "账户: %s", caller)
	}

	var created *Session
	err := e.store.WithinTx(ctx, func(tx Store) error {
		id, err := NextSessionID(ctx, tx)
		if err != nil {
			return err
		}
		now := e.now()
		created = &Session{
			ID:            id,
			Player1:       caller,
			Player2:       opponent,
			Status:        StatusLive,
			ClaimDeadline: now.Add(e.rules.ClaimWindow),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.PutSession(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("创建对局",
		zap.Uint64("session_id", created.ID),
		zap.String("player1", caller),
		zap.String("player2", opponent))
	e.notify(Event{
		Type:      EventSessionCreated,
		SessionID: created.ID,
		Account:   caller,
		Opponent:  opponent,
	})
	return created, nil
}

// Move 落子
// 校验顺序：对局存在 → 对局存活 → 参与者 → 押注额 → 轮次 → 列合法 → 列未满。
// 成功后奖池累加固定押注额、截止时间顺延一个窗口、轮次翻转，
// 然后先判胜负、无胜负再判平局；终局时结算与对局写入同一事务提交。
func (e *Engine) Move(ctx context.Context, sessionID uint64, caller string, stake int64, column int) (*MoveResult, error) {
	if caller == "" {
		return nil, errors.New(errors.ErrInvalidParam, "账户ID不能为空")
	}

	release := e.locks.Acquire(sessionKey(sessionID))
	defer release()

	s, err := e.loadLive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	role, joining := s.participantRole(caller)
	if role == RoleNone {
		return nil, errors.Newf(errors.ErrNotParticipant, "账户: %s", caller)
	}
	if stake < e.rules.Stake {
		return nil, errors.Newf(errors.ErrInsufficientStake, "需要 %d，实际 %d", e.rules.Stake, stake)
	}
	if (role == RolePlayer2) != s.Player2Turn {
		return nil, errors.Newf(errors.ErrNotYourTurn, "账户: %s", caller)
	}

	next, row, err := s.Board.Drop(column, markOf(role))
	if err != nil {
		switch err {
		case board.ErrColumnOutOfRange:
			return nil, errors.Newf(errors.ErrColumnOutOfRange, "列: %d", column)
		case board.ErrColumnFull:
			return nil, errors.Newf(errors.ErrColumnFull, "列: %d", column)
		default:
			return nil, errors.Wrap(err, errors.ErrUnknown)
		}
	}

	now := e.now()
	if joining {
		// 第一个应战的对手入座为玩家2
		s.Player2 = caller
	}
	s.Board = next
	pool, err := utils.AddInt64(s.PrizePool, e.rules.Stake)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrArithmetic, "奖池累计")
	}
	s.PrizePool = pool
	s.MoveCount++
	s.ClaimDeadline = now.Add(e.rules.ClaimWindow)
	s.Player2Turn = !s.Player2Turn
	s.UpdatedAt = now

	// 胜负判定优先于平局判定
	switch {
	case next.HasFourInARow(column, row):
		s.Status = StatusWon
		s.Winner = caller
	case next.Full():
		s.Status = StatusDrawn
	}

	if err := e.commit(ctx, s); err != nil {
		return nil, err
	}

	e.log.Info("落子",
		zap.Uint64("session_id", s.ID),
		zap.String("account", caller),
		zap.Int("column", column),
		zap.Int("row", row),
		zap.Int64("prize_pool", s.PrizePool),
		zap.String("status", string(s.Status)))

	e.notify(Event{
		Type:      EventMovePlayed,
		SessionID: s.ID,
		Account:   caller,
		Column:    column,
		Row:       row,
		Board:     s.Board.Encode(),
	})
	switch s.Status {
	case StatusWon:
		e.notify(Event{Type: EventSessionWon, SessionID: s.ID, Winner: caller, Prize: s.PrizePool})
	case StatusDrawn:
		e.notify(Event{Type: EventSessionDrawn, SessionID: s.ID, Prize: s.PrizePool})
	}

	return &MoveResult{Session: s, Column: column, Row: row, Terminal: s.Status.Terminal()}, nil
}

// Resign 认输
// 对方得到整个奖池；若第二席位还空着（无人应战），
// 对局无人获胜，奖池原路退回创建者
func (e *Engine) Resign(ctx context.Context, sessionID uint64, caller string) (*Session, error) {
	if caller == "" {
		return nil, errors.New(errors.ErrInvalidParam, "账户ID不能为空")
	}

	release := e.locks.Acquire(sessionKey(sessionID))
	defer release()

	s, err := e.loadLive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	role, joining := s.participantRole(caller)
	if role == RoleNone || joining {
		return nil, errors.Newf(errors.ErrNotParticipant, "账户: %s", caller)
	}

	s.Status = StatusResigned
	s.Winner = s.opponentOf(role)
	s.UpdatedAt = e.now()

	if err := e.commit(ctx, s); err != nil {
		return nil, err
	}

	e.log.Info("认输",
		zap.Uint64("session_id", s.ID),
		zap.String("account", caller),
		zap.String("winner", s.Winner),
		zap.Int64("prize_pool", s.PrizePool))

	e.notify(Event{Type: EventSessionResigned, SessionID: s.ID, Account: caller})
	if s.Winner != "" {
		e.notify(Event{Type: EventSessionWon, SessionID: s.ID, Winner: s.Winner, Prize: s.PrizePool})
	}
	return s, nil
}

// ClaimForfeit 判对方超时负
// 轮到自己落子时不能判负对方；当前时间早于截止时间时判负被拒绝。
// 截止时间随每次落子顺延，所以只有真正失联的对手才会被判负
func (e *Engine) ClaimForfeit(ctx context.Context, sessionID uint64, caller string) (*Session, error) {
	if caller == "" {
		return nil, errors.New(errors.ErrInvalidParam, "账户ID不能为空")
	}

	release := e.locks.Acquire(sessionKey(sessionID))
	defer release()

	s, err := e.loadLive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	role, joining := s.participantRole(caller)
	if role == RoleNone || joining {
		return nil, errors.Newf(errors.ErrNotParticipant, "账户: %s", caller)
	}
	if (role == RolePlayer2) == s.Player2Turn {
		return nil, errors.New(errors.ErrClaimOwnTurn)
	}
	if e.now().Before(s.ClaimDeadline) {
		return nil, errors.Newf(errors.ErrClaimTooEarly,
			"截止时间: %s", s.ClaimDeadline.Format(time.RFC3339))
	}

	s.Status = StatusForfeited
	s.Winner = caller
	s.UpdatedAt = e.now()

	if err := e.commit(ctx, s); err != nil {
		return nil, err
	}

	e.log.Info("超时判负",
		zap.Uint64("session_id", s.ID),
		zap.String("winner", caller),
		zap.Int64("prize_pool", s.PrizePool))

	e.notify(Event{Type: EventForfeitClaimed, SessionID: s.ID, Account: caller})
	e.notify(Event{Type: EventSessionWon, SessionID: s.ID, Winner: caller, Prize: s.PrizePool})
	return s, nil
}

// Session 按ID读取对局
func (e *Engine) Session(ctx context.Context, id uint64) (*Session, error) {
	s, err := e.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Newf(errors.ErrSessionNotFound, "对局ID: %d", id)
	}
	return s, nil
}

// Sessions 按分配顺序分页枚举对局
func (e *Engine) Sessions(ctx context.Context, offset, limit int) ([]*Session, int64, error) {
	return e.store.ListSessions(ctx, offset, limit)
}

// loadLive 读取对局并校验存在性与存活状态
func (e *Engine) loadLive(ctx context.Context, id uint64) (*Session, error) {
	s, err := e.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Newf(errors.ErrSessionNotFound, "对局ID: %d", id)
	}
	if s.Status.Terminal() {
		return nil, errors.Newf(errors.ErrSessionNotLive, "对局ID: %d, 状态: %s", id, s.Status)
	}
	return s, nil
}

// commit 在一个存储事务内写入对局并执行终局结算
// 终局需要动账时先按固定顺序锁定涉及的账户
func (e *Engine) commit(ctx context.Context, s *Session) error {
	var unlock func()
	switch s.Status {
	case StatusWon, StatusForfeited:
		unlock = e.ledger.LockAccounts(s.Winner, e.rules.PlatformAccount)
	case StatusResigned:
		if s.Winner != "" {
			unlock = e.ledger.LockAccounts(s.Winner, e.rules.PlatformAccount)
		} else {
			unlock = e.ledger.LockAccounts(s.Player1)
		}
	case StatusDrawn:
		unlock = e.ledger.LockAccounts(s.Player1, s.Player2, e.rules.PlatformAccount)
	}
	if unlock != nil {
		defer unlock()
	}

	return e.store.WithinTx(ctx, func(tx Store) error {
		if err := tx.PutSession(ctx, s); err != nil {
			return err
		}
		return e.settle(ctx, tx, s)
	})
}

// settle 终局时分配奖池
func (e *Engine) settle(ctx context.Context, tx Store, s *Session) error {
	switch s.Status {
	case StatusWon, StatusForfeited:
		return e.ledger.Distribute(ctx, tx, s.Winner, s.PrizePool)
	case StatusResigned:
		if s.Winner == "" {
			// 无人应战，奖池退回创建者
			return e.ledger.Refund(ctx, tx, s.Player1, s.PrizePool)
		}
		return e.ledger.Distribute(ctx, tx, s.Winner, s.PrizePool)
	case StatusDrawn:
		// 平分成两个整数半份，奇数奖池的余数1不分给任何一方
		half, err := utils.DivInt64(s.PrizePool, 2)
		if err != nil {
			return errors.Wrap(err, errors.ErrArithmetic)
		}
		if err := e.ledger.Distribute(ctx, tx, s.Player1, half); err != nil {
			return err
		}
		return e.ledger.Distribute(ctx, tx, s.Player2, half)
	}
	return nil
}

// notify 发出对局事件
func (e *Engine) notify(ev Event) {
	e.notifier.Notify(stamp(ev, e.now()))
}

func sessionKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}
