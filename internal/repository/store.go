package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/game/board"
	"github.com/wfunc/connect4-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormStore 把对局引擎的持久化抽象落到数据库上。
// 对局存 matches 表，账本存 ledger_accounts 表，序号存 sequences 表。
// 引擎约定：Get 系列查不到返回 (nil, nil)；WithinTx 内读己之写、
// 回调报错则全部回滚（含已分配的序号）
type gormStore struct {
	db *gorm.DB
}

// NewStore 创建数据库落地的引擎存储
func NewStore(db *gorm.DB) game.Store {
	return &gormStore{db: db}
}

// GetSession 按ID读取对局快照
func (s *gormStore) GetSession(ctx context.Context, id uint64) (*game.Session, error) {
	var m models.Match
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return matchToSession(&m)
}

// PutSession 写入对局快照（不存在则插入，存在则覆盖可变列）
func (s *gormStore) PutSession(ctx context.Context, sess *game.Session) error {
	m := sessionToMatch(sess)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"player2", "board_cells", "player2_turn", "prize_pool",
				"claim_deadline", "status", "winner", "move_count", "updated_at",
			}),
		}).
		Create(m).Error
}

// ListSessions 按ID顺序分页枚举对局
func (s *gormStore) ListSessions(ctx context.Context, offset, limit int) ([]*game.Session, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Match{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Order("id ASC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	} else if offset > 0 {
		// SQL里OFFSET必须搭配LIMIT，取剩余全部时给个足够大的上限
		query = query.Limit(math.MaxInt32)
	}

	var rows []*models.Match
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	sessions := make([]*game.Session, 0, len(rows))
	for _, m := range rows {
		sess, err := matchToSession(m)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, nil
}

// GetAccount 按账户ID读取账本条目
func (s *gormStore) GetAccount(ctx context.Context, id string) (*game.Account, error) {
	var la models.LedgerAccount
	err := s.db.WithContext(ctx).Where("account_id = ?", id).First(&la).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &game.Account{
		ID:          la.AccountID,
		Score:       la.Score,
		Balance:     la.Balance,
		EarnerIndex: la.RankIndex,
	}, nil
}

// PutAccount 写入账本条目（不存在则插入，存在则覆盖可变列）
func (s *gormStore) PutAccount(ctx context.Context, a *game.Account) error {
	la := &models.LedgerAccount{
		AccountID: a.ID,
		Score:     a.Score,
		Balance:   a.Balance,
		RankIndex: a.EarnerIndex,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "balance", "rank_index", "updated_at",
			}),
		}).
		Create(la).Error
}

// ListEarners 按登记序号枚举获过奖的账户
func (s *gormStore) ListEarners(ctx context.Context, offset, limit int) ([]*game.Account, int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.LedgerAccount{}).
		Where("rank_index > 0").
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).
		Where("rank_index > 0").
		Order("rank_index ASC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	} else if offset > 0 {
		query = query.Limit(math.MaxInt32)
	}

	var rows []*models.LedgerAccount
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	accounts := make([]*game.Account, 0, len(rows))
	for _, la := range rows {
		accounts = append(accounts, &game.Account{
			ID:          la.AccountID,
			Score:       la.Score,
			Balance:     la.Balance,
			EarnerIndex: la.RankIndex,
		})
	}
	return accounts, total, nil
}

// NextSequence 分配指定序号生成器的下一个值
// 事务里锁住序号行再递增，并发分配不会重号；
// 外层事务回滚时序号一并回滚，可以被下一次分配复用
func (s *gormStore) NextSequence(ctx context.Context, name string) (uint64, error) {
	var next uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq models.Sequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", name).
			First(&seq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seq = models.Sequence{Name: name, Value: 1}
			if err := tx.Create(&seq).Error; err != nil {
				return err
			}
			next = seq.Value
			return nil
		}
		if err != nil {
			return err
		}

		seq.Value++
		err = tx.Model(&models.Sequence{}).
			Where("name = ?", name).
			Update("value", seq.Value).Error
		if err != nil {
			return err
		}
		next = seq.Value
		return nil
	})
	return next, err
}

// WithinTx 在单个数据库事务内执行回调
// 嵌套调用走保存点，内层失败只回滚内层
func (s *gormStore) WithinTx(ctx context.Context, fn func(tx game.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// matchToSession 把对局行还原成引擎快照
func matchToSession(m *models.Match) (*game.Session, error) {
	b, err := board.Decode(m.BoardCells)
	if err != nil {
		return nil, fmt.Errorf("对局%d棋盘数据损坏: %w", m.ID, err)
	}
	return &game.Session{
		ID:            m.ID,
		Player1:       m.Player1,
		Player2:       m.Player2,
		Board:         b,
		Player2Turn:   m.Player2Turn,
		PrizePool:     m.PrizePool,
		ClaimDeadline: m.ClaimDeadline,
		Status:        game.Status(m.Status),
		Winner:        m.Winner,
		MoveCount:     m.MoveCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

// sessionToMatch 把引擎快照落成对局行
func sessionToMatch(sess *game.Session) *models.Match {
	return &models.Match{
		ID:            sess.ID,
		Player1:       sess.Player1,
		Player2:       sess.Player2,
		BoardCells:    sess.Board.Encode(),
		Player2Turn:   sess.Player2Turn,
		PrizePool:     sess.PrizePool,
		ClaimDeadline: sess.ClaimDeadline,
		Status:        string(sess.Status),
		Winner:        sess.Winner,
		MoveCount:     sess.MoveCount,
		CreatedAt:     sess.CreatedAt,
		UpdatedAt:     sess.UpdatedAt,
	}
}
