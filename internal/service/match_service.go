package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/wfunc/connect4-game/internal/errors"
	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/models"
	"github.com/wfunc/connect4-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// matchService 对局服务实现
// 引擎只认"押注已付"，钱包余额归这里管：
// 落子前在钱包事务里扣押注并留 pending 流水，
// 引擎收下这手棋则流水转 success 并补落子审计，
// 引擎拒绝则原额退回并留退款流水。
type matchService struct {
	db              *gorm.DB
	engine          *game.Engine
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	matchRepo       repository.MatchRepository
	moveRepo        repository.MatchMoveRepository
	log             *zap.Logger
}

// NewMatchService 创建对局服务
func NewMatchService(
	db *gorm.DB,
	engine *game.Engine,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	matchRepo repository.MatchRepository,
	moveRepo repository.MatchMoveRepository,
	log *zap.Logger,
) MatchService {
	return &matchService{
		db:              db,
		engine:          engine,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		matchRepo:       matchRepo,
		moveRepo:        moveRepo,
		log:             log,
	}
}

// CreateMatch 创建对局
// opponent 传空串表示虚位以待，第一个应战落子的账户自动入座
func (s *matchService) CreateMatch(ctx context.Context, userID uint, opponent string) (*game.Session, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrWalletNotFound, "读取钱包失败")
	}

	// 指定对手时要求对手账户真实存在
	if opponent != "" {
		if _, err := s.walletRepo.FindByAccountID(ctx, opponent); err != nil {
			return nil, apperrors.Newf(apperrors.ErrWalletNotFound, "对手账户: %s", opponent)
		}
	}

	session, err := s.engine.Create(ctx, wallet.AccountID, opponent)
	if err != nil {
		return nil, err
	}

	s.log.Info("对局已创建",
		zap.Uint64("match_id", session.ID),
		zap.String("player1", session.Player1),
		zap.String("player2", session.Player2))

	return session, nil
}

// Move 落子
// 押注扣款和引擎落子不在同一事务里，通过补偿保持一致：
// 引擎拒绝这手棋时退回押注，流水上留下完整的扣款-退款轨迹
func (s *matchService) Move(ctx context.Context, userID uint, matchID uint64, column int) (*game.MoveResult, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrWalletNotFound, "读取钱包失败")
	}

	stake := s.engine.Rules().Stake
	orderNo := fmt.Sprintf("STK-%d-%d", matchID, time.Now().UnixNano())

	// 先扣押注
	if err := s.deductStake(ctx, wallet, matchID, stake, orderNo); err != nil {
		return nil, err
	}

	// 押注已付，交给引擎落子
	result, err := s.engine.Move(ctx, matchID, wallet.AccountID, stake, column)
	if err != nil {
		// 引擎拒绝，退回押注
		s.refundStake(ctx, wallet, matchID, stake, orderNo)
		return nil, err
	}

	// 落子成功，补审计记录
	s.recordMove(ctx, wallet.AccountID, stake, orderNo, result)

	if result.Terminal {
		s.log.Info("对局结束",
			zap.Uint64("match_id", matchID),
			zap.String("status", string(result.Session.Status)),
			zap.String("winner", result.Session.Winner),
			zap.Int64("prize_pool", result.Session.PrizePool))
	}

	return result, nil
}

// deductStake 在钱包事务里扣押注并登记 pending 流水
func (s *matchService) deductStake(ctx context.Context, wallet *models.Wallet, matchID uint64, stake int64, orderNo string) error {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	walletTx := s.walletRepo.WithTx(tx).(repository.WalletRepository)

	// 锁定钱包行，拿到扣款前余额
	current, err := walletTx.LockForUpdate(ctx, wallet.AccountID)
	if err != nil {
		tx.Rollback()
		return apperrors.Wrap(err, apperrors.ErrWalletNotFound, "锁定钱包失败")
	}

	if err := walletTx.DeductBalance(ctx, wallet.AccountID, stake); err != nil {
		tx.Rollback()
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return apperrors.Newf(apperrors.ErrInsufficientBalance,
				"账户: %s, 需要: %d, 可用: %d", wallet.AccountID, stake, current.Balance)
		}
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "扣除押注失败")
	}

	if err := walletTx.AddStakeStats(ctx, wallet.AccountID, stake); err != nil {
		tx.Rollback()
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新押注统计失败")
	}

	txnRepo := s.transactionRepo.WithTx(tx).(repository.TransactionRepository)
	txn := &models.Transaction{
		UserID:        wallet.UserID,
		OrderNo:       orderNo,
		Type:          models.TransactionTypeStake,
		Amount:        -stake,
		BeforeBalance: current.Balance,
		AfterBalance:  current.Balance - stake,
		Status:        "pending",
		RefID:         strconv.FormatUint(matchID, 10),
		RefType:       "match",
		Description:   fmt.Sprintf("对局%d落子押注", matchID),
	}
	if err := txnRepo.Create(ctx, txn); err != nil {
		tx.Rollback()
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建押注流水失败")
	}

	if err := tx.Commit().Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransaction, "提交押注扣款失败")
	}

	return nil
}

// refundStake 引擎拒绝落子后退回押注
// 退款失败只记日志不上抛，pending 流水会暴露这笔卡住的钱
func (s *matchService) refundStake(ctx context.Context, wallet *models.Wallet, matchID uint64, stake int64, orderNo string) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	walletTx := s.walletRepo.WithTx(tx).(repository.WalletRepository)

	current, err := walletTx.LockForUpdate(ctx, wallet.AccountID)
	if err != nil {
		tx.Rollback()
		s.log.Error("退款时锁定钱包失败",
			zap.Error(err), zap.String("order_no", orderNo))
		return
	}

	if err := walletTx.AddBalance(ctx, wallet.AccountID, stake); err != nil {
		tx.Rollback()
		s.log.Error("退回押注失败",
			zap.Error(err), zap.String("order_no", orderNo), zap.Int64("stake", stake))
		return
	}

	// 冲回押注统计
	if err := walletTx.AddStakeStats(ctx, wallet.AccountID, -stake); err != nil {
		tx.Rollback()
		s.log.Error("冲回押注统计失败",
			zap.Error(err), zap.String("order_no", orderNo))
		return
	}

	txnRepo := s.transactionRepo.WithTx(tx).(repository.TransactionRepository)

	if err := txnRepo.UpdateStatus(ctx, orderNo, "failed"); err != nil {
		tx.Rollback()
		s.log.Error("标记押注流水失败状态出错",
			zap.Error(err), zap.String("order_no", orderNo))
		return
	}

	now := time.Now()
	refund := &models.Transaction{
		UserID:        wallet.UserID,
		OrderNo:       fmt.Sprintf("REF-%d-%d", matchID, now.UnixNano()),
		Type:          models.TransactionTypeStakeRefund,
		Amount:        stake,
		BeforeBalance: current.Balance,
		AfterBalance:  current.Balance + stake,
		Status:        "success",
		RefID:         strconv.FormatUint(matchID, 10),
		RefType:       "match",
		Description:   fmt.Sprintf("对局%d押注退回", matchID),
		ProcessedAt:   &now,
	}
	if err := txnRepo.Create(ctx, refund); err != nil {
		tx.Rollback()
		s.log.Error("创建退款流水失败",
			zap.Error(err), zap.String("order_no", orderNo))
		return
	}

	if err := tx.Commit().Error; err != nil {
		s.log.Error("提交押注退款失败",
			zap.Error(err), zap.String("order_no", orderNo))
	}
}

// recordMove 落子成功后补审计：落子明细入库，押注流水转 success
// 审计失败不回滚引擎状态，只记日志
func (s *matchService) recordMove(ctx context.Context, account string, stake int64, orderNo string, result *game.MoveResult) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	moveTx := s.moveRepo.WithTx(tx).(repository.MatchMoveRepository)
	move := &models.MatchMove{
		MatchID:  result.Session.ID,
		Seq:      result.Session.MoveCount,
		Account:  account,
		ColIndex: result.Column,
		RowIndex: result.Row,
		Stake:    stake,
		PlayedAt: result.Session.UpdatedAt,
	}
	if err := moveTx.Create(ctx, move); err != nil {
		tx.Rollback()
		s.log.Error("记录落子明细失败",
			zap.Error(err), zap.Uint64("match_id", result.Session.ID), zap.Int("seq", move.Seq))
		return
	}

	txnRepo := s.transactionRepo.WithTx(tx).(repository.TransactionRepository)
	if err := txnRepo.UpdateStatus(ctx, orderNo, "success"); err != nil {
		tx.Rollback()
		s.log.Error("确认押注流水失败",
			zap.Error(err), zap.String("order_no", orderNo))
		return
	}

	if err := tx.Commit().Error; err != nil {
		s.log.Error("提交落子审计失败",
			zap.Error(err), zap.String("order_no", orderNo))
	}
}

// Resign 认输
func (s *matchService) Resign(ctx context.Context, userID uint, matchID uint64) (*game.Session, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrWalletNotFound, "读取钱包失败")
	}

	session, err := s.engine.Resign(ctx, matchID, wallet.AccountID)
	if err != nil {
		return nil, err
	}

	s.log.Info("玩家认输",
		zap.Uint64("match_id", matchID),
		zap.String("account", wallet.AccountID),
		zap.String("winner", session.Winner))

	return session, nil
}

// ClaimForfeit 对手超时未落子，判其弃权
func (s *matchService) ClaimForfeit(ctx context.Context, userID uint, matchID uint64) (*game.Session, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrWalletNotFound, "读取钱包失败")
	}

	session, err := s.engine.ClaimForfeit(ctx, matchID, wallet.AccountID)
	if err != nil {
		return nil, err
	}

	s.log.Info("超时判负成立",
		zap.Uint64("match_id", matchID),
		zap.String("claimer", wallet.AccountID),
		zap.String("winner", session.Winner))

	return session, nil
}

// GetMatch 查询对局
func (s *matchService) GetMatch(ctx context.Context, matchID uint64) (*game.Session, error) {
	return s.engine.Session(ctx, matchID)
}

// GetBoard 查询棋盘快照
func (s *matchService) GetBoard(ctx context.Context, matchID uint64) (*BoardView, error) {
	session, err := s.engine.Session(ctx, matchID)
	if err != nil {
		return nil, err
	}

	view := &BoardView{
		MatchID:   session.ID,
		Cells:     session.Board.Encode(),
		Render:    session.Board.Render(),
		Status:    string(session.Status),
		MoveCount: session.MoveCount,
	}
	if session.Status == game.StatusLive {
		view.Turn = session.TurnAccount()
	}

	return view, nil
}

// ListMatches 分页查询全部对局
func (s *matchService) ListMatches(ctx context.Context, page, pageSize int) ([]*game.Session, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	return s.engine.Sessions(ctx, pagination.Offset(), pagination.PageSize)
}

// ListOpenMatches 查询虚位以待的对局
func (s *matchService) ListOpenMatches(ctx context.Context, page, pageSize int) ([]*models.Match, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	matches, err := s.matchRepo.FindOpen(ctx, pagination)
	if err != nil {
		return nil, 0, fmt.Errorf("查询待应战对局失败: %w", err)
	}
	return matches, pagination.Total, nil
}

// GetMatchMoves 查询一局的落子记录
func (s *matchService) GetMatchMoves(ctx context.Context, matchID uint64) ([]*models.MatchMove, error) {
	// 先确认对局存在
	if _, err := s.engine.Session(ctx, matchID); err != nil {
		return nil, err
	}
	return s.moveRepo.FindByMatch(ctx, matchID)
}

// GetPlayerMatches 查询用户参与的对局
func (s *matchService) GetPlayerMatches(ctx context.Context, userID uint, page, pageSize int) ([]*models.Match, int64, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrWalletNotFound, "读取钱包失败")
	}

	pagination := repository.NewPagination(page, pageSize)
	matches, err := s.matchRepo.FindByPlayer(ctx, wallet.AccountID, pagination)
	if err != nil {
		return nil, 0, fmt.Errorf("查询对局记录失败: %w", err)
	}
	return matches, pagination.Total, nil
}
