package repository

import (
	"context"
	"errors"

	"github.com/wfunc/connect4-game/internal/models"
	"gorm.io/gorm"
)

// MatchRepository 对局仓储接口
// 对局主键由引擎的序号注册器分配，这里不依赖数据库自增
type MatchRepository interface {
	BaseRepository
	Create(ctx context.Context, match *models.Match) error
	Save(ctx context.Context, match *models.Match) error
	FindByID(ctx context.Context, id uint64) (*models.Match, error)
	FindByPlayer(ctx context.Context, account string, pagination *Pagination) ([]*models.Match, error)
	FindLiveByPlayer(ctx context.Context, account string) ([]*models.Match, error)
	FindOpen(ctx context.Context, pagination *Pagination) ([]*models.Match, error)
	List(ctx context.Context, pagination *Pagination) ([]*models.Match, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	GetPlayerStatistics(ctx context.Context, account string) (*PlayerStatistics, error)
}

// PlayerStatistics 玩家对局统计
type PlayerStatistics struct {
	TotalMatches int   `json:"total_matches"`
	Wins         int   `json:"wins"`
	Draws        int   `json:"draws"`
	LiveMatches  int   `json:"live_matches"`
	TotalPool    int64 `json:"total_pool"`
}

// matchRepo 对局仓储实现
type matchRepo struct {
	*BaseRepo
}

// NewMatchRepository 创建对局仓储
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建对局
func (r *matchRepo) Create(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

// Save 保存对局全量状态
func (r *matchRepo) Save(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Save(match).Error
}

// FindByID 根据ID查找对局
func (r *matchRepo) FindByID(ctx context.Context, id uint64) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).First(&match, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("对局不存在")
		}
		return nil, err
	}
	return &match, nil
}

// FindByPlayer 查找玩家参与的对局（分页）
func (r *matchRepo) FindByPlayer(ctx context.Context, account string, pagination *Pagination) ([]*models.Match, error) {
	var matches []*models.Match
	query := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("player1 = ? OR player2 = ?", account, account)

	// 获取总数
	var total int64
	query.Count(&total)
	pagination.Total = total

	// 分页查询
	err := query.
		Limit(pagination.PageSize).
		Offset((pagination.Page - 1) * pagination.PageSize).
		Order("id DESC").
		Find(&matches).Error

	return matches, err
}

// FindLiveByPlayer 查找玩家进行中的对局
func (r *matchRepo) FindLiveByPlayer(ctx context.Context, account string) ([]*models.Match, error) {
	var matches []*models.Match
	err := r.db.WithContext(ctx).
		Where("status = ? AND (player1 = ? OR player2 = ?)", models.MatchStatusLive, account, account).
		Order("id ASC").
		Find(&matches).Error
	return matches, err
}

// FindOpen 查找虚位以待的对局（第二席未定且仍在进行）
func (r *matchRepo) FindOpen(ctx context.Context, pagination *Pagination) ([]*models.Match, error) {
	var matches []*models.Match
	query := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("status = ? AND player2 = ?", models.MatchStatusLive, "")

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset((pagination.Page - 1) * pagination.PageSize).
		Order("id ASC").
		Find(&matches).Error

	return matches, err
}

// List 获取所有对局（分页）
func (r *matchRepo) List(ctx context.Context, pagination *Pagination) ([]*models.Match, error) {
	var matches []*models.Match
	query := r.db.WithContext(ctx).Model(&models.Match{})

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset((pagination.Page - 1) * pagination.PageSize).
		Order("id DESC").
		Find(&matches).Error

	return matches, err
}

// CountByStatus 按状态统计对局数
func (r *matchRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// GetPlayerStatistics 获取玩家对局统计
func (r *matchRepo) GetPlayerStatistics(ctx context.Context, account string) (*PlayerStatistics, error) {
	stats := &PlayerStatistics{}

	var row struct {
		TotalMatches int
		Wins         int
		Draws        int
		LiveMatches  int
		TotalPool    int64
	}

	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("player1 = ? OR player2 = ?", account, account).
		Select(`
			COUNT(*) as total_matches,
			COALESCE(SUM(CASE WHEN winner = ? THEN 1 ELSE 0 END), 0) as wins,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as draws,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as live_matches,
			COALESCE(SUM(prize_pool), 0) as total_pool
		`, account, models.MatchStatusDrawn, models.MatchStatusLive).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats.TotalMatches = row.TotalMatches
	stats.Wins = row.Wins
	stats.Draws = row.Draws
	stats.LiveMatches = row.LiveMatches
	stats.TotalPool = row.TotalPool

	return stats, nil
}

// WithTx 使用事务
func (r *matchRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &matchRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// MatchMoveRepository 落子记录仓储接口
type MatchMoveRepository interface {
	BaseRepository
	Create(ctx context.Context, move *models.MatchMove) error
	FindByMatch(ctx context.Context, matchID uint64) ([]*models.MatchMove, error)
	LastMove(ctx context.Context, matchID uint64) (*models.MatchMove, error)
	CountByMatch(ctx context.Context, matchID uint64) (int64, error)
}

// matchMoveRepo 落子记录仓储实现
type matchMoveRepo struct {
	*BaseRepo
}

// NewMatchMoveRepository 创建落子记录仓储
func NewMatchMoveRepository(db *gorm.DB) MatchMoveRepository {
	return &matchMoveRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建落子记录
func (r *matchMoveRepo) Create(ctx context.Context, move *models.MatchMove) error {
	return r.db.WithContext(ctx).Create(move).Error
}

// FindByMatch 按手数顺序取一局的全部落子
func (r *matchMoveRepo) FindByMatch(ctx context.Context, matchID uint64) ([]*models.MatchMove, error) {
	var moves []*models.MatchMove
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("seq ASC").
		Find(&moves).Error
	return moves, err
}

// LastMove 取一局最近一手落子
func (r *matchMoveRepo) LastMove(ctx context.Context, matchID uint64) (*models.MatchMove, error) {
	var move models.MatchMove
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("seq DESC").
		First(&move).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("落子记录不存在")
		}
		return nil, err
	}
	return &move, nil
}

// CountByMatch 统计一局的落子数
func (r *matchMoveRepo) CountByMatch(ctx context.Context, matchID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MatchMove{}).
		Where("match_id = ?", matchID).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *matchMoveRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &matchMoveRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
