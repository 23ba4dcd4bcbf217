package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/connect4-game/internal/models"
	"gorm.io/gorm"
)

// MatchRepositoryTestSuite 对局仓储测试套件
type MatchRepositoryTestSuite struct {
	suite.Suite
	db        *gorm.DB
	matchRepo MatchRepository
	moveRepo  MatchMoveRepository
}

func (suite *MatchRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.matchRepo = NewMatchRepository(suite.db)
	suite.moveRepo = NewMatchMoveRepository(suite.db)
}

func (suite *MatchRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// TestMatchRepository_Create 测试创建对局
func (suite *MatchRepositoryTestSuite) TestMatchRepository_Create() {
	ctx := context.Background()

	match := CreateTestMatch(1, "alice", "bob")
	err := suite.matchRepo.Create(ctx, match)
	assert.NoError(suite.T(), err)

	found, err := suite.matchRepo.FindByID(ctx, 1)
	assert.NoError(suite.T(), err)
	AssertMatch(suite.T(), match, found)
	// ID由序号注册器分配，不走数据库自增
	assert.Equal(suite.T(), uint64(1), found.ID)
}

// TestMatchRepository_FindByID 测试根据ID查找对局
func (suite *MatchRepositoryTestSuite) TestMatchRepository_FindByID() {
	ctx := context.Background()

	match := CreateTestMatch(7, "alice", "")
	err := suite.matchRepo.Create(ctx, match)
	assert.NoError(suite.T(), err)

	found, err := suite.matchRepo.FindByID(ctx, 7)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "alice", found.Player1)
	assert.Equal(suite.T(), "", found.Player2)
	assert.True(suite.T(), found.IsLive())

	// 测试不存在的对局
	_, err = suite.matchRepo.FindByID(ctx, 99999)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "对局不存在")
}

// TestMatchRepository_Save 测试保存对局状态
func (suite *MatchRepositoryTestSuite) TestMatchRepository_Save() {
	ctx := context.Background()

	match := CreateTestMatch(3, "alice", "")
	err := suite.matchRepo.Create(ctx, match)
	assert.NoError(suite.T(), err)

	// 第二席落座、棋局推进后全量保存
	match.Player2 = "bob"
	match.Player2Turn = true
	match.PrizePool = 2
	match.MoveCount = 2
	err = suite.matchRepo.Save(ctx, match)
	assert.NoError(suite.T(), err)

	found, err := suite.matchRepo.FindByID(ctx, 3)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "bob", found.Player2)
	assert.True(suite.T(), found.Player2Turn)
	assert.Equal(suite.T(), int64(2), found.PrizePool)
}

// TestMatchRepository_FindByPlayer 测试查找玩家参与的对局
func (suite *MatchRepositoryTestSuite) TestMatchRepository_FindByPlayer() {
	ctx := context.Background()

	// alice参与3局（两局执先、一局执后），carol的1局与她无关
	matches := []*models.Match{
		CreateTestMatch(1, "alice", "bob"),
		CreateTestMatch(2, "bob", "alice"),
		CreateTestMatch(3, "alice", ""),
		CreateTestMatch(4, "carol", "dave"),
	}
	for _, m := range matches {
		err := suite.matchRepo.Create(ctx, m)
		assert.NoError(suite.T(), err)
	}

	pagination := &Pagination{Page: 1, PageSize: 2}
	found, err := suite.matchRepo.FindByPlayer(ctx, "alice", pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), found, 2)
	assert.Equal(suite.T(), int64(3), pagination.Total)
	// 按ID倒序，最新的在前
	assert.Equal(suite.T(), uint64(3), found[0].ID)
	assert.Equal(suite.T(), uint64(2), found[1].ID)
}

// TestMatchRepository_FindLiveByPlayer 测试查找玩家进行中的对局
func (suite *MatchRepositoryTestSuite) TestMatchRepository_FindLiveByPlayer() {
	ctx := context.Background()

	live := CreateTestMatch(1, "alice", "bob")
	err := suite.matchRepo.Create(ctx, live)
	assert.NoError(suite.T(), err)

	done := CreateTestMatch(2, "alice", "bob")
	done.Status = models.MatchStatusWon
	done.Winner = "bob"
	err = suite.matchRepo.Create(ctx, done)
	assert.NoError(suite.T(), err)

	found, err := suite.matchRepo.FindLiveByPlayer(ctx, "alice")
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), found, 1)
	assert.Equal(suite.T(), uint64(1), found[0].ID)
}

// TestMatchRepository_FindOpen 测试查找虚位以待的对局
func (suite *MatchRepositoryTestSuite) TestMatchRepository_FindOpen() {
	ctx := context.Background()

	matches := []*models.Match{
		CreateTestMatch(1, "alice", ""),
		CreateTestMatch(2, "bob", "carol"),
		CreateTestMatch(3, "dave", ""),
	}
	// 第4局虚位但已结束，不应出现在列表里
	closed := CreateTestMatch(4, "erin", "")
	closed.Status = models.MatchStatusResigned
	matches = append(matches, closed)

	for _, m := range matches {
		err := suite.matchRepo.Create(ctx, m)
		assert.NoError(suite.T(), err)
	}

	pagination := &Pagination{Page: 1, PageSize: 10}
	found, err := suite.matchRepo.FindOpen(ctx, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), found, 2)
	assert.Equal(suite.T(), int64(2), pagination.Total)
	assert.Equal(suite.T(), uint64(1), found[0].ID)
	assert.Equal(suite.T(), uint64(3), found[1].ID)
}

// TestMatchRepository_List 测试分页列出所有对局
func (suite *MatchRepositoryTestSuite) TestMatchRepository_List() {
	ctx := context.Background()

	for i := uint64(1); i <= 5; i++ {
		err := suite.matchRepo.Create(ctx, CreateTestMatch(i, "alice", "bob"))
		assert.NoError(suite.T(), err)
	}

	pagination := &Pagination{Page: 2, PageSize: 2}
	found, err := suite.matchRepo.List(ctx, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), found, 2)
	assert.Equal(suite.T(), int64(5), pagination.Total)
	// 倒序的第二页是3、2
	assert.Equal(suite.T(), uint64(3), found[0].ID)
	assert.Equal(suite.T(), uint64(2), found[1].ID)
}

// TestMatchRepository_CountByStatus 测试按状态统计
func (suite *MatchRepositoryTestSuite) TestMatchRepository_CountByStatus() {
	ctx := context.Background()

	m1 := CreateTestMatch(1, "alice", "bob")
	m2 := CreateTestMatch(2, "alice", "bob")
	m2.Status = models.MatchStatusWon
	m2.Winner = "alice"
	m3 := CreateTestMatch(3, "carol", "dave")

	for _, m := range []*models.Match{m1, m2, m3} {
		err := suite.matchRepo.Create(ctx, m)
		assert.NoError(suite.T(), err)
	}

	count, err := suite.matchRepo.CountByStatus(ctx, models.MatchStatusLive)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), count)

	count, err = suite.matchRepo.CountByStatus(ctx, models.MatchStatusWon)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), count)
}

// TestMatchRepository_GetPlayerStatistics 测试玩家对局统计
func (suite *MatchRepositoryTestSuite) TestMatchRepository_GetPlayerStatistics() {
	ctx := context.Background()

	// alice：一胜、一负、一平、一局进行中
	won := CreateTestMatch(1, "alice", "bob")
	won.Status = models.MatchStatusWon
	won.Winner = "alice"
	won.PrizePool = 7

	lost := CreateTestMatch(2, "bob", "alice")
	lost.Status = models.MatchStatusForfeited
	lost.Winner = "bob"
	lost.PrizePool = 10

	drawn := CreateTestMatch(3, "alice", "carol")
	drawn.Status = models.MatchStatusDrawn
	drawn.PrizePool = 42

	live := CreateTestMatch(4, "alice", "dave")
	live.PrizePool = 3

	// 与alice无关的一局不计入
	other := CreateTestMatch(5, "carol", "dave")
	other.Status = models.MatchStatusWon
	other.Winner = "carol"

	for _, m := range []*models.Match{won, lost, drawn, live, other} {
		err := suite.matchRepo.Create(ctx, m)
		assert.NoError(suite.T(), err)
	}

	stats, err := suite.matchRepo.GetPlayerStatistics(ctx, "alice")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, stats.TotalMatches)
	assert.Equal(suite.T(), 1, stats.Wins)
	assert.Equal(suite.T(), 1, stats.Draws)
	assert.Equal(suite.T(), 1, stats.LiveMatches)
	assert.Equal(suite.T(), int64(62), stats.TotalPool)
}

// TestMatchMoveRepository_CreateAndFind 测试落子记录的写入与回放
func (suite *MatchRepositoryTestSuite) TestMatchMoveRepository_CreateAndFind() {
	ctx := context.Background()

	match := CreateTestMatch(1, "alice", "bob")
	err := suite.matchRepo.Create(ctx, match)
	assert.NoError(suite.T(), err)

	// 三手棋：alice中路、bob跟、alice再落
	moves := []*models.MatchMove{
		{MatchID: 1, Seq: 1, Account: "alice", ColIndex: 3, RowIndex: 0, Stake: 1, PlayedAt: time.Now()},
		{MatchID: 1, Seq: 2, Account: "bob", ColIndex: 3, RowIndex: 1, Stake: 1, PlayedAt: time.Now()},
		{MatchID: 1, Seq: 3, Account: "alice", ColIndex: 4, RowIndex: 0, Stake: 1, PlayedAt: time.Now()},
	}
	for _, mv := range moves {
		err := suite.moveRepo.Create(ctx, mv)
		assert.NoError(suite.T(), err)
	}

	// 回放按手数升序
	replay, err := suite.moveRepo.FindByMatch(ctx, 1)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), replay, 3)
	for i, mv := range replay {
		assert.Equal(suite.T(), i+1, mv.Seq)
	}
	assert.Equal(suite.T(), "alice", replay[0].Account)
	assert.Equal(suite.T(), 3, replay[0].ColIndex)

	// 最近一手
	last, err := suite.moveRepo.LastMove(ctx, 1)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 3, last.Seq)
	assert.Equal(suite.T(), 4, last.ColIndex)

	// 落子计数
	count, err := suite.moveRepo.CountByMatch(ctx, 1)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), count)

	// 没有落子的对局
	_, err = suite.moveRepo.LastMove(ctx, 2)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "落子记录不存在")
}

// TestMatchRepository_WithTx 测试事务支持
func (suite *MatchRepositoryTestSuite) TestMatchRepository_WithTx() {
	ctx := context.Background()

	tx := suite.db.Begin()
	defer tx.Rollback()

	txMatchRepo := suite.matchRepo.WithTx(tx).(MatchRepository)
	txMoveRepo := suite.moveRepo.WithTx(tx).(MatchMoveRepository)

	err := txMatchRepo.Create(ctx, CreateTestMatch(1, "alice", "bob"))
	assert.NoError(suite.T(), err)

	err = txMoveRepo.Create(ctx, &models.MatchMove{
		MatchID: 1, Seq: 1, Account: "alice", ColIndex: 3, RowIndex: 0, Stake: 1, PlayedAt: time.Now(),
	})
	assert.NoError(suite.T(), err)

	// 事务内可以查到
	found, err := txMatchRepo.FindByID(ctx, 1)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "alice", found.Player1)

	// 回滚后对局和落子都查不到
	tx.Rollback()

	_, err = suite.matchRepo.FindByID(ctx, 1)
	assert.Error(suite.T(), err)

	count, err := suite.moveRepo.CountByMatch(ctx, 1)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), count)
}

func TestMatchRepositorySuite(t *testing.T) {
	suite.Run(t, new(MatchRepositoryTestSuite))
}
