package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	apperrors "github.com/wfunc/connect4-game/internal/errors"
	"github.com/wfunc/connect4-game/internal/game"
	"github.com/wfunc/connect4-game/internal/models"
	"github.com/wfunc/connect4-game/internal/repository"
)

// MatchServiceTestSuite 对局服务测试套件
// 走完整链路：钱包扣押注 → 引擎落子 → 终局结算进账本
type MatchServiceTestSuite struct {
	suite.Suite
	ctx          context.Context
	db           *gorm.DB
	services     *Services
	matchService MatchService
	walletRepo   repository.WalletRepository
	aliceID      uint
	bobID        uint
}

func (suite *MatchServiceTestSuite) SetupTest() {
	// 每个测试一个全新内存库
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.NoError(err)

	err = db.AutoMigrate(
		&models.User{},
		&models.UserAuth{},
		&models.UserSession{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Withdrawal{},
		&models.Match{},
		&models.MatchMove{},
		&models.LedgerAccount{},
		&models.Sequence{},
	)
	suite.NoError(err)
	suite.db = db
	suite.ctx = context.Background()

	config := &Config{
		JWTSecret:          "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		InitialBalance:     1000,
		Rules: game.Rules{
			Stake:           100,
			ClaimWindow:     50 * time.Millisecond,
			FeePercent:      5,
			PlatformAccount: "platform",
		},
	}

	services, err := NewServices(db, config, nil, zap.NewNop())
	suite.NoError(err)
	suite.services = services
	suite.matchService = services.Match
	suite.walletRepo = repository.NewWalletRepository(db)

	suite.aliceID = suite.seedPlayer("alice")
	suite.bobID = suite.seedPlayer("bob")
}

// seedPlayer 造一个带钱包的玩家
func (suite *MatchServiceTestSuite) seedPlayer(username string) uint {
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Nickname: username,
		Status:   "active",
	}
	suite.NoError(suite.db.Create(&user).Error)

	wallet := models.Wallet{
		UserID:    user.ID,
		AccountID: username,
		Balance:   1000,
	}
	suite.NoError(suite.db.Create(&wallet).Error)
	return user.ID
}

func (suite *MatchServiceTestSuite) balanceOf(account string) int64 {
	wallet, err := suite.walletRepo.FindByAccountID(suite.ctx, account)
	suite.NoError(err)
	return wallet.Balance
}

// TestCreateMatch 测试创建对局
func (suite *MatchServiceTestSuite) TestCreateMatch() {
	// 指定对手
	session, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "bob")
	suite.NoError(err)
	suite.NotNil(session)
	suite.Equal("alice", session.Player1)
	suite.Equal("bob", session.Player2)
	suite.Equal(game.StatusLive, session.Status)

	// 对局已持久化
	persisted, err := suite.matchService.GetMatch(suite.ctx, session.ID)
	suite.NoError(err)
	suite.Equal("alice", persisted.Player1)

	// 虚位以待
	open, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "")
	suite.NoError(err)
	suite.Equal("", open.Player2)
	suite.Greater(open.ID, session.ID) // ID单调递增

	openList, total, err := suite.matchService.ListOpenMatches(suite.ctx, 1, 10)
	suite.NoError(err)
	suite.Equal(int64(1), total)
	suite.Len(openList, 1)
	suite.Equal(open.ID, openList[0].ID)

	// 对手账户必须存在
	_, err = suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "ghost")
	suite.Error(err)
	suite.Equal(apperrors.ErrWalletNotFound, apperrors.GetCode(err))
}

// TestMoveWinSettlement 测试纵向连四获胜与全链路结算
func (suite *MatchServiceTestSuite) TestMoveWinSettlement() {
	session, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "bob")
	suite.NoError(err)

	// alice在第0列叠四子获胜，bob陪跑第1列
	seq := []struct {
		userID uint
		column int
	}{
		{suite.aliceID, 0},
		{suite.bobID, 1},
		{suite.aliceID, 0},
		{suite.bobID, 1},
		{suite.aliceID, 0},
		{suite.bobID, 1},
		{suite.aliceID, 0},
	}

	var last *game.MoveResult
	for _, step := range seq {
		last, err = suite.matchService.Move(suite.ctx, step.userID, session.ID, step.column)
		suite.NoError(err)
	}

	// 第七手终局
	suite.True(last.Terminal)
	suite.Equal(game.StatusWon, last.Session.Status)
	suite.Equal("alice", last.Session.Winner)
	suite.Equal(int64(700), last.Session.PrizePool) // 7手 × 100

	// 钱包侧：alice付了4手，bob付了3手
	suite.Equal(int64(600), suite.balanceOf("alice"))
	suite.Equal(int64(700), suite.balanceOf("bob"))

	// 账本侧：奖池700，手续费5% = 35，净得665；战绩是税前口径
	acct, err := suite.services.Ledger.Account(suite.ctx, "alice")
	suite.NoError(err)
	suite.Equal(int64(700), acct.Score)
	suite.Equal(int64(665), acct.Balance)
	suite.Equal(uint64(1), acct.EarnerIndex) // 第一个获奖者

	platform, err := suite.services.Ledger.Account(suite.ctx, "platform")
	suite.NoError(err)
	suite.Equal(int64(35), platform.Balance)
	suite.Equal(int64(0), platform.Score) // 手续费不计战绩

	// 流水侧：7笔押注流水全部success
	var stakeCount int64
	suite.db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TransactionTypeStake, "success").
		Count(&stakeCount)
	suite.Equal(int64(7), stakeCount)

	// 落子审计：7条记录，手数连续
	moves, err := suite.matchService.GetMatchMoves(suite.ctx, session.ID)
	suite.NoError(err)
	suite.Len(moves, 7)
	for i, move := range moves {
		suite.Equal(i+1, move.Seq)
		suite.Equal(int64(100), move.Stake)
	}
	suite.Equal("alice", moves[0].Account)
	suite.Equal("bob", moves[1].Account)

	// 终局后继续落子被拒绝
	_, err = suite.matchService.Move(suite.ctx, suite.bobID, session.ID, 2)
	suite.Error(err)
	suite.Equal(apperrors.ErrSessionNotLive, apperrors.GetCode(err))
}

// TestMoveInsufficientBalance 测试余额不足时落子被拒绝
func (suite *MatchServiceTestSuite) TestMoveInsufficientBalance() {
	session, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "bob")
	suite.NoError(err)

	// 把alice的余额压到一手押注以下
	suite.NoError(suite.db.Model(&models.Wallet{}).
		Where("account_id = ?", "alice").
		Update("balance", 50).Error)

	_, err = suite.matchService.Move(suite.ctx, suite.aliceID, session.ID, 0)
	suite.Error(err)
	suite.Equal(apperrors.ErrInsufficientBalance, apperrors.GetCode(err))

	// 钱包分文未动，也没有留下流水
	suite.Equal(int64(50), suite.balanceOf("alice"))
	var txnCount int64
	suite.db.Model(&models.Transaction{}).Count(&txnCount)
	suite.Equal(int64(0), txnCount)

	// 对局还在等这一手
	persisted, err := suite.matchService.GetMatch(suite.ctx, session.ID)
	suite.NoError(err)
	suite.Equal(0, persisted.MoveCount)
}

// TestMoveRefundOnEngineRejection 测试引擎拒绝落子后押注退回
func (suite *MatchServiceTestSuite) TestMoveRefundOnEngineRejection() {
	session, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "bob")
	suite.NoError(err)

	// 第一手正常
	_, err = suite.matchService.Move(suite.ctx, suite.aliceID, session.ID, 0)
	suite.NoError(err)
	suite.Equal(int64(900), suite.balanceOf("alice"))

	// 连下两手，引擎按轮次拒绝
	_, err = suite.matchService.Move(suite.ctx, suite.aliceID, session.ID, 1)
	suite.Error(err)
	suite.Equal(apperrors.ErrNotYourTurn, apperrors.GetCode(err))

	// 押注已退回
	suite.Equal(int64(900), suite.balanceOf("alice"))

	// 流水轨迹：成功1笔、失败1笔、退款1笔
	var succeeded, failed, refunded int64
	suite.db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TransactionTypeStake, "success").
		Count(&succeeded)
	suite.db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TransactionTypeStake, "failed").
		Count(&failed)
	suite.db.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", models.TransactionTypeStakeRefund, "success").
		Count(&refunded)
	suite.Equal(int64(1), succeeded)
	suite.Equal(int64(1), failed)
	suite.Equal(int64(1), refunded)

	// 押注统计只剩成立的那一手
	wallet, err := suite.walletRepo.FindByAccountID(suite.ctx, "alice")
	suite.NoError(err)
	suite.Equal(int64(100), wallet.TotalStake)
}

// TestResignSettlement 测试认输后对方拿走奖池
func (suite *MatchServiceTestSuite) TestResignSettlement() {
	session, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "bob")
	suite.NoError(err)

	_, err = suite.matchService.Move(suite.ctx, suite.aliceID, session.ID, 0)
	suite.NoError(err)
	_, err = suite.matchService.Move(suite.ctx, suite.bobID, session.ID, 1)
	suite.NoError(err)

	// bob认输，奖池200归alice
	resigned, err := suite.matchService.Resign(suite.ctx, suite.bobID, session.ID)
	suite.NoError(err)
	suite.Equal(game.StatusResigned, resigned.Status)
	suite.Equal("alice", resigned.Winner)

	acct, err := suite.services.Ledger.Account(suite.ctx, "alice")
	suite.NoError(err)
	suite.Equal(int64(200), acct.Score)
	suite.Equal(int64(190), acct.Balance) // 扣5%手续费

	// 终局后不能再认输
	_, err = suite.matchService.Resign(suite.ctx, suite.aliceID, session.ID)
	suite.Error(err)
	suite.Equal(apperrors.ErrSessionNotLive, apperrors.GetCode(err))
}

// TestClaimForfeit 测试超时判负
func (suite *MatchServiceTestSuite) TestClaimForfeit() {
	session, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "bob")
	suite.NoError(err)

	_, err = suite.matchService.Move(suite.ctx, suite.aliceID, session.ID, 0)
	suite.NoError(err)

	// 窗口未到，判负被拒绝
	_, err = suite.matchService.ClaimForfeit(suite.ctx, suite.aliceID, session.ID)
	suite.Error(err)
	suite.Equal(apperrors.ErrClaimTooEarly, apperrors.GetCode(err))

	// 等bob超时
	time.Sleep(80 * time.Millisecond)

	forfeited, err := suite.matchService.ClaimForfeit(suite.ctx, suite.aliceID, session.ID)
	suite.NoError(err)
	suite.Equal(game.StatusForfeited, forfeited.Status)
	suite.Equal("alice", forfeited.Winner)

	// 奖池100结算给alice：净95，平台5
	acct, err := suite.services.Ledger.Account(suite.ctx, "alice")
	suite.NoError(err)
	suite.Equal(int64(95), acct.Balance)

	platform, err := suite.services.Ledger.Account(suite.ctx, "platform")
	suite.NoError(err)
	suite.Equal(int64(5), platform.Balance)
}

// TestGetBoard 测试棋盘快照
func (suite *MatchServiceTestSuite) TestGetBoard() {
	session, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "bob")
	suite.NoError(err)

	_, err = suite.matchService.Move(suite.ctx, suite.aliceID, session.ID, 3)
	suite.NoError(err)
	_, err = suite.matchService.Move(suite.ctx, suite.bobID, session.ID, 4)
	suite.NoError(err)

	view, err := suite.matchService.GetBoard(suite.ctx, session.ID)
	suite.NoError(err)
	suite.Equal(session.ID, view.MatchID)
	suite.Len(view.Cells, 42)
	suite.Equal(2, view.MoveCount)
	suite.Equal(string(game.StatusLive), view.Status)
	suite.Equal("alice", view.Turn) // 两手之后又轮到玩家1
	suite.NotEmpty(view.Render)

	// 底行第3列是玩家1的子、第4列是玩家2的子
	bottomRow := view.Cells[35:42]
	suite.Equal(byte('1'), bottomRow[3])
	suite.Equal(byte('2'), bottomRow[4])
}

// TestGetPlayerMatches 测试查询玩家的对局
func (suite *MatchServiceTestSuite) TestGetPlayerMatches() {
	session, err := suite.matchService.CreateMatch(suite.ctx, suite.aliceID, "bob")
	suite.NoError(err)

	matches, total, err := suite.matchService.GetPlayerMatches(suite.ctx, suite.aliceID, 1, 10)
	suite.NoError(err)
	suite.Equal(int64(1), total)
	suite.Len(matches, 1)
	suite.Equal(session.ID, matches[0].ID)

	// 列出全部对局
	sessions, listTotal, err := suite.matchService.ListMatches(suite.ctx, 1, 10)
	suite.NoError(err)
	suite.Equal(int64(1), listTotal)
	suite.Len(sessions, 1)

	// 不存在的对局
	_, err = suite.matchService.GetMatch(suite.ctx, 99999)
	suite.Error(err)
	suite.Equal(apperrors.ErrSessionNotFound, apperrors.GetCode(err))
}

func TestMatchServiceSuite(t *testing.T) {
	suite.Run(t, new(MatchServiceTestSuite))
}
