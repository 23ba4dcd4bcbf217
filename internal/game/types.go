package game

import (
	"time"

	"github.com/wfunc/connect4-game/internal/game/board"
)

// Status 对局状态
type Status string

const (
	StatusLive      Status = "live"      // 进行中
	StatusWon       Status = "won"       // 连成四子获胜
	StatusDrawn     Status = "drawn"     // 棋盘下满，平局
	StatusResigned  Status = "resigned"  // 一方认输
	StatusForfeited Status = "forfeited" // 超时被判负
)

// Terminal 判断是否为终局状态，终局后对局不再接受任何修改操作
func (s Status) Terminal() bool {
	return s != StatusLive
}

// Valid 判断状态取值是否合法
func (s Status) Valid() bool {
	switch s {
	case StatusLive, StatusWon, StatusDrawn, StatusResigned, StatusForfeited:
		return true
	}
	return false
}

// Role 账户在对局中的席位
type Role uint8

const (
	RoleNone    Role = iota // 与对局无关
	RolePlayer1             // 玩家1（先手）
	RolePlayer2             // 玩家2（后手）
)

// Session 一局对战的完整状态
// 只能通过引擎的落子、认输、判超时三个操作修改，终局恰好发生一次
type Session struct {
	ID            uint64      `json:"id"`
	Player1       string      `json:"player1"`
	Player2       string      `json:"player2"` // 空串表示虚位以待，第一个落子的对手自动入座
	Board         board.Board `json:"-"`
	Player2Turn   bool        `json:"player2_turn"`
	PrizePool     int64       `json:"prize_pool"`
	ClaimDeadline time.Time   `json:"claim_deadline"`
	Status        Status      `json:"status"`
	Winner        string      `json:"winner,omitempty"` // 终局后的获胜账户，平局或无人获胜时为空
	MoveCount     int         `json:"move_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// participantRole 解析账户在对局中的席位
// 所有操作统一经过本方法做参与者判定，不允许散落的地址比较。
// 第二席位空缺时，任何非玩家1的账户都是候补玩家2，joining 返回 true；
// 候补席位只对落子有效，认输和判超时要求已入座的参与者。
func (s *Session) participantRole(account string) (role Role, joining bool) {
	switch {
	case account == s.Player1:
		return RolePlayer1, false
	case s.Player2 != "" && account == s.Player2:
		return RolePlayer2, false
	case s.Player2 == "":
		return RolePlayer2, true
	default:
		return RoleNone, false
	}
}

// opponentOf 返回指定席位的对手账户
func (s *Session) opponentOf(role Role) string {
	if role == RolePlayer1 {
		return s.Player2
	}
	return s.Player1
}

// TurnAccount 返回当前轮到落子的账户，第二席位空缺且轮到后手时返回空串
func (s *Session) TurnAccount() string {
	if s.Player2Turn {
		return s.Player2
	}
	return s.Player1
}

// markOf 席位对应的棋子
func markOf(role Role) board.Cell {
	if role == RolePlayer2 {
		return board.Player2
	}
	return board.Player1
}

// Rules 对局规则，初始化时注入，之后不可变
type Rules struct {
	Stake           int64         // 每手固定押注额（分）
	ClaimWindow     time.Duration // 超时判负窗口
	FeePercent      int64         // 平台手续费百分比，0-100
	PlatformAccount string        // 手续费入账的平台账户
}

// MoveResult 落子结果
type MoveResult struct {
	Session  *Session `json:"session"`
	Column   int      `json:"column"`
	Row      int      `json:"row"`
	Terminal bool     `json:"terminal"`
}
