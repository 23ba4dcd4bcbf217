package models

import (
	"time"
)

// 对局状态，与引擎侧的状态字符串一致
const (
	MatchStatusLive      = "live"
	MatchStatusWon       = "won"
	MatchStatusDrawn     = "drawn"
	MatchStatusResigned  = "resigned"
	MatchStatusForfeited = "forfeited"
)

// Match 对局表
// ID由注册表序列分配而不是数据库自增，重启后依然单调不复用。
// BoardCells是7列6行棋盘的42字符编码（自顶行到底行逐行拼接，
// '0'空位、'1'玩家1、'2'玩家2），与引擎的棋盘编码一致
type Match struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Player1       string    `gorm:"size:64;not null;index" json:"player1"`
	Player2       string    `gorm:"size:64;index" json:"player2"` // 空串表示虚位以待
	BoardCells    string    `gorm:"size:42;not null" json:"board_cells"`
	Player2Turn   bool      `gorm:"default:false" json:"player2_turn"`
	PrizePool     int64     `gorm:"default:0" json:"prize_pool"`
	ClaimDeadline time.Time `json:"claim_deadline"`
	Status        string    `gorm:"size:20;not null;index" json:"status"` // live, won, drawn, resigned, forfeited
	Winner        string    `gorm:"size:64" json:"winner"`
	MoveCount     int       `gorm:"default:0" json:"move_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定Match表名
func (Match) TableName() string {
	return "matches"
}

// IsLive 检查对局是否还在进行
func (m *Match) IsLive() bool {
	return m.Status == MatchStatusLive
}

// MatchMove 落子历史表
type MatchMove struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	MatchID  uint64    `gorm:"not null;index" json:"match_id"`
	Seq      int       `gorm:"not null" json:"seq"` // 本局第几手，从1开始
	Account  string    `gorm:"size:64;not null;index" json:"account"`
	ColIndex int       `json:"col_index"`
	RowIndex int       `json:"row_index"`
	Stake    int64     `json:"stake"`
	PlayedAt time.Time `json:"played_at"`
}

// TableName 指定MatchMove表名
func (MatchMove) TableName() string {
	return "match_moves"
}
