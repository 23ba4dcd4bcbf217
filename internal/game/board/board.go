package board

import (
	"errors"
	"strings"
)

// 棋盘尺寸固定：7列6行，连成4子获胜
const (
	Columns   = 7
	Rows      = 6
	WinLength = 4
	CellCount = Columns * Rows
)

// Cell 单元格取值
type Cell uint8

const (
	Empty   Cell = iota // 空位
	Player1             // 玩家1的棋子
	Player2             // 玩家2的棋子
)

// 棋盘操作错误
var (
	ErrColumnOutOfRange = errors.New("列坐标越界")
	ErrColumnFull       = errors.New("该列已满")
	ErrBadEncoding      = errors.New("棋盘编码无效")
)

// Board 7×6棋盘快照，值类型，按值传递即为一次拷贝
// 行号从底部开始：row=0 是最下面一行，落子时重力向下
type Board [Columns][Rows]Cell

// OnBoard 判断坐标是否在棋盘范围内
func OnBoard(col, row int) bool {
	return col >= 0 && col < Columns && row >= 0 && row < Rows
}

// At 返回指定位置的单元格值，越界视为空位
func (b Board) At(col, row int) Cell {
	if !OnBoard(col, row) {
		return Empty
	}
	return b[col][row]
}

// Drop 在指定列落子，返回落子后的棋盘和落点行号
// 棋子落在该列最低的空位上；列满或越界返回错误，棋盘保持原样
func (b Board) Drop(col int, c Cell) (Board, int, error) {
	if col < 0 || col >= Columns {
		return b, -1, ErrColumnOutOfRange
	}
	for row := 0; row < Rows; row++ {
		if b[col][row] == Empty {
			b[col][row] = c
			return b, row, nil
		}
	}
	return b, -1, ErrColumnFull
}

// HasFourInARow 判断刚落在 (col,row) 的棋子是否连成4子
// 只从落点沿4条轴向两端扫描，计数从1（落点本身）开始，
// 遇到不同棋子或出界即停，任一轴累计达到4即获胜。
// 复杂度与棋盘大小无关，不做全盘扫描。
func (b Board) HasFourInARow(col, row int) bool {
	if !OnBoard(col, row) {
		return false
	}
	mark := b[col][row]
	if mark == Empty {
		return false
	}

	// 横、竖、斜↗、斜↘
	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		count := 1

		// 正方向
		fc, fr := col+d[0], row+d[1]
		for OnBoard(fc, fr) && b[fc][fr] == mark {
			count++
			fc += d[0]
			fr += d[1]
		}

		// 反方向
		bc, br := col-d[0], row-d[1]
		for OnBoard(bc, br) && b[bc][br] == mark {
			count++
			bc -= d[0]
			br -= d[1]
		}

		if count >= WinLength {
			return true
		}
	}
	return false
}

// Full 判断棋盘是否已满（42格全部有子）
// 只在当前着法未获胜时才需要调用，胜负判定优先于平局判定
func (b Board) Full() bool {
	for col := 0; col < Columns; col++ {
		for row := 0; row < Rows; row++ {
			if b[col][row] == Empty {
				return false
			}
		}
	}
	return true
}

// Encode 将棋盘压缩为42字符串用于持久化
// 自顶行向底行、每行从左到右，'0'=空 '1'=玩家1 '2'=玩家2
func (b Board) Encode() string {
	out := make([]byte, 0, CellCount)
	for row := Rows - 1; row >= 0; row-- {
		for col := 0; col < Columns; col++ {
			out = append(out, byte('0'+b[col][row]))
		}
	}
	return string(out)
}

// Decode 从42字符串还原棋盘
func Decode(s string) (Board, error) {
	var b Board
	if len(s) != CellCount {
		return b, ErrBadEncoding
	}
	i := 0
	for row := Rows - 1; row >= 0; row-- {
		for col := 0; col < Columns; col++ {
			ch := s[i]
			if ch < '0' || ch > '2' {
				return Board{}, ErrBadEncoding
			}
			b[col][row] = Cell(ch - '0')
			i++
		}
	}
	return b, nil
}

// Render 输出可读的棋盘示意，用于日志和调试接口
func (b Board) Render() string {
	var sb strings.Builder
	marks := [...]byte{'.', 'X', 'O'}
	for row := Rows - 1; row >= 0; row-- {
		sb.WriteByte('|')
		for col := 0; col < Columns; col++ {
			sb.WriteByte(' ')
			sb.WriteByte(marks[b[col][row]])
		}
		sb.WriteString(" |\n")
	}
	sb.WriteString("  0 1 2 3 4 5 6")
	return sb.String()
}
