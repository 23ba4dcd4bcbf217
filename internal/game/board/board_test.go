package board

import (
	"errors"
	"testing"
)

// mustDrop 依次在指定列落子，失败即终止测试
func mustDrop(t *testing.T, b Board, c Cell, cols ...int) Board {
	t.Helper()
	for _, col := range cols {
		next, _, err := b.Drop(col, c)
		if err != nil {
			t.Fatalf("Drop(%d) error = %v", col, err)
		}
		b = next
	}
	return b
}

func TestOnBoard(t *testing.T) {
	tests := []struct {
		name     string
		col, row int
		want     bool
	}{
		{"原点", 0, 0, true},
		{"右上角", 6, 5, true},
		{"列越界", 7, 0, false},
		{"行越界", 0, 6, false},
		{"负列", -1, 0, false},
		{"负行", 0, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OnBoard(tt.col, tt.row); got != tt.want {
				t.Errorf("OnBoard(%d, %d) = %v, want %v", tt.col, tt.row, got, tt.want)
			}
		})
	}
}

func TestDrop(t *testing.T) {
	var b Board

	// 重力落子：同一列依次堆高
	b, row, err := b.Drop(3, Player1)
	if err != nil || row != 0 {
		t.Fatalf("first Drop = (%d, %v), want (0, nil)", row, err)
	}
	b, row, err = b.Drop(3, Player2)
	if err != nil || row != 1 {
		t.Fatalf("second Drop = (%d, %v), want (1, nil)", row, err)
	}
	if b.At(3, 0) != Player1 || b.At(3, 1) != Player2 {
		t.Fatal("落子位置与预期不符")
	}

	// 已写入的格子不会被覆盖
	for i := 0; i < 4; i++ {
		b, _, err = b.Drop(3, Player1)
		if err != nil {
			t.Fatalf("Drop(%d) error = %v", i+3, err)
		}
	}
	if b.At(3, 0) != Player1 || b.At(3, 1) != Player2 {
		t.Fatal("堆叠后底部棋子被改写")
	}

	// 第7次落子：列已满
	if _, _, err = b.Drop(3, Player1); !errors.Is(err, ErrColumnFull) {
		t.Errorf("Drop on full column error = %v, want ErrColumnFull", err)
	}

	// 列越界
	if _, _, err = b.Drop(7, Player1); !errors.Is(err, ErrColumnOutOfRange) {
		t.Errorf("Drop(7) error = %v, want ErrColumnOutOfRange", err)
	}
	if _, _, err = b.Drop(-1, Player1); !errors.Is(err, ErrColumnOutOfRange) {
		t.Errorf("Drop(-1) error = %v, want ErrColumnOutOfRange", err)
	}
}

func TestHasFourInARow(t *testing.T) {
	t.Run("纵向四连", func(t *testing.T) {
		b := mustDrop(t, Board{}, Player1, 0, 0, 0, 0)
		if !b.HasFourInARow(0, 3) {
			t.Error("vertical four not detected")
		}
	})

	t.Run("横向四连", func(t *testing.T) {
		b := mustDrop(t, Board{}, Player1, 0, 1, 2, 3)
		if !b.HasFourInARow(3, 0) {
			t.Error("horizontal four not detected")
		}
		// 从中间棋子出发也要能向两侧扫出同一条线
		if !b.HasFourInARow(1, 0) {
			t.Error("horizontal four not detected from middle cell")
		}
	})

	t.Run("斜向上四连", func(t *testing.T) {
		var b Board
		// 垫高：col1×1、col2×2、col3×3 用玩家2填充
		b = mustDrop(t, b, Player2, 1, 2, 2, 3, 3, 3)
		b = mustDrop(t, b, Player1, 0, 1, 2, 3)
		if !b.HasFourInARow(3, 3) {
			t.Error("rising diagonal four not detected")
		}
	})

	t.Run("斜向下四连", func(t *testing.T) {
		var b Board
		b = mustDrop(t, b, Player2, 0, 0, 0, 1, 1, 2)
		b = mustDrop(t, b, Player1, 0, 1, 2, 3)
		if !b.HasFourInARow(0, 3) {
			t.Error("falling diagonal four not detected")
		}
		if !b.HasFourInARow(3, 0) {
			t.Error("falling diagonal four not detected from low end")
		}
	})

	t.Run("三连不算胜", func(t *testing.T) {
		b := mustDrop(t, Board{}, Player1, 0, 1, 2)
		if b.HasFourInARow(2, 0) {
			t.Error("three in a row must not win")
		}
	})

	t.Run("隔断的2加2不算四连", func(t *testing.T) {
		b := mustDrop(t, Board{}, Player1, 0, 1, 3, 4)
		for _, col := range []int{0, 1, 3, 4} {
			if b.HasFourInARow(col, 0) {
				t.Errorf("gap-broken run counted as four at col %d", col)
			}
		}
	})

	t.Run("对方棋子隔断", func(t *testing.T) {
		var b Board
		b = mustDrop(t, b, Player1, 0, 1, 3, 4)
		b = mustDrop(t, b, Player2, 2)
		if b.HasFourInARow(4, 0) || b.HasFourInARow(0, 0) {
			t.Error("runs separated by opponent counted as four")
		}
	})

	t.Run("空位与越界", func(t *testing.T) {
		var b Board
		if b.HasFourInARow(0, 0) {
			t.Error("empty cell must not win")
		}
		if b.HasFourInARow(7, 0) || b.HasFourInARow(0, -1) {
			t.Error("off-board cell must not win")
		}
	})
}

func TestFull(t *testing.T) {
	var b Board
	if b.Full() {
		t.Fatal("empty board reported full")
	}

	// 交替填满42格
	for col := 0; col < Columns; col++ {
		for row := 0; row < Rows; row++ {
			if (col+row)%2 == 0 {
				b[col][row] = Player1
			} else {
				b[col][row] = Player2
			}
		}
	}
	if !b.Full() {
		t.Fatal("filled board not reported full")
	}

	// 任意挖掉一格都不再是满盘
	for col := 0; col < Columns; col++ {
		for row := 0; row < Rows; row++ {
			probe := b
			probe[col][row] = Empty
			if probe.Full() {
				t.Fatalf("board with empty cell (%d,%d) reported full", col, row)
			}
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	var b Board
	b = mustDrop(t, b, Player1, 0, 0, 3)
	b = mustDrop(t, b, Player2, 0, 6, 6)

	encoded := b.Encode()
	if len(encoded) != CellCount {
		t.Fatalf("Encode length = %d, want %d", len(encoded), CellCount)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if decoded != b {
		t.Fatal("decode round-trip mismatch")
	}

	// 空盘编码全为'0'
	empty := Board{}.Encode()
	for i := 0; i < len(empty); i++ {
		if empty[i] != '0' {
			t.Fatal("empty board encoding contains non-zero cell")
		}
	}

	// 非法编码
	if _, err := Decode("12"); !errors.Is(err, ErrBadEncoding) {
		t.Errorf("short encoding error = %v, want ErrBadEncoding", err)
	}
	bad := make([]byte, CellCount)
	for i := range bad {
		bad[i] = '3'
	}
	if _, err := Decode(string(bad)); !errors.Is(err, ErrBadEncoding) {
		t.Errorf("invalid cell encoding error = %v, want ErrBadEncoding", err)
	}
}
