package utils

import (
	"errors"
	"math"
)

// 整数运算错误
var (
	ErrOverflow   = errors.New("整数运算溢出")
	ErrDivideZero = errors.New("除数不能为零")
)

// AddInt64 带溢出检查的加法
// 奖池累计、余额入账等资金运算必须经过本函数，溢出返回错误而不是回绕
func AddInt64(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOverflow
	}
	return sum, nil
}

// SubInt64 带溢出检查的减法
func SubInt64(a, b int64) (int64, error) {
	diff := a - b
	if (b > 0 && diff > a) || (b < 0 && diff < a) {
		return 0, ErrOverflow
	}
	return diff, nil
}

// MulInt64 带溢出检查的乘法
func MulInt64(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a == math.MinInt64 || b == math.MinInt64 {
		// MinInt64 的绝对值无法表示，任何非零乘数都会溢出（乘1除外）
		if a == 1 || b == 1 {
			return a * b, nil
		}
		return 0, ErrOverflow
	}
	product := a * b
	if product/b != a {
		return 0, ErrOverflow
	}
	return product, nil
}

// DivInt64 带检查的整数除法，向零取整
func DivInt64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, ErrDivideZero
	}
	if a == math.MinInt64 && b == -1 {
		return 0, ErrOverflow
	}
	return a / b, nil
}
