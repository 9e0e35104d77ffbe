// README: Common money value object used across modules (amounts in minor units).
package types

import (
	"fmt"
	"math"
)

type Money struct {
	Amount   int64
	Currency string
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}
}

func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}
}

// MulInt multiplies by a whole quantity (hours, units).
func (m Money) MulInt(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

// rateScale is the precision rates are fixed to before multiplying (six decimals).
const rateScale = 1_000_000

// MulRate multiplies by a fractional rate and rounds half away from zero to the
// nearest minor unit. The product is taken in integers so that exact halves
// such as 5 x 0.7 = 3.5 are not lost to binary float error.
func (m Money) MulRate(rate float64) Money {
	scaled := int64(math.Round(rate * rateScale))
	return Money{Amount: divRoundHalfAway(m.Amount*scaled, rateScale), Currency: m.Currency}
}

func divRoundHalfAway(n, d int64) int64 {
	q, r := n/d, n%d
	if r < 0 {
		r = -r
	}
	if 2*r >= d {
		if n < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

// FloorZero clamps negative balances to zero.
func (m Money) FloorZero() Money {
	if m.Amount < 0 {
		m.Amount = 0
	}
	return m
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// String renders the amount with two decimals, e.g. "120.00 INR".
func (m Money) String() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, a/100, a%100, m.Currency)
}

// Decimal returns the major-unit value for JSON responses.
func (m Money) Decimal() float64 {
	return float64(m.Amount) / 100
}

// FromDecimal converts a major-unit value (e.g. 40.5) to Money, rounding to the minor unit.
func FromDecimal(v float64, currency string) Money {
	return Money{Amount: int64(math.Round(v * 100)), Currency: currency}
}
