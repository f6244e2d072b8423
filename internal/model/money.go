package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidMoney возвращается, если сумму нельзя представить в копейках.
var ErrInvalidMoney = errors.New("invalid money amount")

// Money хранит денежную сумму в копейках (центах).
// В JSON сумма передаётся числом с не более чем двумя знаками после запятой.
type Money int64

// MaxAmount: наибольшая по модулю сумма, которую принимает сервис (10 млрд в основных единицах).
const MaxAmount Money = 1_000_000_000_000

// ParseMoney разбирает десятичную строку вида "10.50" в копейки.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return FromDecimal(d)
}

// FromDecimal переводит десятичное значение в копейки без потери точности.
func FromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("%w: more than two fractional digits in %s", ErrInvalidMoney, d.String())
	}
	if cents.Abs().GreaterThan(decimal.NewFromInt(int64(MaxAmount))) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidMoney, d.String())
	}
	return Money(cents.IntPart()), nil
}

// Decimal возвращает сумму в основных единицах.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Add складывает суммы. Переполнение int64 возвращает ErrInvalidMoney.
func (m Money) Add(d Money) (Money, error) {
	sum := m + d
	if (d > 0 && sum < m) || (d < 0 && sum > m) {
		return 0, fmt.Errorf("%w: %s + %s overflows", ErrInvalidMoney, m, d)
	}
	return sum, nil
}

// Abs возвращает модуль суммы.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON кодирует сумму числом, например 10.5.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON принимает как число, так и строку.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMoney, string(data))
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
