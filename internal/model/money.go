package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money хранит денежную сумму в копейках.
type Money int64

var (
	// ErrInvalidMoney возвращается при разборе некорректной денежной суммы.
	ErrInvalidMoney = errors.New("invalid money amount")
	// ErrMoneyOverflow возвращается, если результат операции не помещается в Money.
	ErrMoneyOverflow = errors.New("money amount out of range")
)

var (
	minKopecks = decimal.NewFromInt(math.MinInt64)
	maxKopecks = decimal.NewFromInt(math.MaxInt64)
)

// MoneyFromDecimal округляет сумму до копеек, половина округляется от нуля.
// Суммы вне диапазона int64 копеек дают ErrInvalidMoney.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	kopecks := d.Shift(2).Round(0)
	if kopecks.LessThan(minKopecks) || kopecks.GreaterThan(maxKopecks) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMoney, d.String())
	}
	return Money(kopecks.IntPart()), nil
}

// ParseMoney разбирает строку вида "80.00" в сумму в копейках.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return MoneyFromDecimal(d)
}

// Decimal возвращает сумму в рублях.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Mul умножает цену единицы на количество. Переполнение int64 даёт ErrMoneyOverflow.
func (m Money) Mul(n int64) (Money, error) {
	if m == 0 || n == 0 {
		return 0, nil
	}
	res := int64(m) * n
	if res/n != int64(m) || (m == -1 && n == math.MinInt64) || (n == -1 && m == math.MinInt64) {
		return 0, fmt.Errorf("%w: %s * %d", ErrMoneyOverflow, m, n)
	}
	return Money(res), nil
}

// Add складывает две суммы. Переполнение int64 даёт ErrMoneyOverflow.
func (m Money) Add(other Money) (Money, error) {
	res := m + other
	if (other > 0 && res < m) || (other < 0 && res > m) {
		return 0, fmt.Errorf("%w: %s + %s", ErrMoneyOverflow, m, other)
	}
	return res, nil
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON кодирует сумму строкой с двумя знаками после запятой.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON принимает сумму как числом, так и строкой.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMoney, string(data))
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
