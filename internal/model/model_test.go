package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductSalePrice(t *testing.T) {
	tests := []struct {
		name   string
		cost   Money
		margin string
		want   Money
	}{
		{name: "quarter margin", cost: 8000, margin: "0.25", want: 10000},
		{name: "zero margin", cost: 599, margin: "0", want: 599},
		{name: "rounds half away from zero", cost: 1, margin: "0.5", want: 2},
		{name: "fractional result", cost: 749, margin: "0.1", want: 824},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{
				CostPrice:    tt.cost,
				ProfitMargin: decimal.RequireFromString(tt.margin),
			}
			got, err := p.SalePrice()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProductSalePrice_OutOfRange(t *testing.T) {
	p := Product{
		CostPrice:    Money(math.MaxInt64),
		ProfitMargin: decimal.RequireFromString("0.25"),
	}
	_, err := p.SalePrice()
	assert.ErrorIs(t, err, ErrInvalidMoney)
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney(" 1000.00 ")
	require.NoError(t, err)
	assert.Equal(t, Money(100000), m)

	m, err = ParseMoney("5.999")
	require.NoError(t, err)
	assert.Equal(t, Money(600), m)

	_, err = ParseMoney("invalid_price")
	assert.ErrorIs(t, err, ErrInvalidMoney)

	m, err = ParseMoney("92233720368547758.07")
	require.NoError(t, err)
	assert.Equal(t, Money(math.MaxInt64), m)

	_, err = ParseMoney("92233720368547758.08")
	assert.ErrorIs(t, err, ErrInvalidMoney)

	_, err = ParseMoney("100000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidMoney)

	_, err = ParseMoney("-100000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidMoney)
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Balance Money `json:"balance"`
	}{Balance: 80000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":"800.00"}`, string(data))

	var in struct {
		Amount Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 12.5}`), &in))
	assert.Equal(t, Money(1250), in.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "7.49"}`), &in))
	assert.Equal(t, Money(749), in.Amount)

	err = json.Unmarshal([]byte(`{"amount": 100000000000000000000}`), &in)
	assert.ErrorIs(t, err, ErrInvalidMoney)
}

func TestMoneyMul(t *testing.T) {
	tests := []struct {
		name    string
		m       Money
		n       int64
		want    Money
		wantErr bool
	}{
		{name: "simple", m: 10000, n: 2, want: 20000},
		{name: "zero quantity", m: 10000, n: 0, want: 0},
		{name: "max exact", m: 1, n: math.MaxInt64, want: Money(math.MaxInt64)},
		{name: "wraps to small positive", m: 8000, n: 2305843009213694, wantErr: true},
		{name: "wraps to negative", m: 10000, n: math.MaxInt64 / 2, wantErr: true},
		{name: "min times minus one", m: Money(math.MinInt64), n: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.m.Mul(tt.n)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMoneyOverflow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyAdd(t *testing.T) {
	got, err := Money(100).Add(250)
	require.NoError(t, err)
	assert.Equal(t, "3.50", got.String())

	_, err = Money(100).Add(Money(math.MaxInt64))
	assert.ErrorIs(t, err, ErrMoneyOverflow)

	_, err = Money(math.MinInt64).Add(-1)
	assert.ErrorIs(t, err, ErrMoneyOverflow)
}
