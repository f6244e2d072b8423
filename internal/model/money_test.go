package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Money
		wantErr bool
	}{
		{name: "integer", in: "10", want: 1000},
		{name: "two digits", in: "10.05", want: 1005},
		{name: "one digit", in: "0.5", want: 50},
		{name: "negative", in: "-3.25", want: -325},
		{name: "too precise", in: "1.001", wantErr: true},
		{name: "garbage", in: "ten", wantErr: true},
		{name: "upper bound", in: "10000000000", want: MaxAmount},
		{name: "above bound", in: "10000000000.01", wantErr: true},
		{name: "wraps int64", in: "184467440737095516.17", wantErr: true},
		{name: "wraps negative", in: "-92233720368547758.09", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMoney)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	var req struct {
		Amount Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 15.5}`), &req))
	assert.Equal(t, Money(1550), req.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "2.10"}`), &req))
	assert.Equal(t, Money(210), req.Amount)

	assert.Error(t, json.Unmarshal([]byte(`{"amount": 0.001}`), &req))
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"amount": 92233720368547758.08}`), &req), ErrInvalidMoney)
	assert.Equal(t, Money(210), req.Amount)

	out, err := json.Marshal(Balance{Current: 1050, Withdrawn: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"current": 10.5, "withdrawn": 0.07, "pending": 0}`, string(out))
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "10.00", Money(1000).String())
	assert.Equal(t, "-0.05", Money(-5).String())
	assert.Equal(t, Money(5), Money(-5).Abs())
}

func TestMoneyAdd(t *testing.T) {
	sum, err := Money(150).Add(-200)
	require.NoError(t, err)
	assert.Equal(t, Money(-50), sum)

	_, err = Money(math.MaxInt64 - 10).Add(100)
	assert.ErrorIs(t, err, ErrInvalidMoney)

	_, err = Money(math.MinInt64 + 10).Add(-100)
	assert.ErrorIs(t, err, ErrInvalidMoney)
}
