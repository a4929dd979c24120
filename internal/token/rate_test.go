package token

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTokens(t *testing.T) {
	tests := []struct {
		name   string
		rate   Rate
		amount int64
		want   string
	}{
		{"default rate", DefaultRate, 500, "5"},
		{"fractional result", DefaultRate, 150, "1.5"},
		{"single zapp", DefaultRate, 1, "0.01"},
		{"original contract terms", Rate{Numerator: 100, Denominator: 10000}, 500, "5"},
		{"repeating fraction", Rate{Numerator: 1, Denominator: 3}, 1, "0.333333333333333333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := decimal.RequireFromString(tt.want)
			got := tt.rate.Tokens(tt.amount)
			assert.True(t, want.Equal(got), "got %s, want %s", got, want)
		})
	}
}

func TestNewRateRejectsNonPositiveTerms(t *testing.T) {
	_, err := NewRate(1, 0)
	require.Error(t, err)

	_, err = NewRate(0, 100)
	require.Error(t, err)

	r, err := NewRate(3, 4)
	require.NoError(t, err)
	assert.Equal(t, Rate{Numerator: 3, Denominator: 4}, r)
}

func TestRateString(t *testing.T) {
	assert.Equal(t, "1 Zapp = 0.01 tokens", DefaultRate.String())
}
