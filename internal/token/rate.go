// Package token converts off-chain Zapp amounts into on-chain token amounts.
package token

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Rate is the fixed Zapp-to-token ratio. Every response that reports a token
// amount goes through the same Rate so clients never see two figures for one
// redemption.
type Rate struct {
	Numerator   int64
	Denominator int64
}

// DefaultRate is 1 Zapp = 0.01 token.
var DefaultRate = Rate{Numerator: 1, Denominator: 100}

func NewRate(numerator, denominator int64) (Rate, error) {
	if numerator <= 0 || denominator <= 0 {
		return Rate{}, errors.New("token: rate terms must be positive")
	}
	return Rate{Numerator: numerator, Denominator: denominator}, nil
}

// Tokens returns amount * Numerator / Denominator.
func (r Rate) Tokens(amount int64) decimal.Decimal {
	if r.Denominator == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(r.Numerator)).
		DivRound(decimal.NewFromInt(r.Denominator), 18)
}

// TokensPerZapp is the token value of a single Zapp.
func (r Rate) TokensPerZapp() decimal.Decimal {
	return r.Tokens(1)
}

func (r Rate) String() string {
	return fmt.Sprintf("1 Zapp = %s tokens", r.TokensPerZapp().String())
}
