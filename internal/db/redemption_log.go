package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/redemption"

	"github.com/shopspring/decimal"
)

// RedemptionLog is the append-only audit trail of completed redemptions.
type RedemptionLog struct {
	db *DB
}

var _ redemption.Recorder = (*RedemptionLog)(nil)

func NewRedemptionLog(db *DB) *RedemptionLog {
	return &RedemptionLog{db: db}
}

// Record inserts r. Re-recording the same session is a no-op.
func (l *RedemptionLog) Record(ctx context.Context, r redemption.Record) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO redemptions (
			session_id, user_address, zapp_code, zapp_amount, token_amount,
			tx_hash, block_number, gas_used, redeemed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO NOTHING`,
		r.SessionID,
		r.UserAddress,
		r.Code,
		r.Amount,
		r.TokenAmount.String(),
		r.Receipt.TxReference,
		int64(r.Receipt.BlockHeight),
		r.Receipt.FeeUsed,
		r.RedeemedAt,
	)
	if err != nil {
		return fmt.Errorf("insert redemption %s: %w", r.SessionID, err)
	}
	return nil
}

// Summary aggregates the audit trail for one user.
type Summary struct {
	Redemptions   int
	ZappsRedeemed int64
	TokensMinted  decimal.Decimal
	LastRedeemed  *time.Time
}

func (l *RedemptionLog) SummaryForUser(ctx context.Context, userAddress string) (Summary, error) {
	var (
		s      Summary
		tokens string
		last   *time.Time
	)

	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(zapp_amount), 0), COALESCE(SUM(token_amount), 0)::text, MAX(redeemed_at)
		FROM redemptions
		WHERE LOWER(user_address) = $1`,
		strings.ToLower(userAddress),
	).Scan(&s.Redemptions, &s.ZappsRedeemed, &tokens, &last)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize redemptions: %w", err)
	}

	s.TokensMinted, err = decimal.NewFromString(tokens)
	if err != nil {
		return Summary{}, fmt.Errorf("parse token sum %q: %w", tokens, err)
	}
	s.LastRedeemed = last
	return s, nil
}
