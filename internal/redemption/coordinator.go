package redemption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/attest"
	"github.com/b1ank002/ZappkaApp/internal/ledger"
	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/metrics"
	"github.com/b1ank002/ZappkaApp/internal/session"
	"github.com/b1ank002/ZappkaApp/internal/token"

	"github.com/shopspring/decimal"
)

var (
	ErrCodeAlreadyUsed    = errors.New("zapp code already used on chain")
	ErrTimeout            = errors.New("redemption timed out, outcome unknown")
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrInvalidAttestation = errors.New("attestation does not match session")
)

const DefaultTimeout = 2 * time.Minute

// Record is the audit entry written after a successful redemption.
type Record struct {
	SessionID   string
	UserAddress string
	Code        string
	Amount      int64
	TokenAmount decimal.Decimal
	Receipt     ledger.Receipt
	RedeemedAt  time.Time
}

// Recorder stores audit entries. Failures are logged, never surfaced: the
// chain already holds the authoritative record.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

type Result struct {
	Session     session.Session
	Receipt     ledger.Receipt
	TokenAmount decimal.Decimal
}

// Coordinator drives verified sessions to completed by redeeming their code
// on the ledger exactly once.
type Coordinator struct {
	sessions *session.Store
	ledger   ledger.Ledger
	signer   attest.Signer
	rate     token.Rate
	timeout  time.Duration
	recorder Recorder
}

type Option func(*Coordinator)

// WithTimeout bounds the ledger calls of a single Redeem.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

func New(sessions *session.Store, l ledger.Ledger, rate token.Rate, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions: sessions,
		ledger:   l,
		signer:   sessions.Signer(),
		rate:     rate,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Rate() token.Rate {
	return c.rate
}

// Redeem submits the session's code to the ledger and completes the session.
// Only one Redeem per session runs at a time; a concurrent call fails with
// session.ErrRedemptionInProgress without touching the ledger.
func (c *Coordinator) Redeem(ctx context.Context, sessionID string, attestation attest.Attestation) (Result, error) {
	sess, release, err := c.sessions.BeginRedemption(sessionID)
	if err != nil {
		c.observe(err)
		return Result{}, err
	}
	defer release()

	amount := *sess.Amount
	claim := attest.Claim{UserAddress: sess.UserAddress, Code: sess.Code, Amount: amount}
	if err := c.signer.Verify(claim, attestation); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidAttestation, err)
		c.observe(err)
		return Result{}, err
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// A previous attempt may have landed on chain after its caller gave up.
	used, err := c.isCodeUsed(ledgerCtx, sess.Code)
	if err != nil {
		err = ledgerError(ledgerCtx, err)
		c.observe(err)
		return Result{}, err
	}
	if used {
		logger.Warn("zapp code already used on chain", map[string]any{
			"session_id": sess.ID,
			"code":       sess.Code,
		})
		c.observe(ErrCodeAlreadyUsed)
		return Result{}, ErrCodeAlreadyUsed
	}

	receipt, err := c.submit(ledgerCtx, sess.Code, amount, attestation)
	if err != nil {
		err = ledgerError(ledgerCtx, err)
		logger.Error("redemption submission failed", map[string]any{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
		c.observe(err)
		return Result{}, err
	}

	// The transaction is mined; record it even if the caller has gone away.
	completeCtx := context.WithoutCancel(ctx)

	done, err := c.sessions.Complete(completeCtx, sess.ID, receipt.TxReference)
	switch {
	case errors.Is(err, session.ErrInvalidState):
		// Completed by another path. The chain is the source of truth, so
		// report the receipt and do not resubmit.
		done, err = c.sessions.Get(sess.ID)
		if err != nil {
			return Result{}, err
		}
		logger.Warn("session completed concurrently", map[string]any{
			"session_id":     sess.ID,
			"tx_hash":        receipt.TxReference,
			"stored_tx_hash": done.TxReference,
		})
	case err != nil:
		c.observe(err)
		return Result{Receipt: receipt}, fmt.Errorf("redemption: record completion of %s: %w", receipt.TxReference, err)
	}

	tokens := c.rate.Tokens(amount)
	c.record(completeCtx, Record{
		SessionID:   sess.ID,
		UserAddress: sess.UserAddress,
		Code:        sess.Code,
		Amount:      amount,
		TokenAmount: tokens,
		Receipt:     receipt,
		RedeemedAt:  *done.CompletedAt,
	})
	c.observe(nil)

	logger.Info("tokens redeemed", map[string]any{
		"session_id":   sess.ID,
		"tx_hash":      receipt.TxReference,
		"block_number": receipt.BlockHeight,
		"token_amount": tokens.String(),
	})

	return Result{Session: done, Receipt: receipt, TokenAmount: tokens}, nil
}

func (c *Coordinator) isCodeUsed(ctx context.Context, code string) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.LedgerLatency.WithLabelValues("is_code_used").Observe(time.Since(start).Seconds())
	}()
	return c.ledger.IsCodeUsed(ctx, code)
}

func (c *Coordinator) submit(ctx context.Context, code string, amount int64, attestation []byte) (ledger.Receipt, error) {
	start := time.Now()
	defer func() {
		metrics.LedgerLatency.WithLabelValues("submit_redemption").Observe(time.Since(start).Seconds())
	}()
	return c.ledger.SubmitRedemption(ctx, code, amount, attestation)
}

func (c *Coordinator) record(ctx context.Context, r Record) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, r); err != nil {
		logger.Warn("failed to write redemption audit record", map[string]any{
			"session_id": r.SessionID,
			"tx_hash":    r.Receipt.TxReference,
			"error":      err.Error(),
		})
	}
}

func (c *Coordinator) observe(err error) {
	metrics.Redemptions.WithLabelValues(Outcome(err)).Inc()
}

// ledgerError classifies a failed ledger call. A deadline or cancellation
// means the outcome is unknown; anything else is a ledger failure.
func ledgerError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
}

// Outcome names the result of a redemption attempt for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "redeemed"
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	case errors.Is(err, session.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, session.ErrRedemptionInProgress):
		return "in_progress"
	case errors.Is(err, ErrInvalidAttestation):
		return "invalid_attestation"
	case errors.Is(err, ErrCodeAlreadyUsed):
		return "code_already_used"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrLedgerUnavailable):
		return "ledger_unavailable"
	default:
		return "error"
	}
}
