// Package memory is an in-process Ledger for local development and tests.
// It enforces one redemption per code like the contract does, but keeps no
// per-account balances.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/b1ank002/ZappkaApp/internal/ledger"
	"github.com/b1ank002/ZappkaApp/internal/token"
	"github.com/b1ank002/ZappkaApp/internal/utils"
)

type Ledger struct {
	rate token.Rate

	mu     sync.Mutex
	used   map[string]int64
	height uint64
}

var _ ledger.Ledger = (*Ledger)(nil)

func New(rate token.Rate) *Ledger {
	return &Ledger{
		rate: rate,
		used: make(map[string]int64),
	}
}

func (l *Ledger) IsCodeUsed(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.used[code]
	return ok, nil
}

func (l *Ledger) SubmitRedemption(ctx context.Context, code string, amount int64, attestation []byte) (ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, err
	}
	if len(attestation) == 0 {
		return ledger.Receipt{}, fmt.Errorf("%w: missing attestation", ledger.ErrRedemptionReverted)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.used[code]; ok {
		return ledger.Receipt{}, fmt.Errorf("%w: code already used", ledger.ErrRedemptionReverted)
	}
	l.used[code] = amount
	l.height++

	hash, err := utils.RandomHex(32)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("memory ledger: tx hash: %w", err)
	}

	return ledger.Receipt{
		TxReference: "0x" + hash,
		BlockHeight: l.height,
		FeeUsed:     "0",
	}, nil
}

func (l *Ledger) Balances(ctx context.Context, userAddress string) (ledger.Balances, error) {
	return ledger.Balances{OffchainAccrued: "0", TotalRedeemed: "0", OnchainTokenBalance: "0"}, ctx.Err()
}

func (l *Ledger) NetworkInfo(ctx context.Context) (ledger.NetworkInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ledger.NetworkInfo{
		Name:        "memory",
		ChainID:     "0",
		BlockHeight: l.height,
		FeeRate:     "0",
	}, ctx.Err()
}

func (l *Ledger) ContractInfo(ctx context.Context) (ledger.ContractInfo, error) {
	return ledger.ContractInfo{
		ExchangeRate: strconv.FormatInt(l.rate.Numerator, 10) + "/" + strconv.FormatInt(l.rate.Denominator, 10),
		Address:      "memory",
	}, ctx.Err()
}
