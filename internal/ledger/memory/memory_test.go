package memory

import (
	"context"
	"testing"

	"github.com/b1ank002/ZappkaApp/internal/ledger"
	"github.com/b1ank002/ZappkaApp/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerSpendsCodeOnce(t *testing.T) {
	ctx := context.Background()
	l := New(token.DefaultRate)

	used, err := l.IsCodeUsed(ctx, "ZAPP-1")
	require.NoError(t, err)
	assert.False(t, used)

	r, err := l.SubmitRedemption(ctx, "ZAPP-1", 500, []byte{1})
	require.NoError(t, err)
	assert.Len(t, r.TxReference, 66)
	assert.Equal(t, uint64(1), r.BlockHeight)

	used, err = l.IsCodeUsed(ctx, "ZAPP-1")
	require.NoError(t, err)
	assert.True(t, used)

	_, err = l.SubmitRedemption(ctx, "ZAPP-1", 500, []byte{1})
	assert.ErrorIs(t, err, ledger.ErrRedemptionReverted)
}

func TestLedgerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(token.DefaultRate).SubmitRedemption(ctx, "ZAPP-1", 500, []byte{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLedgerContractInfo(t *testing.T) {
	info, err := New(token.DefaultRate).ContractInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1/100", info.ExchangeRate)
}
