package ledger

import (
	"context"
	"errors"
)

// ErrRedemptionReverted means the redemption transaction was mined but failed.
var ErrRedemptionReverted = errors.New("ledger: redemption transaction reverted")

var ErrInvalidAddress = errors.New("ledger: invalid account address")

// Receipt identifies a confirmed redemption transaction.
type Receipt struct {
	TxReference string `json:"txHash"`
	BlockHeight uint64 `json:"blockNumber"`
	FeeUsed     string `json:"gasUsed"`
}

// Balances are the contract's view of one account, as base-10 integers in
// the contract's units.
type Balances struct {
	OffchainAccrued     string `json:"zappBalance"`
	TotalRedeemed       string `json:"totalRedeemed"`
	OnchainTokenBalance string `json:"tokenBalance"`
}

type NetworkInfo struct {
	Name        string `json:"name"`
	ChainID     string `json:"chainId"`
	BlockHeight uint64 `json:"blockNumber"`
	FeeRate     string `json:"gasPrice"`
}

type ContractInfo struct {
	ExchangeRate string `json:"exchangeRate"`
	Address      string `json:"contractAddress"`
}

// Ledger is the chain the redemption contract lives on. Every call may block
// on the network and must honour ctx.
type Ledger interface {
	IsCodeUsed(ctx context.Context, code string) (bool, error)

	// SubmitRedemption sends the redemption and waits for it to be mined.
	SubmitRedemption(ctx context.Context, code string, amount int64, attestation []byte) (Receipt, error)

	Balances(ctx context.Context, userAddress string) (Balances, error)
	NetworkInfo(ctx context.Context) (NetworkInfo, error)
	ContractInfo(ctx context.Context) (ContractInfo, error)
}
