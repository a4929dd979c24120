package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/b1ank002/ZappkaApp/internal/ledger"
	"github.com/b1ank002/ZappkaApp/internal/logger"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// contractABI covers the calls the bridge makes on the redemption contract.
const contractABI = `[
  {"type":"function","name":"redeemZapps","stateMutability":"nonpayable","inputs":[{"name":"zappCode","type":"string"},{"name":"zappAmount","type":"uint256"},{"name":"signature","type":"bytes"}],"outputs":[]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUserZappBalance","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUserTotalRedeemed","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getExchangeRate","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isZappCodeUsed","stateMutability":"view","inputs":[{"name":"zappCode","type":"string"}],"outputs":[{"name":"","type":"bool"}]}
]`

var chainNames = map[uint64]string{
	1:        "mainnet",
	10:       "optimism",
	137:      "polygon",
	8453:     "base",
	31337:    "hardhat",
	11155111: "sepolia",
	80002:    "amoy",
}

// Ledger talks to the redemption contract over JSON-RPC. Redemptions are
// signed with the backend wallet key.
type Ledger struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
}

var _ ledger.Ledger = (*Ledger)(nil)

// New dials rpcURL and binds the contract at contractAddress.
func New(ctx context.Context, rpcURL, privateKey, contractAddress string) (*Ledger, error) {
	if rpcURL == "" || privateKey == "" || contractAddress == "" {
		return nil, errors.New("ethereum ledger config missing required fields")
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet key: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract abi: %w", err)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	address := common.HexToAddress(contractAddress)

	logger.Info("ethereum ledger ready", map[string]any{
		"chain_id": chainID.String(),
		"contract": address.Hex(),
		"wallet":   crypto.PubkeyToAddress(key.PublicKey).Hex(),
	})

	return &Ledger{
		client:   client,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		address:  address,
		key:      key,
		chainID:  chainID,
	}, nil
}

func (l *Ledger) Close() {
	l.client.Close()
}

func (l *Ledger) IsCodeUsed(ctx context.Context, code string) (bool, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isZappCodeUsed", code); err != nil {
		return false, fmt.Errorf("failed to check zapp code: %w", err)
	}
	used, ok := out[0].(bool)
	if !ok {
		return false, errors.New("isZappCodeUsed returned a non-bool")
	}
	return used, nil
}

func (l *Ledger) SubmitRedemption(
	ctx context.Context,
	code string,
	amount int64,
	attestation []byte,
) (ledger.Receipt, error) {

	opts, err := bind.NewKeyedTransactorWithChainID(l.key, l.chainID)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := l.contract.Transact(opts, "redeemZapps", code, big.NewInt(amount), attestation)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("failed to send redemption: %w", err)
	}

	logger.Info("redemption submitted", map[string]any{
		"tx_hash": tx.Hash().Hex(),
		"code":    code,
	})

	receipt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ledger.Receipt{}, fmt.Errorf("%w: %s", ledger.ErrRedemptionReverted, tx.Hash().Hex())
	}

	var blockHeight uint64
	if receipt.BlockNumber != nil {
		blockHeight = receipt.BlockNumber.Uint64()
	}

	return ledger.Receipt{
		TxReference: receipt.TxHash.Hex(),
		BlockHeight: blockHeight,
		FeeUsed:     new(big.Int).SetUint64(receipt.GasUsed).String(),
	}, nil
}

func (l *Ledger) Balances(ctx context.Context, userAddress string) (ledger.Balances, error) {
	if !common.IsHexAddress(userAddress) {
		return ledger.Balances{}, fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, userAddress)
	}
	user := common.HexToAddress(userAddress)

	tokens, err := l.callUint(ctx, "balanceOf", user)
	if err != nil {
		return ledger.Balances{}, err
	}
	accrued, err := l.callUint(ctx, "getUserZappBalance", user)
	if err != nil {
		return ledger.Balances{}, err
	}
	redeemed, err := l.callUint(ctx, "getUserTotalRedeemed", user)
	if err != nil {
		return ledger.Balances{}, err
	}

	return ledger.Balances{
		OffchainAccrued:     accrued.String(),
		TotalRedeemed:       redeemed.String(),
		OnchainTokenBalance: tokens.String(),
	}, nil
}

func (l *Ledger) NetworkInfo(ctx context.Context) (ledger.NetworkInfo, error) {
	height, err := l.client.BlockNumber(ctx)
	if err != nil {
		return ledger.NetworkInfo{}, fmt.Errorf("failed to read block number: %w", err)
	}
	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return ledger.NetworkInfo{}, fmt.Errorf("failed to read gas price: %w", err)
	}

	name, ok := chainNames[l.chainID.Uint64()]
	if !ok {
		name = "unknown"
	}

	return ledger.NetworkInfo{
		Name:        name,
		ChainID:     l.chainID.String(),
		BlockHeight: height,
		FeeRate:     gasPrice.String(),
	}, nil
}

func (l *Ledger) ContractInfo(ctx context.Context) (ledger.ContractInfo, error) {
	rate, err := l.callUint(ctx, "getExchangeRate")
	if err != nil {
		return ledger.ContractInfo{}, err
	}
	return ledger.ContractInfo{
		ExchangeRate: rate.String(),
		Address:      l.address.Hex(),
	}, nil
}

func (l *Ledger) callUint(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned a non-integer", method)
	}
	return v, nil
}
