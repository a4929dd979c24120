package attest

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP191 produces personal-sign signatures over
// keccak256(user || code || uint256(amount)), which a contract can check with
// ecrecover against the backend signer address.
type EIP191 struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewEIP191 parses a hex secp256k1 private key, with or without 0x.
func NewEIP191(hexKey string) (*EIP191, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("attest: parse signing key: %w", err)
	}
	return &EIP191{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (e *EIP191) Scheme() string { return "eip191-secp256k1" }

// Address is the signer the contract should trust.
func (e *EIP191) Address() common.Address { return e.address }

func (e *EIP191) Sign(c Claim) (Attestation, error) {
	sig, err := crypto.Sign(digest(c), e.key)
	if err != nil {
		return nil, fmt.Errorf("attest: sign claim: %w", err)
	}
	// Solidity's ecrecover expects v in {27, 28}.
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (e *EIP191) Verify(c Claim, a Attestation) error {
	if len(a) != crypto.SignatureLength {
		return ErrInvalidAttestation
	}
	sig := make([]byte, len(a))
	copy(sig, a)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(digest(c), sig)
	if err != nil {
		return ErrInvalidAttestation
	}
	if crypto.PubkeyToAddress(*pub) != e.address {
		return ErrInvalidAttestation
	}
	return nil
}

func digest(c Claim) []byte {
	amount := math.U256Bytes(big.NewInt(c.Amount))
	inner := crypto.Keccak256([]byte(c.UserAddress), []byte(c.Code), amount)
	return accounts.TextHash(inner)
}
