// Package attest binds a verified (user, code, amount) claim to a signature
// the redemption step can check. The primitive is pluggable: HMAC for a
// backend-only check, EIP-191 when the contract recovers the signer on chain.
package attest

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrInvalidAttestation = errors.New("attest: attestation does not match claim")

// Attestation is the signature bytes, hex encoded with a 0x prefix in JSON.
type Attestation = hexutil.Bytes

// Claim is what a verified session asserts about an off-chain payment.
type Claim struct {
	UserAddress string
	Code        string
	Amount      int64
}

// digestInput is the length-prefixed encoding that gets signed, so no two
// distinct claims share an encoding.
func (c Claim) digestInput() []byte {
	var buf []byte
	buf = appendField(buf, []byte(c.UserAddress))
	buf = appendField(buf, []byte(c.Code))
	buf = binary.BigEndian.AppendUint64(buf, uint64(c.Amount))
	return buf
}

func appendField(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	return append(buf, field...)
}

type Signer interface {
	// Scheme names the primitive, e.g. "hmac-sha256".
	Scheme() string
	Sign(c Claim) (Attestation, error)
	// Verify returns ErrInvalidAttestation when a does not attest c.
	Verify(c Claim, a Attestation) error
}
