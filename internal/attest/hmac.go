package attest

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

// HMAC signs claims with a shared secret. Only holders of the secret can
// produce or check an attestation.
type HMAC struct {
	secret []byte
}

func NewHMAC(secret []byte) (*HMAC, error) {
	if len(secret) < 32 {
		return nil, errors.New("attest: hmac secret must be at least 32 bytes")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &HMAC{secret: s}, nil
}

func (h *HMAC) Scheme() string { return "hmac-sha256" }

func (h *HMAC) Sign(c Claim) (Attestation, error) {
	return h.mac(c), nil
}

func (h *HMAC) Verify(c Claim, a Attestation) error {
	if !hmac.Equal(h.mac(c), a) {
		return ErrInvalidAttestation
	}
	return nil
}

func (h *HMAC) mac(c Claim) []byte {
	m := hmac.New(sha256.New, h.secret)
	m.Write(c.digestInput())
	return m.Sum(nil)
}
