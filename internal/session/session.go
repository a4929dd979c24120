package session

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusCompleted Status = "completed"
)

var (
	ErrNotFound             = errors.New("session not found")
	ErrInvalidState         = errors.New("session is not in the required state")
	ErrInvalidInput         = errors.New("invalid session input")
	ErrRedemptionInProgress = errors.New("redemption already in progress")
	ErrVerifierUnavailable  = errors.New("payment verifier unavailable")
)

// Session is a single attempt to turn one Zapp transfer into tokens.
// Values handed out by Store are copies; mutating them changes nothing.
type Session struct {
	ID          string     `json:"id"`
	UserAddress string     `json:"user_address"`
	Code        string     `json:"code"`
	Status      Status     `json:"status"`
	Amount      *int64     `json:"amount,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TxReference string     `json:"tx_reference,omitempty"`
}

// View is the client-facing projection of a Session.
type View struct {
	ID          string     `json:"id"`
	Code        string     `json:"zappCode"`
	Amount      *int64     `json:"zappAmount"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	VerifiedAt  *time.Time `json:"verifiedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	TxReference string     `json:"txHash,omitempty"`
}

func (s Session) View() View {
	return View{
		ID:          s.ID,
		Code:        s.Code,
		Amount:      s.Amount,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
		VerifiedAt:  s.VerifiedAt,
		CompletedAt: s.CompletedAt,
		TxReference: s.TxReference,
	}
}

// Stats is a point-in-time count of sessions per status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Verified  int `json:"verified"`
	Completed int `json:"completed"`
}

// clone deep-copies the pointer fields so callers never share them.
func (s Session) clone() Session {
	if s.Amount != nil {
		a := *s.Amount
		s.Amount = &a
	}
	if s.VerifiedAt != nil {
		t := *s.VerifiedAt
		s.VerifiedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	return s
}

// valid checks the field invariants a persisted snapshot must satisfy.
func (s Session) valid() bool {
	if s.ID == "" || s.UserAddress == "" || s.Code == "" || s.CreatedAt.IsZero() {
		return false
	}
	switch s.Status {
	case StatusPending:
		return s.Amount == nil && s.VerifiedAt == nil && s.CompletedAt == nil && s.TxReference == ""
	case StatusVerified:
		return s.Amount != nil && s.VerifiedAt != nil && s.CompletedAt == nil && s.TxReference == "" &&
			!s.VerifiedAt.Before(s.CreatedAt)
	case StatusCompleted:
		return s.Amount != nil && s.VerifiedAt != nil && s.CompletedAt != nil && s.TxReference != "" &&
			!s.VerifiedAt.Before(s.CreatedAt) && !s.CompletedAt.Before(*s.VerifiedAt)
	default:
		return false
	}
}
