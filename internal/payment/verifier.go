package payment

import "context"

// Decision is the verifier's answer for one (user, code, amount) claim.
// A transfer that has not arrived yet is a negative Decision, not an error.
type Decision struct {
	Approved bool
	Reason   string
}

// Verifier checks that the user sent the claimed amount with the code in the
// transfer description. Errors are reserved for the verifier itself being
// unreachable or misbehaving.
type Verifier interface {
	Verify(ctx context.Context, userAddress, code string, amount int64) (Decision, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, userAddress, code string, amount int64) (Decision, error)

func (f VerifierFunc) Verify(ctx context.Context, userAddress, code string, amount int64) (Decision, error) {
	return f(ctx, userAddress, code, amount)
}

// Approve accepts every claim. It backs operator manual verification only.
var Approve Verifier = VerifierFunc(func(context.Context, string, string, int64) (Decision, error) {
	return Decision{Approved: true, Reason: "approved by operator"}, nil
})

// Reject declines every claim. It is the verifier when no bank is configured.
var Reject Verifier = VerifierFunc(func(context.Context, string, string, int64) (Decision, error) {
	return Decision{Reason: "no payment verifier configured"}, nil
})
