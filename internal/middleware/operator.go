package middleware

import (
	"context"
	"net/http"

	"github.com/b1ank002/ZappkaApp/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// OperatorKeyHeader carries the operator key on privileged requests.
const OperatorKeyHeader = "X-Operator-Key"

type operatorContextKeyType struct{}

var operatorKey = operatorContextKeyType{}

// IsOperator reports whether the request passed OperatorAuth.
func IsOperator(ctx context.Context) bool {
	ok, _ := ctx.Value(operatorKey).(bool)
	return ok
}

// OperatorAuth guards operator-only routes with a shared key whose bcrypt
// hash is configured. With no hash configured every request is refused.
type OperatorAuth struct {
	hash []byte
}

func NewOperatorAuth(keyHash string) *OperatorAuth {
	return &OperatorAuth{hash: []byte(keyHash)}
}

// HashKey returns the bcrypt hash to configure for key.
func HashKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (o *OperatorAuth) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(o.hash) == 0 {
			writeError(w, http.StatusForbidden, "operator access is disabled", "forbidden")
			return
		}

		key := r.Header.Get(OperatorKeyHeader)
		if key == "" || bcrypt.CompareHashAndPassword(o.hash, []byte(key)) != nil {
			logger.Warn("operator key rejected", map[string]any{
				"path":      r.URL.Path,
				"client_ip": RemoteIP(r),
			})
			writeError(w, http.StatusUnauthorized, "invalid operator key", "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
