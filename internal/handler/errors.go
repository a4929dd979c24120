package handler

import (
	"errors"
	"net/http"

	"github.com/b1ank002/ZappkaApp/internal/ledger"
	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/redemption"
	"github.com/b1ank002/ZappkaApp/internal/session"

	"github.com/gin-gonic/gin"
)

// classify maps a domain error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, ledger.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, redemption.ErrInvalidAttestation):
		return http.StatusBadRequest, "invalid_attestation"
	case errors.Is(err, session.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, session.ErrRedemptionInProgress):
		return http.StatusConflict, "redemption_in_progress"
	case errors.Is(err, redemption.ErrCodeAlreadyUsed):
		return http.StatusConflict, "code_already_used"
	case errors.Is(err, redemption.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, session.ErrVerifierUnavailable):
		return http.StatusBadGateway, "verifier_unavailable"
	case errors.Is(err, redemption.ErrLedgerUnavailable):
		return http.StatusBadGateway, "ledger_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondError(c *gin.Context, err error) {
	status, code := classify(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", map[string]any{
			"path":  c.FullPath(),
			"error": msg,
		})
		msg = "internal server error"
	}

	_ = c.Error(err)
	abortWithError(c, status, msg, code)
}

func abortWithError(c *gin.Context, status int, msg, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
