package handler

import (
	"fmt"
	"net/http"

	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/redemption"

	"github.com/gin-gonic/gin"
)

func (h *Handler) userHistory(c *gin.Context) {
	address := c.Param("address")
	ctx := c.Request.Context()

	balances, err := h.ledger.Balances(ctx, address)
	if err != nil {
		logger.Error("failed to read balances", map[string]any{
			"user_address": address,
			"error":        err.Error(),
		})
		respondError(c, ledgerFailure(err))
		return
	}

	body := gin.H{
		"success":  true,
		"history":  h.sessions.SessionsForUser(address),
		"balances": balances,
	}

	if h.opts.Audit != nil {
		sum, err := h.opts.Audit.SummaryForUser(ctx, address)
		if err != nil {
			logger.Warn("failed to summarize redemptions", map[string]any{
				"user_address": address,
				"error":        err.Error(),
			})
		} else {
			body["redeemed"] = gin.H{
				"count":        sum.Redemptions,
				"zappAmount":   sum.ZappsRedeemed,
				"tokenAmount":  sum.TokensMinted,
				"lastRedeemed": sum.LastRedeemed,
			}
		}
	}

	c.JSON(http.StatusOK, body)
}

func (h *Handler) contractInfo(c *gin.Context) {
	ctx := c.Request.Context()

	info, err := h.ledger.ContractInfo(ctx)
	if err != nil {
		respondError(c, ledgerFailure(err))
		return
	}
	network, err := h.ledger.NetworkInfo(ctx)
	if err != nil {
		respondError(c, ledgerFailure(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"contractAddress": info.Address,
		"exchangeRate":    info.ExchangeRate,
		"tokensPerZapp":   h.rate.TokensPerZapp(),
		"rate":            h.rate.String(),
		"zappkaAccount":   h.opts.ZappkaAccount,
		"network":         network,
	})
}

// stats reports session counts even when the chain is unreachable.
func (h *Handler) stats(c *gin.Context) {
	body := gin.H{
		"success":   true,
		"sessions":  h.sessions.Stats(),
		"network":   nil,
		"timestamp": h.now().UTC(),
	}

	network, err := h.ledger.NetworkInfo(c.Request.Context())
	if err != nil {
		logger.Warn("network info unavailable", map[string]any{"error": err.Error()})
	} else {
		body["network"] = network
	}

	c.JSON(http.StatusOK, body)
}

func ledgerFailure(err error) error {
	return fmt.Errorf("%w: %w", redemption.ErrLedgerUnavailable, err)
}
