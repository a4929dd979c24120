package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/db"
	"github.com/b1ank002/ZappkaApp/internal/ledger"
	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/redemption"
	"github.com/b1ank002/ZappkaApp/internal/session"
	"github.com/b1ank002/ZappkaApp/internal/token"

	"github.com/gin-gonic/gin"
)

// AuditLog summarizes past redemptions for the history endpoint.
type AuditLog interface {
	SummaryForUser(ctx context.Context, userAddress string) (db.Summary, error)
}

type Options struct {
	ZappkaAccount string
	Environment   string
	Version       string

	// OperatorGuard protects operator routes. Without one they are refused.
	OperatorGuard gin.HandlerFunc

	Audit AuditLog
}

type Handler struct {
	sessions *session.Store
	redeemer *redemption.Coordinator
	ledger   ledger.Ledger
	rate     token.Rate
	opts     Options
	now      func() time.Time
}

func NewHandler(
	sessions *session.Store,
	redeemer *redemption.Coordinator,
	l ledger.Ledger,
	opts Options,
) *Handler {
	if opts.OperatorGuard == nil {
		opts.OperatorGuard = func(c *gin.Context) {
			abortWithError(c, http.StatusForbidden, "operator access is disabled", "forbidden")
		}
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Handler{
		sessions: sessions,
		redeemer: redeemer,
		ledger:   l,
		rate:     redeemer.Rate(),
		opts:     opts,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the API. api middleware runs on /api routes only.
func (h *Handler) RegisterRoutes(r *gin.Engine, api ...gin.HandlerFunc) {
	r.GET("/health", h.health)

	g := r.Group("/api", api...)
	g.POST("/generate-zapp-code", h.generateCode)
	g.POST("/verify-zapp", h.verify)
	g.POST("/redeem-tokens", h.redeem)
	g.POST("/manual-verify", h.opts.OperatorGuard, h.manualVerify)
	g.GET("/sessions/:id", h.getSession)
	g.GET("/user-history/:address", h.userHistory)
	g.GET("/contract-info", h.contractInfo)
	g.GET("/stats", h.stats)

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Route not found", "not_found")
	})

	for _, route := range r.Routes() {
		logger.Info("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Zappka bridge API is running",
		"timestamp":   h.now().UTC(),
		"version":     h.opts.Version,
		"environment": h.opts.Environment,
	})
}
