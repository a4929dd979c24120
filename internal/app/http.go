package app

import (
	"context"
	"fmt"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/config"
	"github.com/b1ank002/ZappkaApp/internal/db"
	"github.com/b1ank002/ZappkaApp/internal/handler"
	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/metrics"
	"github.com/b1ank002/ZappkaApp/internal/middleware"
	"github.com/b1ank002/ZappkaApp/internal/redemption"
	"github.com/b1ank002/ZappkaApp/internal/session"

	"github.com/gin-gonic/gin"
)

// Version is stamped at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

func setupHTTP(ctx context.Context, cfg config.Config, infra *Infra, stop <-chan struct{}) (*gin.Engine, error) {
	// ----------------------------
	// Sessions
	// ----------------------------

	var storeOpts []session.Option
	var persister *session.RedisPersister
	if infra.Redis != nil {
		persister = session.NewRedisPersister(infra.Redis.Client)
		storeOpts = append(storeOpts, session.WithPersister(persister))
	}
	if infra.Events != nil {
		storeOpts = append(storeOpts, session.WithObserver(infra.Events))
	}

	sessions := session.NewStore(infra.Verifier, infra.Signer, storeOpts...)

	if persister != nil {
		if err := restoreSessions(ctx, sessions, persister); err != nil {
			return nil, err
		}
	}

	// ----------------------------
	// Redemption
	// ----------------------------

	redeemOpts := []redemption.Option{redemption.WithTimeout(cfg.RedeemTimeout)}
	var audit handler.AuditLog
	if infra.DB != nil {
		log := db.NewRedemptionLog(infra.DB)
		redeemOpts = append(redeemOpts, redemption.WithRecorder(log))
		audit = log
	}
	coordinator := redemption.New(sessions, infra.Ledger, infra.Rate, redeemOpts...)

	// ----------------------------
	// Router
	// ----------------------------

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.L()))

	limiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	go limiter.RunCleanup(stop)

	operator := middleware.NewOperatorAuth(cfg.OperatorKeyHash)

	h := handler.NewHandler(sessions, coordinator, infra.Ledger, handler.Options{
		ZappkaAccount: cfg.ZappkaAccount,
		Environment:   cfg.AppEnv,
		Version:       Version,
		OperatorGuard: middleware.Gin(operator.RequireOperator),
		Audit:         audit,
	})
	h.RegisterRoutes(router, middleware.RateLimit(limiter))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router, nil
}

func restoreSessions(ctx context.Context, sessions *session.Store, persister *session.RedisPersister) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	saved, err := persister.LoadAll(ctx)
	if err != nil {
		return err
	}
	n, err := sessions.Restore(saved)
	if err != nil {
		return err
	}

	logger.Info("sessions restored", map[string]any{"count": n})
	return nil
}
