package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/config"
)

type App struct {
	httpServer *http.Server
	infra      *Infra
	stop       chan struct{}
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	router, err := setupHTTP(ctx, cfg, infra, stop)
	if err != nil {
		close(stop)
		return nil, errors.Join(err, infra.Close())
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		httpServer: server,
		infra:      infra,
		stop:       stop,
	}, nil
}

// Run serves until Shutdown. It returns nil after a graceful shutdown.
func (a *App) Run() error {
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the infrastructure.
// Redemptions still waiting on the chain finish within ctx.
func (a *App) Shutdown(ctx context.Context) error {
	close(a.stop)
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return errors.Join(err, a.infra.Close())
	}
	return a.infra.Close()
}
