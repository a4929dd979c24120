package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/b1ank002/ZappkaApp/internal/attest"
	"github.com/b1ank002/ZappkaApp/internal/config"
	"github.com/b1ank002/ZappkaApp/internal/db"
	"github.com/b1ank002/ZappkaApp/internal/events"
	"github.com/b1ank002/ZappkaApp/internal/ledger"
	"github.com/b1ank002/ZappkaApp/internal/ledger/ethereum"
	"github.com/b1ank002/ZappkaApp/internal/ledger/memory"
	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/payment"
	"github.com/b1ank002/ZappkaApp/internal/payment/bank"
	"github.com/b1ank002/ZappkaApp/internal/redis"
	"github.com/b1ank002/ZappkaApp/internal/token"
)

// Infra holds the external dependencies. Redis, Postgres and NATS are
// optional and nil when not configured.
type Infra struct {
	DB     *db.DB
	Redis  *redis.Client
	Events *events.Publisher

	Ledger   ledger.Ledger
	Verifier payment.Verifier
	Signer   attest.Signer
	Rate     token.Rate

	closers []func() error
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	rate, err := token.NewRate(cfg.RateNumerator, cfg.RateDenominator)
	if err != nil {
		return nil, err
	}
	infra.Rate = rate

	if infra.Signer, err = newSigner(cfg); err != nil {
		return nil, err
	}

	if err := infra.connect(ctx, cfg); err != nil {
		_ = infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infra) connect(ctx context.Context, cfg config.Config) error {
	if cfg.DatabaseDSN != "" {
		d, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		i.DB = d
		i.closers = append(i.closers, d.Close)
		logger.Info("database ready", nil)
	}

	if cfg.RedisAddr != "" {
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		i.Redis = client
		i.closers = append(i.closers, client.Close)
		logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})
	}

	if cfg.NATSURL != "" {
		pub, err := events.Connect(events.DefaultConfig(cfg.NATSURL))
		if err != nil {
			return err
		}
		i.Events = pub
		i.closers = append(i.closers, func() error { pub.Close(); return nil })
	}

	if cfg.ChainConfigured() {
		l, err := ethereum.New(ctx, cfg.RPCURL, cfg.PrivateKey, cfg.ContractAddress)
		if err != nil {
			return err
		}
		i.Ledger = l
		i.closers = append(i.closers, func() error { l.Close(); return nil })
	} else {
		logger.Warn("no chain configured, using in-memory ledger", nil)
		i.Ledger = memory.New(i.Rate)
	}

	if cfg.BankAPIURL != "" {
		v, err := bank.New(ctx, bank.Config{
			APIURL:       cfg.BankAPIURL,
			IssuerURL:    cfg.BankIssuerURL,
			TokenURL:     cfg.BankTokenURL,
			ClientID:     cfg.BankClientID,
			ClientSecret: cfg.BankClientSecret,
		})
		if err != nil {
			return err
		}
		i.Verifier = v
	} else {
		logger.Warn("no bank configured, payments can only be verified manually", nil)
		i.Verifier = payment.Reject
	}

	return nil
}

// Close releases connections in reverse order of opening.
func (i *Infra) Close() error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}

func newSigner(cfg config.Config) (attest.Signer, error) {
	switch strings.ToLower(cfg.AttestationScheme) {
	case "hmac":
		return attest.NewHMAC([]byte(cfg.AttestationSecret))
	case "eip191":
		s, err := attest.NewEIP191(cfg.AttestationKey)
		if err != nil {
			return nil, err
		}
		logger.Info("attestations signed for on-chain recovery", map[string]any{
			"signer": s.Address().Hex(),
		})
		return s, nil
	default:
		return nil, fmt.Errorf("unknown attestation scheme %q", cfg.AttestationScheme)
	}
}
