// Package events publishes session lifecycle changes to NATS so other
// services (notifications, accounting) can follow redemptions without
// polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/logger"
	"github.com/b1ank002/ZappkaApp/internal/session"

	"github.com/nats-io/nats.go"
)

// SubjectSession is the subject prefix for lifecycle events; the status is
// appended, e.g. zapp.session.verified.
const SubjectSession = "zapp.session"

// Event is the payload published for every committed transition.
type Event struct {
	SessionID   string         `json:"sessionId"`
	UserAddress string         `json:"userAddress"`
	Code        string         `json:"zappCode"`
	Status      session.Status `json:"status"`
	Amount      *int64         `json:"zappAmount,omitempty"`
	TxReference string         `json:"txHash,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

func DefaultConfig(url string) Config {
	return Config{
		URL:           url,
		Name:          "zappka-bridge",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Publisher implements session.Observer on top of a NATS connection.
// Publishing is fire and forget: a lost event never blocks a transition.
type Publisher struct {
	conn *nats.Conn
	pub  publisher
}

var _ session.Observer = (*Publisher)(nil)

// Connect dials NATS and returns a ready publisher.
func Connect(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			fields := map[string]any{}
			if err != nil {
				fields["error"] = err.Error()
			}
			logger.Warn("nats disconnected", fields)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", map[string]any{"url": nc.ConnectedUrl()})
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info("nats connected", map[string]any{"url": nc.ConnectedUrl()})

	return &Publisher{conn: nc, pub: nc}, nil
}

func Subject(status session.Status) string {
	return SubjectSession + "." + string(status)
}

func (p *Publisher) SessionChanged(ctx context.Context, s session.Session) {
	ev := Event{
		SessionID:   s.ID,
		UserAddress: s.UserAddress,
		Code:        s.Code,
		Status:      s.Status,
		Amount:      s.Amount,
		TxReference: s.TxReference,
		OccurredAt:  occurredAt(s),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to encode session event", map[string]any{
			"session_id": s.ID,
			"error":      err.Error(),
		})
		return
	}

	if err := p.pub.Publish(Subject(s.Status), data); err != nil {
		logger.Warn("failed to publish session event", map[string]any{
			"session_id": s.ID,
			"status":     string(s.Status),
			"error":      err.Error(),
		})
	}
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		logger.Warn("nats drain failed", map[string]any{"error": err.Error()})
	}
}

func occurredAt(s session.Session) time.Time {
	switch {
	case s.CompletedAt != nil:
		return *s.CompletedAt
	case s.VerifiedAt != nil:
		return *s.VerifiedAt
	default:
		return s.CreatedAt
	}
}
