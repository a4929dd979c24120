package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func TestSessionChangedPublishesByStatus(t *testing.T) {
	fake := &fakePublisher{}
	p := &Publisher{pub: fake}

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	verified := created.Add(time.Minute)
	amount := int64(500)

	p.SessionChanged(context.Background(), session.Session{
		ID: "S1", UserAddress: "U1", Code: "ZAPP-AB", Status: session.StatusPending, CreatedAt: created,
	})
	p.SessionChanged(context.Background(), session.Session{
		ID: "S1", UserAddress: "U1", Code: "ZAPP-AB", Status: session.StatusVerified,
		Amount: &amount, CreatedAt: created, VerifiedAt: &verified,
	})

	require.Len(t, fake.msgs, 2)
	assert.Equal(t, "zapp.session.pending", fake.msgs[0].subject)
	assert.Equal(t, "zapp.session.verified", fake.msgs[1].subject)

	var ev Event
	require.NoError(t, json.Unmarshal(fake.msgs[1].data, &ev))
	assert.Equal(t, "S1", ev.SessionID)
	assert.Equal(t, session.StatusVerified, ev.Status)
	require.NotNil(t, ev.Amount)
	assert.Equal(t, int64(500), *ev.Amount)
	assert.True(t, verified.Equal(ev.OccurredAt))
}

func TestSessionChangedSwallowsPublishErrors(t *testing.T) {
	p := &Publisher{pub: &fakePublisher{err: errors.New("nats: connection closed")}}

	assert.NotPanics(t, func() {
		p.SessionChanged(context.Background(), session.Session{ID: "S1", Status: session.StatusPending})
	})
}

func TestConnectFailsWithoutServer(t *testing.T) {
	cfg := DefaultConfig("nats://127.0.0.1:1")
	cfg.MaxReconnects = 0

	_, err := Connect(cfg)
	assert.Error(t, err)
}
