package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPersister writes a JSON snapshot of every session transition to
// Redis so the in-memory store can be rebuilt after a restart. The in-memory
// Store stays the authority while the process runs.
type RedisPersister struct {
	client *redis.Client
	prefix string
}

var _ Persister = (*RedisPersister)(nil)

// NewRedisPersister creates a Redis-backed session persister.
func NewRedisPersister(client *redis.Client) *RedisPersister {
	return &RedisPersister{
		client: client,
		prefix: "zapp:session:",
	}
}

func (r *RedisPersister) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisPersister) indexKey() string {
	return r.prefix + "ids"
}

func (r *RedisPersister) Save(ctx context.Context, s Session) error {
	if s.ID == "" || s.UserAddress == "" {
		return fmt.Errorf("session: missing id or user_address")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(s.ID), data, 0)
		pipe.SAdd(ctx, r.indexKey(), s.ID)
		return nil
	})
	return err
}

// LoadAll returns every persisted session, in no particular order.
func (r *RedisPersister) LoadAll(ctx context.Context) ([]Session, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("session: list ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("session: load snapshots: %w", err)
	}

	sessions := make([]Session, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// indexed but missing; nothing to restore
			continue
		}
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("session: failed to unmarshal %s: %w", ids[i], err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
