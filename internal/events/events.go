// internal/events/events.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list session audit records are pushed to.
const DefaultQueueName = "motdgate_sessions"

// Record types.
const (
	TypeSessionCreated  = "session_created"
	TypeChannelAttached = "channel_attached"
	TypeIdentityDropped = "identity_dropped"
)

// Record is one session lifecycle event, consumed out of process (audit,
// metrics, moderation tooling). Tokens and secrets are never part of it.
type Record struct {
	Type       string `json:"type"`
	IdentityID string `json:"identity_id"`
	SessionID  int    `json:"session_id,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
	PageID     string `json:"page_id,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Publisher pushes records to a Redis list, fire and forget. A nil
// Publisher is valid and drops everything, so callers never need to branch
// on whether Redis is configured.
type Publisher struct {
	rdb   *redis.Client
	queue string
	log   logrus.FieldLogger
}

// Connect dials Redis and returns a publisher bound to queue (or
// DefaultQueueName when empty).
func Connect(ctx context.Context, addr string, db int, queue string, log logrus.FieldLogger) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue, log: log}, nil
}

// Publish RPushes the record. Failures are logged, never propagated: audit
// delivery must not interfere with the session protocol.
func (p *Publisher) Publish(ctx context.Context, rec Record) {
	if p == nil {
		return
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		p.log.WithError(err).Error("failed to marshal session event")
		return
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		p.log.WithError(err).WithField("queue", p.queue).Warn("failed to push session event")
	}
}

// Close releases the Redis client.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
