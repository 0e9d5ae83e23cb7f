package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/redis"
)

var (
	ErrAlreadyProcessed = errors.New("communication already dispatched")
	ErrBusy             = errors.New("communication is being dispatched by another worker")
)

type GuardConfig struct {
	// LockTTL bounds one delivery attempt. A crashed worker's lock expires
	// after it.
	LockTTL time.Duration
	// DoneTTL is how long the dispatched marker and failure notes are kept.
	DoneTTL time.Duration
	Prefix  string
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		LockTTL: 30 * time.Second,
		DoneTTL: 24 * time.Hour,
		Prefix:  "dispatch:",
	}
}

// DeliveryGuard makes delivery of a communication effectively once: a short
// lock keeps two workers off the same id and a done marker turns later
// redeliveries of the stream entry into no-ops.
type DeliveryGuard struct {
	redis  redis.RedisAdapter
	config GuardConfig
}

func NewDeliveryGuard(adapter redis.RedisAdapter, config GuardConfig) *DeliveryGuard {
	return &DeliveryGuard{redis: adapter, config: config}
}

func (g *DeliveryGuard) key(kind, id string) string {
	return g.config.Prefix + kind + ":" + id
}

// Claim is held by the worker dispatching one communication.
type Claim struct {
	ID       string
	Attempts int
	held     bool
	guard    *DeliveryGuard
}

// Acquire claims id. ErrAlreadyProcessed means it was dispatched before,
// ErrBusy that another worker holds it right now.
func (g *DeliveryGuard) Acquire(ctx context.Context, id string) (*Claim, error) {
	done, err := g.redis.Exist(g.key("done", id))
	if err != nil {
		// a lost marker check only risks a duplicate send, the status
		// update in Postgres is conditional on PENDING anyway
		logger.Warn("[dispatch] done marker check failed", "id", id, "error", err)
	} else if done > 0 {
		return nil, ErrAlreadyProcessed
	}

	ok, err := g.redis.SetNX(g.key("lock", id), []byte(strconv.FormatInt(time.Now().UnixNano(), 10)), g.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", id, err)
	}
	if !ok {
		return nil, ErrBusy
	}

	attempts := 0
	if raw, err := g.redis.Get(g.key("attempts", id)); err == nil {
		attempts, _ = strconv.Atoi(string(raw))
	}
	return &Claim{ID: id, Attempts: attempts, held: true, guard: g}, nil
}

// Done records the dispatch and drops the lock and failure notes.
func (c *Claim) Done(ctx context.Context) error {
	g := c.guard
	if err := g.redis.Set(g.key("done", c.ID), []byte("1"), g.config.DoneTTL); err != nil {
		return fmt.Errorf("mark %s dispatched: %w", c.ID, err)
	}
	for _, kind := range []string{"attempts", "error"} {
		if err := g.redis.Del(g.key(kind, c.ID)); err != nil {
			logger.Warn("[dispatch] cleanup failed", "id", c.ID, "key", kind, "error", err)
		}
	}
	return c.Release(ctx)
}

// Fail counts the attempt, keeps reason for when retries run out and lets
// the next delivery of the entry try again.
func (c *Claim) Fail(ctx context.Context, reason error) error {
	g := c.guard
	c.Attempts++
	if err := g.redis.Set(g.key("attempts", c.ID), []byte(strconv.Itoa(c.Attempts)), g.config.DoneTTL); err != nil {
		logger.Warn("[dispatch] attempt counter write failed", "id", c.ID, "error", err)
	}
	if reason != nil {
		if err := g.redis.Set(g.key("error", c.ID), []byte(reason.Error()), g.config.DoneTTL); err != nil {
			logger.Warn("[dispatch] failure note write failed", "id", c.ID, "error", err)
		}
	}
	return c.Release(ctx)
}

func (c *Claim) Release(ctx context.Context) error {
	if c == nil || !c.held {
		return nil
	}
	c.held = false
	return c.guard.redis.Del(c.guard.key("lock", c.ID))
}

// LastError is the reason of the most recent failed attempt, empty if none.
func (g *DeliveryGuard) LastError(ctx context.Context, id string) string {
	raw, err := g.redis.Get(g.key("error", id))
	if err != nil {
		if err != redis.NilError {
			logger.Warn("[dispatch] failure note read failed", "id", id, "error", err)
		}
		return ""
	}
	return string(raw)
}

// Forget drops everything kept for id once it reached a final status.
func (g *DeliveryGuard) Forget(ctx context.Context, id string) {
	for _, kind := range []string{"attempts", "error", "lock"} {
		_ = g.redis.Del(g.key(kind, id))
	}
}
