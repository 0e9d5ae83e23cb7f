package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/lending-admin/pkg/redis"
)

const failKeyPrefix = "auth:fail:"

// Throttle counts failed logins per email in a fixed redis window.
type Throttle struct {
	store  redis.RedisAdapter
	max    int
	window time.Duration
}

func NewThrottle(store redis.RedisAdapter, max int, window time.Duration) *Throttle {
	return &Throttle{store: store, max: max, window: window}
}

func failKey(email string) string {
	return failKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Locked reports whether email reached the failure limit in the current window.
func (t *Throttle) Locked(email string) (bool, error) {
	if t.max <= 0 {
		return false, nil
	}
	raw, err := t.store.Get(failKey(email))
	if errors.Is(err, redis.NilError) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n, _ := strconv.Atoi(string(raw))
	return n >= t.max, nil
}

func (t *Throttle) Fail(email string) error {
	_, err := t.store.Incr(failKey(email), t.window)
	return err
}

func (t *Throttle) Reset(email string) error {
	return t.store.Del(failKey(email))
}
