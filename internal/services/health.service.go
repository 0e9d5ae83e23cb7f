package services

import (
	"context"
	"time"

	"github.com/nimasrn/lending-admin/pkg/redis"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Uptime string            `json:"uptime"`
}

type HealthService struct {
	db      Pinger
	cache   redis.RedisAdapter
	started time.Time
}

func NewHealthService(db Pinger, cache redis.RedisAdapter) *HealthService {
	return &HealthService{db: db, cache: cache, started: time.Now()}
}

// Check pings postgres and redis. The service is "ok" only when both answer.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out := &HealthStatus{Status: "ok", Checks: map[string]string{}}
	out.Uptime = time.Since(s.started).Truncate(time.Second).String()
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			out.Checks["database"] = err.Error()
			out.Status = "degraded"
		} else {
			out.Checks["database"] = "ok"
		}
	}
	if s.cache != nil {
		if err := s.cache.Client().Ping(ctx).Err(); err != nil {
			out.Checks["redis"] = err.Error()
			out.Status = "degraded"
		} else {
			out.Checks["redis"] = "ok"
		}
	}
	return out
}
