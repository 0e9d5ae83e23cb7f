package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
)

var ErrInvalidTenant = errors.New("Invalid tenant")

type TenantLookup interface {
	GetByUUID(ctx context.Context, uuid string) (*model.Tenant, error)
}

// TenantResolver maps X-Tenant-Id uuids to tenant ids through an expiring LRU.
type TenantResolver struct {
	repo  TenantLookup
	cache *expirable.LRU[string, int64]
}

func NewTenantResolver(repo TenantLookup, size int, ttl time.Duration) *TenantResolver {
	if size <= 0 {
		size = 1024
	}
	return &TenantResolver{
		repo:  repo,
		cache: expirable.NewLRU[string, int64](size, nil, ttl),
	}
}

func (r *TenantResolver) Resolve(ctx context.Context, uuid string) (int64, error) {
	uuid = strings.ToLower(strings.TrimSpace(uuid))
	if id, ok := r.cache.Get(uuid); ok {
		return id, nil
	}
	t, err := r.repo.GetByUUID(ctx, uuid)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrInvalidTenant
	}
	if err != nil {
		return 0, err
	}
	r.cache.Add(uuid, t.ID)
	return t.ID, nil
}
