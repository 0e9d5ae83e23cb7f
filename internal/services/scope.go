package services

import (
	"context"
	"errors"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
)

type TenantDirectory interface {
	FirstID(ctx context.Context) (int64, error)
}

// readScope returns the tenant a list or get is narrowed to. nil means every
// tenant and is only returned for masters.
func readScope(actor *model.Actor, requested *int64) (*int64, error) {
	if actor.IsMaster() {
		if requested != nil {
			return requested, nil
		}
		return actor.TenantID, nil
	}
	if actor.TenantID == nil {
		return nil, ErrNoTenant
	}
	return actor.TenantID, nil
}

// writeTenant picks the tenant a new row is written to. Masters may name one
// in the body and fall back to the request tenant, then the first tenant.
func writeTenant(ctx context.Context, dir TenantDirectory, actor *model.Actor, body int64) (int64, error) {
	if !actor.IsMaster() {
		if actor.TenantID == nil {
			return 0, ErrNoTenant
		}
		return *actor.TenantID, nil
	}
	if body > 0 {
		return body, nil
	}
	if actor.TenantID != nil {
		return *actor.TenantID, nil
	}
	id, err := dir.FirstID(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, Invalid("No tenants exist in the system")
	}
	return id, err
}
