package repository

import (
	"context"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

type TenantRepository struct {
	*pg.DB
}

func NewTenantRepository(db *pg.DB) *TenantRepository {
	return &TenantRepository{
		db,
	}
}

func (r *TenantRepository) Create(ctx context.Context, t *model.Tenant) error {
	return translate(r.Write(ctx).Create(t).Error)
}

func (r *TenantRepository) GetByID(ctx context.Context, id int64) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.Read(ctx).Where("id = ?", id).Take(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *TenantRepository) GetByUUID(ctx context.Context, uuid string) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.Read(ctx).Where("tenant_uuid = ?", strings.TrimSpace(uuid)).Take(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// FirstID returns the oldest tenant id, ErrNotFound when there is none.
func (r *TenantRepository) FirstID(ctx context.Context) (int64, error) {
	var t model.Tenant
	if err := r.Read(ctx).Select("id").Order("id ASC").Take(&t).Error; err != nil {
		return 0, translate(err)
	}
	return t.ID, nil
}

func (r *TenantRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	var n int64
	err := r.Read(ctx).Model(&model.Tenant{}).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Count(&n).Error
	return n > 0, err
}

func (r *TenantRepository) CreateRuleConfig(ctx context.Context, c *model.TenantRuleConfig) error {
	return translate(r.Write(ctx).Create(c).Error)
}

// BranchExists reports whether branch id belongs to tenantID.
func (r *TenantRepository) BranchExists(ctx context.Context, id, tenantID int64) (bool, error) {
	var n int64
	err := r.Read(ctx).Model(&model.Branch{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Count(&n).Error
	return n > 0, err
}
