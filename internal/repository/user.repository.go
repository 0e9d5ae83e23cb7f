package repository

import (
	"context"
	"strings"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"gorm.io/gorm"
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	entity := toUserEntity(u)
	entity.Email = strings.ToLower(strings.TrimSpace(entity.Email))

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, translate(err)
	}

	return toUserModel(entity), nil
}

func (r *UserRepository) Update(ctx context.Context, u *model.User) (*model.User, error) {
	entity := toUserEntity(u)
	entity.Email = strings.ToLower(strings.TrimSpace(entity.Email))

	if err := r.Write(ctx).Save(entity).Error; err != nil {
		return nil, translate(err)
	}

	return toUserModel(entity), nil
}

// GetByID returns the user, scoped to tenantID when it is set.
func (r *UserRepository) GetByID(ctx context.Context, id int64, tenantID *int64) (*model.User, error) {
	q := r.Read(ctx).Where("id = ?", id)
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}

	var entity UserEntity
	if err := q.Take(&entity).Error; err != nil {
		return nil, translate(err)
	}
	return toUserModel(&entity), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&entity).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return toUserModel(&entity), nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.Read(ctx).Model(&UserEntity{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&n).Error
	return n > 0, err
}

func (r *UserRepository) List(ctx context.Context, f model.UserFilter) ([]*model.User, int64, error) {
	q := r.Read(ctx).Model(&UserEntity{})

	if f.TenantID != nil {
		q = q.Where("tenant_id = ?", *f.TenantID)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.BranchID != nil {
		q = q.Where("branch_id = ?", *f.BranchID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("(LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(employee_id) LIKE ?)",
			like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := f.Page()
	var entities []*UserEntity
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toUserModels(entities), total, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.Write(ctx).Model(&UserEntity{}).
		Where("id = ?", id).
		UpdateColumn("last_login", at).
		Error
}

func (r *UserRepository) AddLoginActivity(ctx context.Context, a *model.LoginActivity) error {
	return r.Write(ctx).Create(a).Error
}

func (r *UserRepository) LoginActivities(ctx context.Context, userID int64, limit int) ([]*model.LoginActivity, error) {
	out := make([]*model.LoginActivity, 0)
	err := r.Read(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *UserRepository) AddAuditLog(ctx context.Context, l *model.AuditLog) error {
	return r.Write(ctx).Create(l).Error
}

// AuditLogOptions configures the audit log store: newest first, user email
// joined in for display and search.
func AuditLogOptions() StoreOptions {
	return StoreOptions{
		Joins:  []string{"LEFT JOIN users ON users.id = audit_logs.user_id"},
		Select: "audit_logs.*, users.email AS user_email",
		Order:  "audit_logs.timestamp DESC, audit_logs.id DESC",
		SearchColumns: []string{
			"audit_logs.description", "users.email", "audit_logs.ip_address",
		},
		Filters: map[string]string{
			"action_type": "audit_logs.action_type",
			"user":        "audit_logs.user_id",
			"module":      "audit_logs.module",
		},
		TenantScope: func(db *gorm.DB, tenantID int64) *gorm.DB {
			return db.Where("audit_logs.tenant_id = ?", tenantID)
		},
	}
}
