package repository

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

type SettingRepository struct {
	*pg.DB
}

func NewSettingRepository(db *pg.DB) *SettingRepository {
	return &SettingRepository{
		db,
	}
}

func (r *SettingRepository) All(ctx context.Context) ([]*model.Setting, error) {
	out := make([]*model.Setting, 0)
	err := r.Read(ctx).Order("category ASC, key ASC").Find(&out).Error
	return out, err
}

func (r *SettingRepository) ByKeys(ctx context.Context, keys []string) ([]*model.Setting, error) {
	return FindByColumn[model.Setting](ctx, r.DB, "key", keys)
}

// SetValues writes every key's value in one transaction.
func (r *SettingRepository) SetValues(ctx context.Context, values map[string]string) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		for key, value := range values {
			res := r.Write(ctx).Model(&model.Setting{}).Where("key = ?", key).Update("value", value)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}
