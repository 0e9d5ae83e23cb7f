package repository

import (
	"context"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

type IntegrationRepository struct {
	*pg.DB
}

func NewIntegrationRepository(db *pg.DB) *IntegrationRepository {
	return &IntegrationRepository{
		db,
	}
}

// ActiveByProvider returns the oldest active integration for provider.
func (r *IntegrationRepository) ActiveByProvider(ctx context.Context, provider string) (*model.APIIntegration, error) {
	var out model.APIIntegration
	err := r.Read(ctx).
		Where("LOWER(provider) = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(provider)), true).
		Order("id").
		Take(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (r *IntegrationRepository) AddWebhookLog(ctx context.Context, l *model.WebhookLog) error {
	return translate(r.Write(ctx).Create(l).Error)
}
