package repository

import (
	"context"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

type CommunicationRepository struct {
	*pg.DB
}

func NewCommunicationRepository(db *pg.DB) *CommunicationRepository {
	return &CommunicationRepository{
		db,
	}
}

func (r *CommunicationRepository) GetByID(ctx context.Context, id int64) (*model.Communication, error) {
	var c model.Communication
	if err := r.Read(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// MarkSent moves a PENDING message to SENT. ErrStale means another worker
// already settled it.
func (r *CommunicationRepository) MarkSent(ctx context.Context, id int64, providerID string, at time.Time) error {
	res := r.Write(ctx).Model(&model.Communication{}).
		Where("id = ? AND status = ?", id, model.CommPending).
		Updates(map[string]any{
			"status":              model.CommSent,
			"provider_message_id": providerID,
			"sent_at":             at,
			"error":               "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

func (r *CommunicationRepository) MarkFailed(ctx context.Context, id int64, providerID, reason string) error {
	res := r.Write(ctx).Model(&model.Communication{}).
		Where("id = ? AND status = ?", id, model.CommPending).
		Updates(map[string]any{
			"status":              model.CommFailed,
			"provider_message_id": providerID,
			"error":               reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// ApplyDelivery sets the status of the message the provider knows as
// providerID. It returns ErrNotFound when no message carries that id.
func (r *CommunicationRepository) ApplyDelivery(ctx context.Context, providerID string, status model.CommunicationStatus, reason string) (*model.Communication, error) {
	var c model.Communication
	if err := r.Write(ctx).Where("provider_message_id = ?", providerID).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	c.Status = status
	c.Error = reason
	if status == model.CommSent && c.SentAt == nil {
		now := time.Now()
		c.SentAt = &now
	}
	err := r.Write(ctx).Model(&c).Updates(map[string]any{
		"status":  c.Status,
		"error":   c.Error,
		"sent_at": c.SentAt,
	}).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
