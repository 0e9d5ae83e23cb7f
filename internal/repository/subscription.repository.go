package repository

import (
	"context"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
)

type SubscriptionRepository struct {
	*pg.DB
}

func NewSubscriptionRepository(db *pg.DB) *SubscriptionRepository {
	return &SubscriptionRepository{
		db,
	}
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	var sub model.Subscription
	if err := r.Read(ctx).Where("id = ?", id).Take(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// Transition applies action to subscription id. The update is conditional on
// the status that was read, so a concurrent transition yields ErrStale
// instead of being overwritten.
func (r *SubscriptionRepository) Transition(ctx context.Context, id int64, action model.SubscriptionAction, by string) (*model.Subscription, error) {
	sub, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	to, ok := sub.Status.Next(action)
	if !ok {
		return nil, &model.TransitionError{Action: action, From: sub.Status}
	}

	from := sub.Status
	sub.SetStatus(to)
	sub.ModifiedUser = action.Past() + "_by:" + by

	res := r.Write(ctx).Model(&model.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":        sub.Status,
			"is_deleted":    sub.IsDeleted,
			"modified_user": sub.ModifiedUser,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStale
	}
	return sub, nil
}
