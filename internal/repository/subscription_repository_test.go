package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRepository_Transition(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	sub := &model.Subscription{
		CatalogMeta:        model.CatalogMeta{UUID: uuid.NewString()},
		SubscriptionName:   "Growth",
		SubscriptionAmount: 4999,
		NoOfBorrowers:      500,
		TypeOf:             "Monthly",
		Status:             model.SubscriptionActive,
	}
	require.NoError(t, db.Write(ctx).Create(sub).Error)

	got, err := repo.Transition(ctx, sub.ID, model.ActionPause, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionPause, got.Status)
	assert.False(t, got.IsDeleted)
	assert.Equal(t, "paused_by:ops@example.com", got.ModifiedUser)

	_, err = repo.Transition(ctx, sub.ID, model.ActionPause, "ops@example.com")
	var te *model.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, model.SubscriptionPause, te.From)

	got, err = repo.Transition(ctx, sub.ID, model.ActionCancel, "ops@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, "cancelled_by:ops@example.com", got.ModifiedUser)

	stored, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionCancel, stored.Status)
	assert.True(t, stored.IsDeleted)

	got, err = repo.Transition(ctx, sub.ID, model.ActionResume, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, got.Status)
	assert.False(t, got.IsDeleted)
	assert.Equal(t, "resumed_by:ops@example.com", got.ModifiedUser)

	_, err = repo.Transition(ctx, 404, model.ActionPause, "ops@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
