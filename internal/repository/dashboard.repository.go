package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DashboardRepository struct {
	*pg.DB
}

func NewDashboardRepository(db *pg.DB) *DashboardRepository {
	return &DashboardRepository{
		db,
	}
}

// GetOrCreate returns the snapshot row, inserting the empty default first
// when it does not exist yet.
func (r *DashboardRepository) GetOrCreate(ctx context.Context) (*model.DashboardSnapshot, error) {
	var snap model.DashboardSnapshot
	err := r.Read(ctx).Where("id = ?", model.DashboardSnapshotID).Take(&snap).Error
	if err == nil {
		return &snap, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.Write(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model.EmptyDashboardSnapshot()).
		Error
	if err != nil {
		return nil, err
	}
	if err := r.Write(ctx).Where("id = ?", model.DashboardSnapshotID).Take(&snap).Error; err != nil {
		return nil, translate(err)
	}
	return &snap, nil
}

func (r *DashboardRepository) Save(ctx context.Context, snap *model.DashboardSnapshot) error {
	snap.ID = model.DashboardSnapshotID
	return r.Write(ctx).Save(snap).Error
}
