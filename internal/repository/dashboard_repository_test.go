package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestDashboardRepository(t *testing.T) {
	db := NewTestDB(t)
	repo := NewDashboardRepository(db)
	ctx := context.Background()

	snap, err := repo.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(model.DashboardSnapshotID), snap.ID)
	assert.Equal(t, "₹0", snap.KPIs.Data().DisbursedAmount)
	assert.Nil(t, snap.RefreshedAt)

	again, err := repo.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, again.ID)

	var n int64
	require.NoError(t, db.Read(ctx).Model(&model.DashboardSnapshot{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	now := time.Now().UTC()
	err = repo.Save(ctx, &model.DashboardSnapshot{
		ID:          42,
		KPIs:        datatypes.NewJSONType(model.DashboardKPIs{TotalTenants: 3, DisbursedAmount: "₹1.50 Cr"}),
		Charts:      datatypes.NewJSONType(model.DashboardCharts{}),
		RefreshedAt: &now,
	})
	require.NoError(t, err)

	snap, err = repo.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.KPIs.Data().TotalTenants)
	assert.Equal(t, "₹1.50 Cr", snap.KPIs.Data().DisbursedAmount)
	assert.NotNil(t, snap.RefreshedAt)

	require.NoError(t, db.Read(ctx).Model(&model.DashboardSnapshot{}).Count(&n).Error)
	assert.Equal(t, int64(1), n, "save always targets the single row")
}
