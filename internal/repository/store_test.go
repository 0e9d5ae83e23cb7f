package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_List(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	acme := seedTenant(t, db, "Acme Finance")
	other := seedTenant(t, db, "Other Bank")
	seedBranch(t, db, acme.ID, "BR-001", "Andheri")
	seedBranch(t, db, acme.ID, "BR-002", "Bandra")
	seedBranch(t, db, other.ID, "BR-003", "Andheri East")

	store := NewStore[model.Branch](db, StoreOptions{
		SearchColumns: []string{"branches.name", "branches.branch_code"},
		Filters:       map[string]string{"branch_code": "branches.branch_code"},
	})

	t.Run("unscoped sees every tenant", func(t *testing.T) {
		items, total, err := store.List(ctx, model.ListQuery{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, items, 3)
		assert.Equal(t, "BR-003", items[0].BranchCode, "newest first")
	})

	t.Run("tenant scope", func(t *testing.T) {
		items, total, err := store.List(ctx, model.ListQuery{TenantID: &acme.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, b := range items {
			assert.Equal(t, acme.ID, b.TenantID)
		}
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		items, total, err := store.List(ctx, model.ListQuery{Search: "ANDHERI"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, items, 2)
	})

	t.Run("unknown filters are ignored", func(t *testing.T) {
		_, total, err := store.List(ctx, model.ListQuery{Filters: map[string]string{
			"branch_code": "BR-002",
			"name":        "nothing matches this",
		}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("pagination keeps the total", func(t *testing.T) {
		items, total, err := store.List(ctx, model.ListQuery{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 1)
		assert.Equal(t, "BR-002", items[0].BranchCode)
	})
}

func TestStore_SoftDeleteAndLookup(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	store := NewStore[model.EmploymentType](db, StoreOptions{
		LookupColumn: "uuid",
		SoftDelete:   true,
	})

	salaried := &model.EmploymentType{CatalogMeta: model.CatalogMeta{UUID: uuid.NewString()}, EmpName: "Salaried"}
	retired := &model.EmploymentType{CatalogMeta: model.CatalogMeta{UUID: uuid.NewString()}, EmpName: "Retired"}
	require.NoError(t, store.Create(ctx, salaried))
	require.NoError(t, store.Create(ctx, retired))

	retired.MarkDeleted("admin@example.com")
	require.NoError(t, store.Update(ctx, retired))

	items, total, err := store.List(ctx, model.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Salaried", items[0].EmpName)

	_, total, err = store.List(ctx, model.ListQuery{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	got, err := store.Get(ctx, retired.UUID, nil)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, "admin@example.com", got.ModifiedUser)

	_, err = store.Get(ctx, uuid.NewString(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetScoped(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	acme := seedTenant(t, db, "Acme Finance")
	other := seedTenant(t, db, "Other Bank")
	b := seedBranch(t, db, acme.ID, "BR-001", "Andheri")

	store := NewStore[model.Branch](db, StoreOptions{})

	got, err := store.Get(ctx, "1", &acme.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = store.Get(ctx, "1", &other.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "not-a-number", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DuplicateAndDelete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	acme := seedTenant(t, db, "Acme Finance")
	store := NewStore[model.Branch](db, StoreOptions{})

	first := &model.Branch{TenantRef: model.TenantRef{TenantID: acme.ID}, BranchCode: "BR-001", Name: "Andheri"}
	require.NoError(t, store.Create(ctx, first))

	dup := &model.Branch{TenantRef: model.TenantRef{TenantID: acme.ID}, BranchCode: "BR-001", Name: "Copy"}
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicate)

	taken, err := store.Exists(ctx, "branch_code", "BR-001", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = store.Exists(ctx, "branch_code", "BR-001", first.ID)
	require.NoError(t, err)
	assert.False(t, taken, "own row does not count")

	require.NoError(t, store.Delete(ctx, first))
	assert.ErrorIs(t, store.Delete(ctx, first), ErrNotFound)
}

func TestStore_ApplicationScope(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	acme := seedTenant(t, db, "Acme Finance")
	other := seedTenant(t, db, "Other Bank")
	mine := seedApplication(t, db, acme.ID, seedCustomer(t, db, acme.ID).ID, 1000, model.AppNew)
	theirs := seedApplication(t, db, other.ID, seedCustomer(t, db, other.ID).ID, 1000, model.AppNew)

	store := NewStore[model.KYCDetail](db, StoreOptions{TenantScope: ScopeByApplication})
	for _, appID := range []int64{mine.ID, theirs.ID} {
		require.NoError(t, store.Create(ctx, &model.KYCDetail{
			LoanApplicationID: appID,
			KYCType:           "PAN",
			DocumentNumber:    "ABCDE1234F",
			Status:            model.KYCPending,
		}))
	}

	items, total, err := store.List(ctx, model.ListQuery{TenantID: &acme.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, mine.ID, items[0].LoanApplicationID)
}

func TestStore_ReplaceAssociation(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	charges := NewStore[model.ChargeMaster](db, StoreOptions{})
	fee := &model.ChargeMaster{Name: "Processing", ChargeType: "processing", Value: 1}
	late := &model.ChargeMaster{Name: "Late", ChargeType: "penalty", Value: 500}
	require.NoError(t, charges.Create(ctx, fee))
	require.NoError(t, charges.Create(ctx, late))

	products := NewStore[model.LoanProduct](db, StoreOptions{Preload: []string{"Charges", "RequiredDocuments"}})
	p := &model.LoanProduct{Name: "Gold", LoanType: "personal", InterestRate: 12, MinTenure: 1, MaxTenure: 12}
	require.NoError(t, products.Create(ctx, p))

	require.NoError(t, products.ReplaceAssociation(ctx, p, "Charges", []*model.ChargeMaster{fee, late}))
	got, err := products.GetByID(ctx, p.ID, nil)
	require.NoError(t, err)
	assert.Len(t, got.Charges, 2)

	require.NoError(t, products.ReplaceAssociation(ctx, p, "Charges", []*model.ChargeMaster{}))
	got, err = products.GetByID(ctx, p.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Charges)

	found, err := FindByColumn[model.ChargeMaster](ctx, db, "id", []int64{late.ID, 999})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Late", found[0].Name)
}
