package services

import (
	"context"
	"testing"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leadActions(t *testing.T, f *fixture, leadID int64) []string {
	t.Helper()
	var out []string
	require.NoError(t, f.db.Read(context.Background()).Model(&model.LeadActivity{}).
		Where("lead_id = ?", leadID).Order("id").Pluck("action", &out).Error)
	return out
}

func TestCRMService_LeadLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, "Acme Finance")
	svc := NewCRMService(f.db, f.tenants, f.audit)
	actor := tenantAdmin(tn.ID)

	lead, err := svc.Leads.Create(ctx, actor, []byte(`{"name": "Kiran", "email": "kiran@example.com", "phone": "+919800000001"}`))
	require.NoError(t, err)
	assert.Equal(t, model.LeadNew, lead.Status)

	_, err = svc.Leads.Update(ctx, actor, key(lead.ID), []byte(`{"status": "QUALIFIED"}`))
	require.NoError(t, err)
	_, err = svc.Leads.Update(ctx, actor, key(lead.ID), []byte(`{"company": "Kiran Traders"}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Lead created", "Status changed to QUALIFIED", "Lead updated"}, leadActions(t, f, lead.ID))
}

func TestCRMService_LeadValidation(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, "Acme Finance")
	svc := NewCRMService(f.db, f.tenants, f.audit)

	_, err := svc.Leads.Create(context.Background(), tenantAdmin(tn.ID), []byte(`{"name": "Kiran", "email": "not-an-email", "status": "WON"}`))
	assertInvalid(t, err, "email")
	assertInvalid(t, err, "status")
}

func TestCRMService_Convert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, "Acme Finance")
	svc := NewCRMService(f.db, f.tenants, f.audit)
	actor := tenantAdmin(tn.ID)

	lead, err := svc.Leads.Create(ctx, actor, []byte(`{"name": "Meera", "company": "Meera Foods"}`))
	require.NoError(t, err)

	c, err := svc.Convert(ctx, actor, key(lead.ID))
	require.NoError(t, err)
	assert.Equal(t, "Meera", c.Name)
	assert.Equal(t, "Meera Foods", c.Company)
	assert.Equal(t, tn.ID, c.TenantID)
	require.NotNil(t, c.LeadID)
	assert.Equal(t, lead.ID, *c.LeadID)
	assert.Equal(t, model.KYCPending, c.KYCStatus)

	stored, err := svc.Leads.Get(ctx, actor, key(lead.ID))
	require.NoError(t, err)
	assert.Equal(t, model.LeadConverted, stored.Status)
	assert.Contains(t, leadActions(t, f, lead.ID), "Converted to customer")

	_, err = svc.Convert(ctx, actor, key(lead.ID))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Lead already converted", ve.Message)
}

func TestCRMService_ConvertOtherTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own := f.tenant(t, "Own Finance")
	other := f.tenant(t, "Other Finance")
	svc := NewCRMService(f.db, f.tenants, f.audit)

	lead, err := svc.Leads.Create(ctx, tenantAdmin(other.ID), []byte(`{"name": "Somebody"}`))
	require.NoError(t, err)

	_, err = svc.Convert(ctx, tenantAdmin(own.ID), key(lead.ID))
	assert.ErrorIs(t, err, ErrNotFound)
}
