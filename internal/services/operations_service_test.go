package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, body, size, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

func TestDocumentService_UploadAndDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, "Acme Finance")
	c := f.customer(t, tn.ID)
	files := new(MockObjectStore)
	svc := NewDocumentService(f.db, files, f.tenants, f.tenants, f.audit, 1024)
	actor := tenantAdmin(tn.ID)

	doc, err := svc.Documents.Create(ctx, actor, []byte(`{"customer_id": `+key(c.ID)+`, "document_type": "PAN"}`))
	require.NoError(t, err)

	_, err = svc.Download(ctx, actor, key(doc.ID))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Upload(ctx, actor, key(doc.ID), Upload{Name: "pan.pdf", Size: 4096, Body: strings.NewReader("x")})
	assertInvalid(t, err, "file")
	_, err = svc.Upload(ctx, actor, key(doc.ID), Upload{Name: "pan.pdf"})
	assertInvalid(t, err, "file")

	wantKey := "tenants/" + tn.TenantUUID + "/documents/" + key(doc.ID) + "/pan.pdf"
	files.On("Put", mock.Anything, wantKey, mock.Anything, int64(3), "application/pdf").Return(nil).Once()
	got, err := svc.Upload(ctx, actor, key(doc.ID), Upload{
		Name:        "../../etc/pan.pdf",
		ContentType: "application/pdf",
		Size:        3,
		Body:        strings.NewReader("pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, wantKey, got.FileKey)
	assert.Equal(t, "pan.pdf", got.FileName)
	assert.Equal(t, int64(3), got.Size)

	expires := time.Now().Add(time.Hour)
	files.On("PresignGet", mock.Anything, wantKey).Return("https://files.local/signed", expires, nil).Once()
	link, err := svc.Download(ctx, actor, key(doc.ID))
	require.NoError(t, err)
	assert.Equal(t, "https://files.local/signed", link.URL)
	files.AssertExpectations(t)
}

func TestDocumentService_MetadataIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, "Acme Finance")
	c := f.customer(t, tn.ID)
	svc := NewDocumentService(f.db, new(MockObjectStore), f.tenants, f.tenants, f.audit, 0)
	actor := tenantAdmin(tn.ID)

	doc, err := svc.Documents.Create(ctx, actor, []byte(`{"customer_id": `+key(c.ID)+`, "document_type": "PAN"}`))
	require.NoError(t, err)
	got, err := svc.Documents.Update(ctx, actor, key(doc.ID), []byte(`{"file_key": "elsewhere", "purpose": "address proof"}`))
	require.NoError(t, err)
	assert.Empty(t, got.FileKey)
	assert.Equal(t, "address proof", got.Purpose)
}

func TestCommunicationService_CreatePublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, "Acme Finance")
	pub := new(MockPublisher)
	svc := NewCommunicationService(f.db, pub, f.tenants, f.audit)
	actor := tenantAdmin(tn.ID)

	_, err := svc.Create(ctx, actor, []byte(`{"to": "not-a-mail", "channel": "EMAIL", "message": "hi"}`))
	assertInvalid(t, err, "to")
	_, err = svc.Create(ctx, actor, []byte(`{"to": "12", "channel": "SMS", "message": "hi"}`))
	assertInvalid(t, err, "to")

	pub.On("PublishJSON", mock.Anything, mock.AnythingOfType("services.DispatchJob"), map[string]string{"channel": "SMS"}).
		Return("1-0", nil).Once()
	c, err := svc.Create(ctx, actor, []byte(`{"to": "+919800000001", "channel": "SMS", "message": "EMI due", "status": "SENT"}`))
	require.NoError(t, err)
	assert.Equal(t, model.CommPending, c.Status)
	pub.AssertExpectations(t)

	job := pub.Calls[0].Arguments.Get(1).(DispatchJob)
	assert.Equal(t, c.ID, job.ID)
}

func TestCommunicationService_Resend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, "Acme Finance")
	pub := new(MockPublisher)
	svc := NewCommunicationService(f.db, pub, f.tenants, f.audit)
	actor := tenantAdmin(tn.ID)

	pub.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return("1-0", nil)
	c, err := svc.Create(ctx, actor, []byte(`{"to": "a@b.co", "channel": "EMAIL", "subject": "Hello", "message": "hi"}`))
	require.NoError(t, err)

	_, err = svc.Resend(ctx, actor, key(c.ID))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Only failed messages can be resent", ve.Message)

	comms := repository.NewCommunicationRepository(f.db)
	require.NoError(t, comms.MarkFailed(ctx, c.ID, "", "smtp down"))

	got, err := svc.Resend(ctx, actor, key(c.ID))
	require.NoError(t, err)
	assert.Equal(t, model.CommPending, got.Status)
	assert.Empty(t, got.Error)
	pub.AssertNumberOfCalls(t, "PublishJSON", 2)
}

func TestCommunicationService_PublishError(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, "Acme Finance")
	pub := new(MockPublisher)
	svc := NewCommunicationService(f.db, pub, f.tenants, f.audit)

	pub.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("redis down"))
	_, err := svc.Create(context.Background(), tenantAdmin(tn.ID), []byte(`{"to": "a@b.co", "channel": "EMAIL", "message": "hi"}`))
	assert.EqualError(t, err, "redis down")
}

func TestComplianceService_RiskFlagRelatedCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own := f.tenant(t, "Own Finance")
	other := f.tenant(t, "Other Finance")
	svc := NewComplianceService(f.db, f.tenants, f.audit)

	foreign, err := svc.Checks.Create(ctx, tenantAdmin(other.ID), []byte(`{"check_type": "AML"}`))
	require.NoError(t, err)
	assert.Equal(t, "PENDING", foreign.Status)
	assert.NotEmpty(t, foreign.CheckID)

	_, err = svc.RiskFlags.Create(ctx, tenantAdmin(own.ID),
		[]byte(`{"title": "Mismatch", "severity": "HIGH", "related_check_id": `+key(foreign.ID)+`}`))
	assertInvalid(t, err, "related_check_id")

	mine, err := svc.Checks.Create(ctx, tenantAdmin(own.ID), []byte(`{"check_type": "KYC", "status": "PASSED"}`))
	require.NoError(t, err)
	flag, err := svc.RiskFlags.Create(ctx, tenantAdmin(own.ID),
		[]byte(`{"title": "Mismatch", "severity": "HIGH", "related_check_id": `+key(mine.ID)+`}`))
	require.NoError(t, err)
	assert.NotEmpty(t, flag.FlagID)
}

func TestIntegrationService_ConfigMustBeObject(t *testing.T) {
	f := newFixture(t)
	tn := f.tenant(t, "Acme Finance")
	repo := repository.NewIntegrationRepository(f.db)
	svc := NewIntegrationService(f.db, repo, repository.NewCommunicationRepository(f.db), f.tenants, f.audit, "s3cret")
	actor := tenantAdmin(tn.ID)

	_, err := svc.APIs.Create(context.Background(), actor, []byte(`{"name": "SMS", "provider": "acme", "config": [1]}`))
	assertInvalid(t, err, "config")

	api, err := svc.APIs.Create(context.Background(), actor, []byte(`{"name": "SMS", "provider": "acme", "config": {"url": "http://x"}}`))
	require.NoError(t, err)
	assert.True(t, api.IsActive)
	assert.Equal(t, "http://x", api.Config["url"])
}

func TestIntegrationService_Receive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.tenant(t, "Acme Finance")
	repo := repository.NewIntegrationRepository(f.db)
	comms := repository.NewCommunicationRepository(f.db)
	svc := NewIntegrationService(f.db, repo, comms, f.tenants, f.audit, "s3cret")

	_, err := svc.Receive(ctx, "acme", "wrong", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Receive(ctx, "acme", "s3cret", []byte(`{oops`))
	assertInvalid(t, err, "")

	api, err := svc.APIs.Create(ctx, tenantAdmin(tn.ID), []byte(`{"name": "SMS", "provider": "Acme"}`))
	require.NoError(t, err)

	msg := &model.Communication{
		TenantRef: model.TenantRef{TenantID: tn.ID},
		To:        "+919800000001",
		Channel:   model.ChannelSMS,
		Message:   "hi",
		Status:    model.CommPending,
	}
	require.NoError(t, f.db.Write(ctx).Create(msg).Error)
	require.NoError(t, comms.MarkSent(ctx, msg.ID, "prov-1", time.Now()))

	entry, err := svc.Receive(ctx, "acme", "s3cret", []byte(`{"event": "delivery", "message_id": "prov-1", "status": "UNDELIVERED", "error": "handset off"}`))
	require.NoError(t, err)
	assert.Equal(t, "delivery", entry.Event)
	require.NotNil(t, entry.IntegrationID)
	assert.Equal(t, api.ID, *entry.IntegrationID)
	require.NotNil(t, entry.TenantID)
	assert.Equal(t, tn.ID, *entry.TenantID)

	stored, err := comms.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommFailed, stored.Status)
	assert.Equal(t, "handset off", stored.Error)

	unknown, err := svc.Receive(ctx, "other", "s3cret", []byte(`{"message_id": "nope", "status": "DELIVERED"}`))
	require.NoError(t, err)
	assert.Equal(t, "other", unknown.Event)
	assert.Nil(t, unknown.TenantID)
}

func TestOnboardingService_TenantFromActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	own := f.tenant(t, "Own Finance")
	other := f.tenant(t, "Other Finance")
	svc := NewOnboardingService(f.db, f.audit)

	c, err := svc.Clients.Create(ctx, tenantAdmin(own.ID), []byte(`{"full_name": "Ravi", "tenant_id": `+key(other.ID)+`}`))
	require.NoError(t, err)
	require.NotNil(t, c.TenantID)
	assert.Equal(t, own.ID, *c.TenantID)
	assert.Equal(t, "Pending", c.KYCStatus)

	anon, err := svc.Clients.Create(ctx, &model.Actor{}, []byte(`{"full_name": "Walk In"}`))
	require.NoError(t, err)
	assert.Nil(t, anon.TenantID)

	_, err = svc.Clients.Create(ctx, &model.Actor{}, []byte(`{"full_name": "Bad", "mobile": "abc"}`))
	assertInvalid(t, err, "mobile")
}
