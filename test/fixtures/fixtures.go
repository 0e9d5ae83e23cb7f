// Package fixtures seeds e2e databases and fakes the outside services the
// dispatcher talks to.
package fixtures

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/gateways"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/stretchr/testify/require"
)

func Tenant(t *testing.T, tenants *repository.TenantRepository, name string) *model.Tenant {
	t.Helper()
	tn := &model.Tenant{TenantUUID: uuid.NewString(), Name: name, TenantType: model.TenantNBFC, IsActive: true}
	require.NoError(t, tenants.Create(context.Background(), tn))
	return tn
}

// TenantAdmin creates an active TENANT_ADMIN and returns it with an access token.
func TenantAdmin(t *testing.T, users *repository.UserRepository, tokens *auth.Tokens, tenantID int64) (*model.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("s3cretpass")
	require.NoError(t, err)
	u, err := users.Create(context.Background(), &model.User{
		Email:        uuid.NewString()[:8] + "@tenant.local",
		PasswordHash: hash,
		Role:         model.RoleTenantAdmin,
		TenantID:     &tenantID,
		IsActive:     true,
	})
	require.NoError(t, err)
	token, err := tokens.Access(u)
	require.NoError(t, err)
	return u, token
}

// Provider is an SMS provider answering with a preset status per phone number.
// Unknown numbers are delivered.
type Provider struct {
	*httptest.Server

	mu       sync.Mutex
	statuses map[string]gateways.SMSResult
	calls    atomic.Int32
}

func NewProvider(t *testing.T) *Provider {
	p := &Provider{statuses: make(map[string]gateways.SMSResult)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sms/send", p.send)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *Provider) Respond(phone string, res gateways.SMSResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[phone] = res
}

func (p *Provider) Calls() int {
	return int(p.calls.Load())
}

func (p *Provider) send(w http.ResponseWriter, r *http.Request) {
	p.calls.Add(1)
	var req gateways.SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	res, ok := p.statuses[req.To]
	p.mu.Unlock()
	if !ok {
		res = gateways.SMSResult{Status: gateways.StatusDelivered}
	}
	res.MessageID = req.MessageID
	res.ProcessedAt = time.Now()

	code := http.StatusOK
	if res.Status != gateways.StatusDelivered {
		code = http.StatusAccepted
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(res)
}

// SMSClient returns a gateway client pointed at the provider only.
func (p *Provider) SMSClient(t *testing.T) *gateways.SMSClient {
	cfg := gateways.SMSConfigFor([]string{p.URL})
	cfg.HealthInterval = 0
	cfg.Timeout = 2 * time.Second
	cfg.RetryDelay = 10 * time.Millisecond
	c, err := gateways.NewSMSClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Mailer records email sends.
type Mailer struct {
	mu   sync.Mutex
	Sent []gateways.EmailRequest
	err  error
}

// Fail makes every following send return err.
func (m *Mailer) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mailer) SendEmail(ctx context.Context, req *gateways.EmailRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.Sent = append(m.Sent, *req)
	return nil
}

func (m *Mailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
