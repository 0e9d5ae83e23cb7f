package e2e

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/nimasrn/lending-admin/internal/gateways"
	"github.com/nimasrn/lending-admin/internal/handlers"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/test/fixtures"
	"github.com/nimasrn/lending-admin/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flow struct {
	env      *helpers.Env
	provider *fixtures.Provider
	mailer   *fixtures.Mailer
	token    string
}

func newFlow(t *testing.T) *flow {
	env := helpers.NewEnv(t)
	tenant := fixtures.Tenant(t, env.Tenants, "Acme Finance")
	_, token := fixtures.TenantAdmin(t, env.Users, env.Tokens, tenant.ID)

	f := &flow{env: env, provider: fixtures.NewProvider(t), mailer: &fixtures.Mailer{}, token: token}
	env.StartDispatcher(t, f.provider.SMSClient(t), f.mailer)
	return f
}

func (f *flow) send(t *testing.T, channel, to string) *model.Communication {
	t.Helper()
	body := fmt.Sprintf(`{"to":%q,"channel":%q,"subject":"Reminder","message":"EMI due on 5th"}`, to, channel)
	resp := f.env.Do("POST", "/api/v1/communications/messages", helpers.Bearer(f.token), []byte(body))
	require.Equal(t, 201, resp.Status, string(resp.Body))

	var c model.Communication
	resp.Decode(t, &c)
	assert.Equal(t, model.CommPending, c.Status)
	return &c
}

func TestCommunicationFlow_SMSDelivered(t *testing.T) {
	f := newFlow(t)

	c := f.send(t, "SMS", "+919800000001")
	f.env.WaitStatus(t, c.ID, string(model.CommSent))

	got, err := f.env.Comms.GetByID(t.Context(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(c.ID), got.ProviderMessageID)
	assert.NotNil(t, got.SentAt)
	assert.Empty(t, got.Error)
	assert.Equal(t, 1, f.provider.Calls())
}

func TestCommunicationFlow_FailedThenResent(t *testing.T) {
	f := newFlow(t)
	f.provider.Respond("+919800000002", gateways.SMSResult{Status: gateways.StatusFailed, ErrorCode: "DND", ErrorMsg: "number on do not disturb"})

	c := f.send(t, "WHATSAPP", "+919800000002")
	f.env.WaitStatus(t, c.ID, string(model.CommFailed))

	got, err := f.env.Comms.GetByID(t.Context(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "DND: number on do not disturb", got.Error)

	// a message that was not failed cannot be resent
	other := f.send(t, "SMS", "+919800000003")
	f.env.WaitStatus(t, other.ID, string(model.CommSent))
	resp := f.env.Do("POST", fmt.Sprintf("/api/v1/communications/messages/%d/resend", other.ID), helpers.Bearer(f.token), nil)
	assert.Equal(t, 400, resp.Status)

	f.provider.Respond("+919800000002", gateways.SMSResult{Status: gateways.StatusDelivered})
	resp = f.env.Do("POST", fmt.Sprintf("/api/v1/communications/messages/%d/resend", c.ID), helpers.Bearer(f.token), nil)
	require.Equal(t, 200, resp.Status, string(resp.Body))
	f.env.WaitStatus(t, c.ID, string(model.CommSent))
}

func TestCommunicationFlow_WebhookOverridesPending(t *testing.T) {
	f := newFlow(t)
	f.provider.Respond("+919800000004", gateways.SMSResult{Status: gateways.StatusPending})

	c := f.send(t, "SMS", "+919800000004")
	f.env.WaitStatus(t, c.ID, string(model.CommSent))

	payload, err := json.Marshal(model.DeliveryEvent{Event: "delivery", MessageID: fmt.Sprint(c.ID), Status: "UNDELIVERED", Error: "handset off"})
	require.NoError(t, err)

	resp := f.env.Do("POST", "/api/v1/integrations/webhooks/sms-provider", map[string]string{handlers.HeaderWebhookToken: "wrong"}, payload)
	assert.Equal(t, 401, resp.Status)

	resp = f.env.Do("POST", "/api/v1/integrations/webhooks/sms-provider", map[string]string{handlers.HeaderWebhookToken: helpers.WebhookSecret}, payload)
	require.Equal(t, 200, resp.Status, string(resp.Body))
	f.env.WaitStatus(t, c.ID, string(model.CommFailed))

	got, err := f.env.Comms.GetByID(t.Context(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "handset off", got.Error)
}

func TestCommunicationFlow_Email(t *testing.T) {
	f := newFlow(t)

	c := f.send(t, "EMAIL", "borrower@example.com")
	f.env.WaitStatus(t, c.ID, string(model.CommSent))
	require.Equal(t, 1, f.mailer.Count())
	assert.Equal(t, "Reminder", f.mailer.Sent[0].Subject)
	assert.Zero(t, f.provider.Calls())
}

func TestCommunicationFlow_EmailRetriesThenFails(t *testing.T) {
	f := newFlow(t)
	f.mailer.Fail(errors.New("smtp: 421 service not available"))

	c := f.send(t, "EMAIL", "borrower@example.com")
	f.env.WaitStatus(t, c.ID, string(model.CommFailed))

	got, err := f.env.Comms.GetByID(t.Context(), c.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Error, "service not available")
}

func TestCommunicationFlow_RequiresAuth(t *testing.T) {
	f := newFlow(t)
	resp := f.env.Do("POST", "/api/v1/communications/messages", nil, []byte(`{"to":"+919800000001","channel":"SMS","message":"x"}`))
	assert.Equal(t, 401, resp.Status)

	resp = f.env.Do("POST", "/api/v1/communications/messages", helpers.Bearer(f.token), []byte(`{"to":"+919800000001","channel":"FAX","message":"x"}`))
	assert.Equal(t, 400, resp.Status)
}
