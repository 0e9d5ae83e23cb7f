package gateways

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// fakeProvider serves the provider API on an in-memory listener.
type fakeProvider struct {
	ln      *fasthttputil.InmemoryListener
	calls   atomic.Int64
	handler fasthttp.RequestHandler
}

func newFakeProvider(t *testing.T, h fasthttp.RequestHandler) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{ln: fasthttputil.NewInmemoryListener(), handler: h}
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		fp.calls.Add(1)
		fp.handler(ctx)
	}}
	go srv.Serve(fp.ln) //nolint:errcheck
	t.Cleanup(func() { _ = fp.ln.Close() })
	return fp
}

func (fp *fakeProvider) dial(string) (net.Conn, error) {
	return fp.ln.Dial()
}

func testSMSConfig(fp *fakeProvider, urls ...string) *SMSConfig {
	c := SMSConfigFor(urls)
	c.HealthInterval = 0
	c.RetryDelay = time.Millisecond
	c.Timeout = time.Second
	c.Dial = fp.dial
	return c
}

func TestSMSConfigFor(t *testing.T) {
	c := SMSConfigFor([]string{"http://a", "http://b"})
	require.Len(t, c.Providers, 2)
	assert.Equal(t, ProviderConfig{Name: "provider-1", URL: "http://a", Weight: 100}, c.Providers[0])
	assert.Equal(t, 90, c.Providers[1].Weight)
}

func TestNewSMSClient_Validation(t *testing.T) {
	_, err := NewSMSClient(nil)
	assert.Error(t, err)

	_, err = NewSMSClient(&SMSConfig{})
	assert.ErrorContains(t, err, "at least one sms provider")
}

func TestSMSClient_SendSMS(t *testing.T) {
	fp := newFakeProvider(t, func(ctx *fasthttp.RequestCtx) {
		var req SMSRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || string(ctx.Path()) != pathSend {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		now := time.Now()
		body, _ := json.Marshal(SMSResult{MessageID: req.MessageID, Status: StatusDelivered, DeliveredAt: &now, OperatorID: "op-" + req.Channel})
		ctx.SetBody(body)
	})

	c, err := NewSMSClient(testSMSConfig(fp, "http://provider.test"))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.SendSMS(context.Background(), &SMSRequest{MessageID: "17", To: "+919876543210", Channel: "WHATSAPP", Body: "EMI due"})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, res.Status)
	assert.Equal(t, "17", res.MessageID)
	assert.Equal(t, "op-WHATSAPP", res.OperatorID)
	assert.NotNil(t, res.DeliveredAt)

	stats := c.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Requests)
	assert.Equal(t, "HEALTHY", stats[0].State)
}

func TestSMSClient_FailedDeliveryIsAResult(t *testing.T) {
	fp := newFakeProvider(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusAccepted)
		ctx.SetBodyString(`{"message_id":"5","status":"FAILED","error_code":"INVALID_NUMBER","error_message":"number not in service"}`)
	})

	c, err := NewSMSClient(testSMSConfig(fp, "http://provider.test"))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.SendSMS(context.Background(), &SMSRequest{MessageID: "5", To: "+910000000000", Channel: "SMS", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "INVALID_NUMBER: number not in service", res.Reason())
	assert.Equal(t, int64(1), fp.calls.Load())
}

func TestSMSClient_RetriesThenGivesUp(t *testing.T) {
	fp := newFakeProvider(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	})

	cfg := testSMSConfig(fp, "http://provider.test")
	cfg.BreakerThreshold = 10
	c, err := NewSMSClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SendSMS(context.Background(), &SMSRequest{MessageID: "1", To: "+911111111111", Channel: "SMS", Body: "x"})
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Equal(t, int64(3), fp.calls.Load())
}

func TestSMSClient_BreakerFailsOver(t *testing.T) {
	fp := newFakeProvider(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Host()) == "primary.test" {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetBodyString(`{"message_id":"9","status":"DELIVERED","operator_id":"backup"}`)
	})

	cfg := testSMSConfig(fp, "http://primary.test", "http://backup.test")
	cfg.BreakerThreshold = 1
	c, err := NewSMSClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	res, err := c.SendSMS(context.Background(), &SMSRequest{MessageID: "9", To: "+912222222222", Channel: "SMS", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "backup", res.OperatorID)
	assert.Equal(t, stateOpen, c.providers[0].getState())

	// once the breaker timeout passed the primary is tried again, degraded
	c.now = func() time.Time { return time.Now().Add(time.Minute) }
	assert.True(t, c.providers[0].available(c.now()))
	assert.Equal(t, stateDegraded, c.providers[0].getState())
}

func TestSMSClient_Status(t *testing.T) {
	fp := newFakeProvider(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, pathStatus+"abc", string(ctx.Path()))
		ctx.SetBodyString(`{"message_id":"abc","status":"PENDING"}`)
	})
	c, err := NewSMSClient(testSMSConfig(fp, "http://provider.test"))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Status(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
}

func TestSMSClient_CheckHealth(t *testing.T) {
	var healthy atomic.Bool
	fp := newFakeProvider(t, func(ctx *fasthttp.RequestCtx) {
		if healthy.Load() {
			ctx.SetBodyString(`{"status":"healthy"}`)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})
	c, err := NewSMSClient(testSMSConfig(fp, "http://provider.test"))
	require.NoError(t, err)
	defer c.Close()

	c.checkHealth()
	assert.Equal(t, stateUnhealthy, c.providers[0].getState())
	_, err = c.pick()
	assert.ErrorIs(t, err, ErrNoProvider)

	healthy.Store(true)
	c.checkHealth()
	assert.Equal(t, stateHealthy, c.providers[0].getState())
}

func TestCallStats(t *testing.T) {
	var s callStats
	assert.Equal(t, 1.0, s.successRate())
	assert.Zero(t, s.p95LatencyMs())

	for i := int64(1); i <= 200; i++ {
		s.success(i)
	}
	assert.Equal(t, int64(100), s.avgLatencyMs())
	// only the last 100 samples count for the percentile
	assert.Equal(t, int64(196), s.p95LatencyMs())

	assert.Equal(t, int32(1), s.failure())
	assert.Equal(t, int32(2), s.failure())
	assert.InDelta(t, 200.0/202.0, s.successRate(), 1e-9)
}

func TestProviderScore(t *testing.T) {
	now := time.Now()
	p := &provider{name: "p", weight: 100}
	base := p.score(now)
	assert.InDelta(t, 100.0, base, 1e-9)

	p.stats.failStreak.Store(3)
	assert.InDelta(t, 70.0, p.score(now), 1e-9)

	p.stats.failStreak.Store(0)
	p.setState(stateDegraded)
	assert.InDelta(t, 50.0, p.score(now), 1e-9)

	p.setState(stateUnhealthy)
	assert.Zero(t, p.score(now))
}
