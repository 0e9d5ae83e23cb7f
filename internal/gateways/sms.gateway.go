package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/valyala/fasthttp"
)

var ErrNoProvider = errors.New("no sms provider available")

type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
	StatusPending   DeliveryStatus = "PENDING"
)

const (
	pathSend   = "/api/v1/sms/send"
	pathStatus = "/api/v1/sms/status/"
	pathHealth = "/health"
)

// SMSRequest is one SMS or WhatsApp message as the provider API takes it.
type SMSRequest struct {
	MessageID string `json:"message_id"`
	To        string `json:"phone_number"`
	Channel   string `json:"channel"`
	Body      string `json:"content"`
}

type SMSResult struct {
	MessageID   string         `json:"message_id"`
	Status      DeliveryStatus `json:"status"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorMsg    string         `json:"error_message,omitempty"`
	OperatorID  string         `json:"operator_id"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// Reason is the human readable failure of a non delivered result.
func (r *SMSResult) Reason() string {
	switch {
	case r.ErrorMsg != "" && r.ErrorCode != "":
		return r.ErrorCode + ": " + r.ErrorMsg
	case r.ErrorMsg != "":
		return r.ErrorMsg
	case r.ErrorCode != "":
		return r.ErrorCode
	}
	return "provider reported " + string(r.Status)
}

type providerState int32

const (
	stateHealthy providerState = iota
	stateDegraded
	stateUnhealthy
	stateOpen
)

func (s providerState) String() string {
	switch s {
	case stateHealthy:
		return "HEALTHY"
	case stateDegraded:
		return "DEGRADED"
	case stateUnhealthy:
		return "UNHEALTHY"
	case stateOpen:
		return "CIRCUIT_OPEN"
	}
	return "UNKNOWN"
}

const latencyWindow = 100

// callStats keeps request outcomes and a rolling latency window of one provider.
type callStats struct {
	total        atomic.Int64
	ok           atomic.Int64
	failed       atomic.Int64
	latencySumMs atomic.Int64
	failStreak   atomic.Int32

	mu      sync.Mutex
	window  [latencyWindow]int64
	next    int
	samples int
}

func (s *callStats) success(latencyMs int64) {
	s.total.Add(1)
	s.ok.Add(1)
	s.latencySumMs.Add(latencyMs)
	s.failStreak.Store(0)

	s.mu.Lock()
	s.window[s.next] = latencyMs
	s.next = (s.next + 1) % latencyWindow
	if s.samples < latencyWindow {
		s.samples++
	}
	s.mu.Unlock()
}

func (s *callStats) failure() int32 {
	s.total.Add(1)
	s.failed.Add(1)
	return s.failStreak.Add(1)
}

func (s *callStats) successRate() float64 {
	total := s.total.Load()
	if total == 0 {
		return 1
	}
	return float64(s.ok.Load()) / float64(total)
}

func (s *callStats) avgLatencyMs() int64 {
	ok := s.ok.Load()
	if ok == 0 {
		return 0
	}
	return s.latencySumMs.Load() / ok
}

func (s *callStats) p95LatencyMs() int64 {
	s.mu.Lock()
	sorted := append([]int64(nil), s.window[:s.samples]...)
	s.mu.Unlock()
	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	i := int(float64(len(sorted)) * 0.95)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

type provider struct {
	name      string
	url       string
	weight    int
	client    *fasthttp.Client
	stats     callStats
	state     atomic.Int32
	openUntil atomic.Int64
}

func (p *provider) getState() providerState {
	return providerState(p.state.Load())
}

func (p *provider) setState(s providerState) {
	p.state.Store(int32(s))
}

// available half-opens a tripped circuit once its timeout passed.
func (p *provider) available(now time.Time) bool {
	switch p.getState() {
	case stateOpen:
		if now.UnixMilli() < p.openUntil.Load() {
			return false
		}
		p.setState(stateDegraded)
		return true
	case stateUnhealthy:
		return false
	}
	return true
}

// score ranks available providers: success rate and latency dominate, the
// configured weight breaks ties, a failure streak and degradation cut it down.
func (p *provider) score(now time.Time) float64 {
	if !p.available(now) {
		return 0
	}
	latency := 100.0
	if avg := p.stats.avgLatencyMs(); avg > 0 {
		latency = 100 * (1 - float64(avg)/5000)
		if latency < 0 {
			latency = 0
		}
	}
	streak := 1 - float64(p.stats.failStreak.Load())*0.1
	if streak < 0.1 {
		streak = 0.1
	}
	s := (p.stats.successRate()*100*0.4 + latency*0.4 + float64(p.weight)*0.2) * streak
	if p.getState() == stateDegraded {
		s *= 0.5
	}
	return s
}

type ProviderConfig struct {
	Name   string
	URL    string
	Weight int
}

type SMSConfig struct {
	Providers        []ProviderConfig
	Timeout          time.Duration
	MaxAttempts      int
	RetryDelay       time.Duration
	MaxConns         int
	HealthInterval   time.Duration
	BreakerThreshold int32
	BreakerTimeout   time.Duration
	// Dial overrides the transport, tests point it at an in-memory listener.
	Dial fasthttp.DialFunc
}

// SMSConfigFor builds the default client settings for the given provider URLs,
// weighting earlier ones higher.
func SMSConfigFor(urls []string) *SMSConfig {
	c := &SMSConfig{
		Timeout:          5 * time.Second,
		MaxAttempts:      3,
		RetryDelay:       200 * time.Millisecond,
		MaxConns:         256,
		HealthInterval:   30 * time.Second,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
	for i, u := range urls {
		c.Providers = append(c.Providers, ProviderConfig{
			Name:   fmt.Sprintf("provider-%d", i+1),
			URL:    u,
			Weight: 100 - i*10,
		})
	}
	return c
}

// SMSClient sends SMS and WhatsApp messages through the best scoring
// provider, failing over on transport errors.
type SMSClient struct {
	config    *SMSConfig
	providers []*provider
	now       func() time.Time

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewSMSClient(config *SMSConfig) (*SMSClient, error) {
	if config == nil {
		return nil, errors.New("sms config is required")
	}
	if len(config.Providers) == 0 {
		return nil, errors.New("at least one sms provider is required")
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	c := &SMSClient{
		config: config,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	for _, pc := range config.Providers {
		c.providers = append(c.providers, &provider{
			name:   pc.Name,
			url:    pc.URL,
			weight: pc.Weight,
			client: &fasthttp.Client{
				MaxConnsPerHost:     config.MaxConns,
				ReadTimeout:         config.Timeout,
				WriteTimeout:        config.Timeout,
				MaxIdleConnDuration: time.Minute,
				Dial:                config.Dial,
			},
		})
		logger.Info("[sms] provider registered", "name", pc.Name, "url", pc.URL, "weight", pc.Weight)
	}

	if config.HealthInterval > 0 {
		c.wg.Add(1)
		go c.healthLoop()
	}
	return c, nil
}

func (c *SMSClient) pick() (*provider, error) {
	now := c.now()
	var best *provider
	var bestScore float64
	for _, p := range c.providers {
		if s := p.score(now); s > bestScore {
			best, bestScore = p, s
		}
	}
	if best == nil {
		return nil, ErrNoProvider
	}
	return best, nil
}

// SendSMS returns the provider's verdict. An error means no provider gave
// one, so the caller may retry later.
func (c *SMSClient) SendSMS(ctx context.Context, req *SMSRequest) (*SMSResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode sms request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		p, err := c.pick()
		if err != nil {
			lastErr = err
			continue
		}

		start := time.Now()
		raw, err := c.do(ctx, p, fasthttp.MethodPost, pathSend, body)
		if err != nil {
			c.tripIfNeeded(p, p.stats.failure())
			logger.Warn("[sms] provider call failed", "provider", p.name, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		latency := time.Since(start).Milliseconds()
		p.stats.success(latency)

		var res SMSResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", p.name, err)
		}
		logger.Info("[sms] handed to provider",
			"message_id", req.MessageID,
			"channel", req.Channel,
			"status", string(res.Status),
			"provider", p.name,
			"latency_ms", latency,
		)
		return &res, nil
	}
	return nil, fmt.Errorf("sms not sent after %d attempts: %w", c.config.MaxAttempts, lastErr)
}

// Status asks the best provider for the delivery state of messageID.
func (c *SMSClient) Status(ctx context.Context, messageID string) (*SMSResult, error) {
	p, err := c.pick()
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, p, fasthttp.MethodGet, pathStatus+messageID, nil)
	if err != nil {
		return nil, err
	}
	var res SMSResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode %s status: %w", p.name, err)
	}
	return &res, nil
}

// do accepts 200 and 202. The provider answers 202 for messages it took but
// could not deliver.
func (c *SMSClient) do(ctx context.Context, p *provider, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := p.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	switch code := resp.StatusCode(); code {
	case fasthttp.StatusOK, fasthttp.StatusAccepted:
	default:
		return nil, fmt.Errorf("%s answered %d: %s", p.name, code, resp.Body())
	}
	return append([]byte(nil), resp.Body()...), nil
}

func (c *SMSClient) tripIfNeeded(p *provider, streak int32) {
	if c.config.BreakerThreshold <= 0 || streak < c.config.BreakerThreshold {
		return
	}
	p.setState(stateOpen)
	p.openUntil.Store(c.now().Add(c.config.BreakerTimeout).UnixMilli())
	logger.Warn("[sms] circuit opened", "provider", p.name, "failures", streak, "for", c.config.BreakerTimeout)
}

func (c *SMSClient) healthLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkHealth()
		case <-c.stop:
			return
		}
	}
}

// checkHealth probes every provider and re-ranks them on their stats. An open
// circuit is left to time out on its own.
func (c *SMSClient) checkHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	for _, p := range c.providers {
		old := p.getState()
		if old == stateOpen {
			continue
		}
		next := stateHealthy
		switch {
		case !c.healthy(ctx, p):
			next = stateUnhealthy
		case p.stats.successRate() < 0.8 || p.stats.avgLatencyMs() > 5000:
			next = stateDegraded
		}
		if next != old {
			p.setState(next)
			logger.Info("[sms] provider state changed", "provider", p.name, "from", old.String(), "to", next.String())
		}
	}
}

func (c *SMSClient) healthy(ctx context.Context, p *provider) bool {
	raw, err := c.do(ctx, p, fasthttp.MethodGet, pathHealth, nil)
	if err != nil {
		return false
	}
	var h struct {
		Status string `json:"status"`
	}
	return json.Unmarshal(raw, &h) == nil && h.Status == "healthy"
}

type ProviderStats struct {
	Name         string  `json:"name"`
	State        string  `json:"state"`
	Score        float64 `json:"score"`
	Requests     int64   `json:"requests"`
	Failed       int64   `json:"failed"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	P95LatencyMs int64   `json:"p95_latency_ms"`
}

// Stats lists providers best first.
func (c *SMSClient) Stats() []ProviderStats {
	now := c.now()
	out := make([]ProviderStats, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, ProviderStats{
			Name:         p.name,
			State:        p.getState().String(),
			Score:        p.score(now),
			Requests:     p.stats.total.Load(),
			Failed:       p.stats.failed.Load(),
			SuccessRate:  p.stats.successRate(),
			AvgLatencyMs: p.stats.avgLatencyMs(),
			P95LatencyMs: p.stats.p95LatencyMs(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (c *SMSClient) Close() error {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
	return nil
}
