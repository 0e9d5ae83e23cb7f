// Command provider is a sandbox SMS/WhatsApp provider used in development and
// load tests. It speaks the same JSON as the dispatcher's sms gateway and can
// report late outcomes through the api's webhook endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
	StatusPending   DeliveryStatus = "PENDING"
)

type SendRequest struct {
	MessageID   string `json:"message_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Channel     string `json:"channel"`
	Content     string `json:"content" binding:"required"`
}

type SendResponse struct {
	MessageID   string         `json:"message_id"`
	Status      DeliveryStatus `json:"status"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorMsg    string         `json:"error_message,omitempty"`
	OperatorID  string         `json:"operator_id"`
	ProcessedAt time.Time      `json:"processed_at"`
}

type Settings struct {
	DeliveryRate float64       `json:"delivery_rate"`
	AsyncRate    float64       `json:"async_rate"`
	DownRate     float64       `json:"down_rate"`
	MinDelay     time.Duration `json:"min_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	CallbackURL  string        `json:"callback_url"`
	CallbackKey  string        `json:"-"`
}

var errorCodes = map[string]string{
	"INVALID_NUMBER":    "The phone number is invalid or not in service",
	"NETWORK_ERROR":     "Network connectivity issue with operator",
	"TIMEOUT":           "Delivery timed out",
	"BLOCKED":           "The recipient has blocked messages",
	"INVALID_CONTENT":   "Content violates operator policies",
	"OPERATOR_REJECTED": "Operator rejected the message",
}

var codeList = []string{"INVALID_NUMBER", "NETWORK_ERROR", "TIMEOUT", "BLOCKED", "INVALID_CONTENT", "OPERATOR_REJECTED"}

// Provider keeps the last outcome of every message so status lookups are
// consistent with what was reported.
type Provider struct {
	id string

	mu       sync.Mutex
	settings Settings
	rng      *rand.Rand
	outcomes map[string]*SendResponse

	callbacks *fasthttp.Client
	wg        sync.WaitGroup
}

func NewProvider(s Settings) *Provider {
	return &Provider{
		id:        "SANDBOX_" + uuid.NewString()[:8],
		settings:  s,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		outcomes:  make(map[string]*SendResponse),
		callbacks: &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second},
	}
}

func (p *Provider) roll() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

func (p *Provider) delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.settings.MaxDelay - p.settings.MinDelay
	if d <= 0 {
		return p.settings.MinDelay
	}
	return p.settings.MinDelay + time.Duration(p.rng.Int63n(int64(d)))
}

func (p *Provider) current() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

func (p *Provider) outcome(req *SendRequest, s Settings) *SendResponse {
	res := &SendResponse{MessageID: req.MessageID, OperatorID: p.id, ProcessedAt: time.Now()}
	if p.roll() < s.DeliveryRate {
		now := time.Now()
		res.Status, res.DeliveredAt = StatusDelivered, &now
		return res
	}
	p.mu.Lock()
	code := codeList[p.rng.Intn(len(codeList))]
	p.mu.Unlock()
	res.Status, res.ErrorCode, res.ErrorMsg = StatusFailed, code, errorCodes[code]
	return res
}

func (p *Provider) Send(req *SendRequest) *SendResponse {
	s := p.current()
	time.Sleep(p.delay())

	final := p.outcome(req, s)
	p.mu.Lock()
	p.outcomes[req.MessageID] = final
	p.mu.Unlock()

	if s.CallbackURL == "" || p.roll() >= s.AsyncRate {
		return final
	}
	// answer now, report the outcome later
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		time.Sleep(p.delay())
		p.report(s, final)
	}()
	return &SendResponse{MessageID: req.MessageID, Status: StatusPending, OperatorID: p.id, ProcessedAt: time.Now()}
}

func (p *Provider) report(s Settings, res *SendResponse) {
	body, _ := json.Marshal(map[string]string{
		"event":      "delivery",
		"message_id": res.MessageID,
		"status":     string(res.Status),
		"error":      res.ErrorMsg,
	})
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.CallbackURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Webhook-Token", s.CallbackKey)
	req.SetBody(body)

	if err := p.callbacks.Do(req, resp); err != nil {
		log.Warn().Err(err).Str("message_id", res.MessageID).Msg("callback failed")
		return
	}
	log.Info().
		Str("message_id", res.MessageID).
		Str("status", string(res.Status)).
		Int("callback_status", resp.StatusCode()).
		Msg("delivery reported")
}

func (p *Provider) Status(id string) (*SendResponse, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.outcomes[id]
	return r, ok
}

type Handler struct {
	provider *Provider
}

func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if req.Channel == "" {
		req.Channel = "SMS"
	}
	if req.Channel != "SMS" && req.Channel != "WHATSAPP" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported channel " + req.Channel})
		return
	}

	res := h.provider.Send(&req)
	log.Info().
		Str("message_id", req.MessageID).
		Str("channel", req.Channel).
		Str("phone", req.PhoneNumber).
		Str("status", string(res.Status)).
		Msg("message handled")

	code := http.StatusOK
	if res.Status != StatusDelivered {
		code = http.StatusAccepted
	}
	c.JSON(code, res)
}

func (h *Handler) Status(c *gin.Context) {
	res, ok := h.provider.Status(c.Param("message_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown message"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Health(c *gin.Context) {
	s := h.provider.current()
	if h.provider.roll() < s.DownRate {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"operator_id":   h.provider.id,
		"timestamp":     time.Now(),
		"delivery_rate": s.DeliveryRate,
	})
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var in struct {
		DeliveryRate *float64 `json:"delivery_rate"`
		AsyncRate    *float64 `json:"async_rate"`
		DownRate     *float64 `json:"down_rate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	p := h.provider
	p.mu.Lock()
	for dst, v := range map[*float64]*float64{&p.settings.DeliveryRate: in.DeliveryRate, &p.settings.AsyncRate: in.AsyncRate, &p.settings.DownRate: in.DownRate} {
		if v != nil && *v >= 0 && *v <= 1 {
			*dst = *v
		}
	}
	s := p.settings
	p.mu.Unlock()

	log.Info().Float64("delivery_rate", s.DeliveryRate).Float64("async_rate", s.AsyncRate).Msg("settings updated")
	c.JSON(http.StatusOK, s)
}

func SetupRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})

	v1 := router.Group("/api/v1")
	v1.POST("/sms/send", h.Send)
	v1.GET("/sms/status/:message_id", h.Status)
	v1.PUT("/config", h.UpdateSettings)
	router.GET("/health", h.Health)
	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	gin.SetMode(gin.ReleaseMode)

	port := getEnv("PORT", "8081")
	s := Settings{
		DeliveryRate: getEnvFloat("DELIVERY_RATE", 0.95),
		AsyncRate:    getEnvFloat("ASYNC_RATE", 0),
		DownRate:     getEnvFloat("DOWN_RATE", 0),
		MinDelay:     getEnvDuration("MIN_DELAY", 50*time.Millisecond),
		MaxDelay:     getEnvDuration("MAX_DELAY", 500*time.Millisecond),
		CallbackURL:  os.Getenv("CALLBACK_URL"),
		CallbackKey:  os.Getenv("CALLBACK_TOKEN"),
	}
	log.Info().
		Str("port", port).
		Float64("delivery_rate", s.DeliveryRate).
		Float64("async_rate", s.AsyncRate).
		Str("callback", s.CallbackURL).
		Msg("starting sandbox provider")

	provider := NewProvider(s)
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      SetupRouter(&Handler{provider: provider}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	provider.wg.Wait()
	log.Info().Msg("provider exited")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
