package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/redis"
)

const (
	fieldData      = "data"
	fieldPublished = "published_at"
	metaPrefix     = "meta_"
)

// Delivery is one read of a stream entry by this consumer.
type Delivery struct {
	ID          string
	Data        []byte
	Meta        map[string]string
	PublishedAt time.Time
	// Deliveries counts how many times the group handed this entry out,
	// this read included.
	Deliveries int64

	acked  bool
	nacked bool
	stream *Stream
}

// Ack removes the entry from the group's pending list.
func (d *Delivery) Ack() error {
	if d.acked {
		return fmt.Errorf("delivery %s already acknowledged", d.ID)
	}
	if d.nacked {
		return fmt.Errorf("delivery %s already rejected", d.ID)
	}
	d.acked = true
	return d.stream.ack(d.ID)
}

// Nack leaves the entry pending so a consumer claims it after ClaimAfter.
func (d *Delivery) Nack() error {
	if d.acked {
		return fmt.Errorf("delivery %s already acknowledged", d.ID)
	}
	if d.nacked {
		return fmt.Errorf("delivery %s already rejected", d.ID)
	}
	d.nacked = true
	return nil
}

// Handler processes a delivery. A nil return acks it, an error leaves it
// pending for redelivery.
type Handler func(ctx context.Context, d *Delivery) error

// ExhaustedFunc is told about an entry that ran out of deliveries, right
// before it moves to the dead letter stream.
type ExhaustedFunc func(ctx context.Context, d *Delivery)

type Config struct {
	Stream        string
	Group         string
	Consumer      string
	MaxDeliveries int64
	// ClaimAfter is how long an entry may stay pending with a consumer before
	// another one claims it. It also bounds a single handler call.
	ClaimAfter   time.Duration
	PollInterval time.Duration
	BatchSize    int64
	MaxLen       int64
	DeadLetter   bool
}

func (c *Config) defaults() error {
	if c.Stream == "" {
		return fmt.Errorf("stream name is required")
	}
	if c.Group == "" {
		c.Group = "default-group"
	}
	if c.Consumer == "" {
		c.Consumer = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 3
	}
	if c.ClaimAfter <= 0 {
		c.ClaimAfter = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	return nil
}

// Stream is a redis stream with one consumer group. A single Stream value
// publishes and, once Consume is called, reads as one named consumer.
type Stream struct {
	adapter   redis.RedisAdapter
	config    Config
	handler   Handler
	exhausted ExhaustedFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
}

type Stats struct {
	Length    int64
	Pending   int64
	Consumers int64
}

func New(adapter redis.RedisAdapter, config Config) (*Stream, error) {
	if err := config.defaults(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		adapter:  adapter,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]struct{}),
	}
	if err := adapter.XGroupCreateMkStream(config.Stream, config.Group, "0"); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		cancel()
		return nil, fmt.Errorf("create consumer group %s: %w", config.Group, err)
	}
	return s, nil
}

func (s *Stream) Name() string {
	return s.config.Stream
}

// OnExhausted registers the callback for entries that exceed MaxDeliveries.
func (s *Stream) OnExhausted(fn ExhaustedFunc) {
	s.exhausted = fn
}

func (s *Stream) Publish(ctx context.Context, data []byte, meta map[string]string) (string, error) {
	values := map[string]interface{}{
		fieldData:      string(data),
		fieldPublished: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	for k, v := range meta {
		values[metaPrefix+k] = v
	}

	id, err := s.adapter.XAdd(s.config.Stream, values)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", s.config.Stream, err)
	}
	if s.config.MaxLen > 0 {
		if err := s.adapter.XTrimApprox(s.config.Stream, s.config.MaxLen); err != nil {
			logger.Warn("[queue] trim failed", "stream", s.config.Stream, "error", err)
		}
	}
	return id, nil
}

func (s *Stream) PublishJSON(ctx context.Context, v interface{}, meta map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return s.Publish(ctx, data, meta)
}

// Consume starts the read loop in the background. Stop ends it.
func (s *Stream) Consume(h Handler) error {
	if h == nil {
		return fmt.Errorf("handler is required")
	}
	s.handler = h
	s.wg.Add(1)
	go s.loop()
	return nil
}

func (s *Stream) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.readNew()
			s.claimStale()
		}
	}
}

func (s *Stream) readNew() {
	entries, err := s.adapter.XReadGroup(s.config.Group, s.config.Consumer, s.config.Stream, ">", s.config.BatchSize)
	if err != nil {
		if err != redis.NilError {
			logger.Error("[queue] read failed", "stream", s.config.Stream, "consumer", s.config.Consumer, "error", err)
		}
		return
	}
	for _, e := range entries {
		d := s.toDelivery(e)
		d.Deliveries = 1
		s.handle(d)
	}
}

// claimStale takes over entries idle longer than ClaimAfter. The delivery
// count comes from the pending list, so retries survive consumer restarts.
func (s *Stream) claimStale() {
	pending, err := s.adapter.XPendingExt(s.config.Stream, s.config.Group, "-", "+", 100)
	if err != nil {
		if err != redis.NilError {
			logger.Warn("[queue] pending scan failed", "stream", s.config.Stream, "error", err)
		}
		return
	}

	counts := make(map[string]int64)
	var ids []string
	for _, p := range pending {
		if p.Idle < s.config.ClaimAfter {
			continue
		}
		counts[p.ID] = p.RetryCount
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return
	}

	entries, err := s.adapter.XClaim(s.config.Stream, s.config.Group, s.config.Consumer, s.config.ClaimAfter, ids...)
	if err != nil {
		logger.Warn("[queue] claim failed", "stream", s.config.Stream, "error", err)
		return
	}
	for _, e := range entries {
		d := s.toDelivery(e)
		d.Deliveries = counts[e.ID] + 1
		s.handle(d)
	}
}

func (s *Stream) handle(d *Delivery) {
	s.mu.Lock()
	if _, busy := s.inFlight[d.ID]; busy {
		s.mu.Unlock()
		return
	}
	s.inFlight[d.ID] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, d.ID)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.config.ClaimAfter)
	defer cancel()

	if d.Deliveries > s.config.MaxDeliveries {
		if s.exhausted != nil {
			s.exhausted(ctx, d)
		}
		s.deadLetter(d)
		if err := s.ack(d.ID); err != nil {
			logger.Error("[queue] ack exhausted entry failed", "stream", s.config.Stream, "id", d.ID, "error", err)
		}
		return
	}

	if err := s.handler(ctx, d); err != nil {
		logger.Warn("[queue] handler failed, entry stays pending",
			"stream", s.config.Stream,
			"id", d.ID,
			"deliveries", d.Deliveries,
			"error", err,
		)
		return
	}
	if d.acked || d.nacked {
		return
	}
	if err := s.ack(d.ID); err != nil {
		logger.Error("[queue] ack failed", "stream", s.config.Stream, "id", d.ID, "error", err)
	}
}

func (s *Stream) ack(id string) error {
	return s.adapter.XAck(s.config.Stream, s.config.Group, id)
}

func (s *Stream) deadLetter(d *Delivery) {
	if !s.config.DeadLetter {
		return
	}
	values := map[string]interface{}{
		fieldData:     string(d.Data),
		"original_id": d.ID,
		"deliveries":  d.Deliveries,
		"failed_at":   strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	for k, v := range d.Meta {
		values[metaPrefix+k] = v
	}
	if _, err := s.adapter.XAdd(s.DeadLetterName(), values); err != nil {
		logger.Error("[queue] dead letter write failed", "stream", s.config.Stream, "id", d.ID, "error", err)
	}
}

func (s *Stream) DeadLetterName() string {
	return s.config.Stream + ":dlq"
}

func (s *Stream) toDelivery(e redis.StreamMessage) *Delivery {
	d := &Delivery{
		ID:     e.ID,
		Meta:   make(map[string]string),
		stream: s,
	}
	for k, v := range e.Values {
		str, _ := v.(string)
		switch {
		case k == fieldData:
			d.Data = []byte(str)
		case k == fieldPublished:
			if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
				d.PublishedAt = time.UnixMilli(ms)
			}
		case strings.HasPrefix(k, metaPrefix):
			d.Meta[k[len(metaPrefix):]] = str
		}
	}
	if d.PublishedAt.IsZero() {
		d.PublishedAt = time.Now()
	}
	return d
}

// Stop cancels the read loop and waits up to timeout for it to finish the
// entry in hand.
func (s *Stream) Stop(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("stream %s: timed out waiting for consumer to stop", s.config.Stream)
	}
}

func (s *Stream) Stats() (*Stats, error) {
	length, err := s.adapter.XLen(s.config.Stream)
	if err != nil {
		return nil, err
	}
	st := &Stats{Length: length}
	if p, err := s.adapter.XPending(s.config.Stream, s.config.Group); err == nil && p != nil {
		st.Pending = p.Count
		st.Consumers = int64(len(p.Consumers))
	}
	return st, nil
}
