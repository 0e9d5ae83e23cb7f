package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/lending-admin/internal/config"
	"github.com/nimasrn/lending-admin/internal/queue"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/prom"
	"github.com/nimasrn/lending-admin/pkg/redis"
	"github.com/nimasrn/lending-admin/pkg/worker"
)

// Handler processes one stream entry and is told when an entry gave up.
type Handler interface {
	Process(ctx context.Context, d *queue.Delivery) error
	Exhausted(ctx context.Context, d *queue.Delivery)
}

type DispatcherConfig struct {
	Stream         queue.Config
	Consumers      int
	Workers        int
	ProcessTimeout time.Duration
	ReportInterval time.Duration
	// LagWarning logs a warning when more entries than this are pending.
	LagWarning int64
}

func DispatcherConfigFrom(c *config.Config) DispatcherConfig {
	return DispatcherConfig{
		Stream: queue.Config{
			Stream:        c.QueueName,
			Group:         c.QueueConsumerGroup,
			Consumer:      c.QueueConsumerName,
			MaxDeliveries: int64(c.QueueMaxRetries),
			ClaimAfter:    c.QueueVisibilityTimeout,
			PollInterval:  c.QueuePollInterval,
			BatchSize:     c.QueueBatchSize,
			MaxLen:        c.QueueMaxLen,
			DeadLetter:    c.QueueEnableDLQ,
		},
		Consumers:      c.DispatcherConsumers,
		Workers:        c.DispatcherWorkers,
		ProcessTimeout: c.QueueVisibilityTimeout,
		ReportInterval: 30 * time.Second,
		LagWarning:     10_000,
	}
}

// Dispatcher runs several stream consumers that hand entries to a bounded
// worker pool and wait for the verdict before acking.
type Dispatcher struct {
	adapter redis.RedisAdapter
	config  DispatcherConfig
	handler Handler
	stats   *dispatchStats
	pool    *worker.WorkerManager
	streams []*queue.Stream

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(adapter redis.RedisAdapter, config DispatcherConfig, handler Handler) *Dispatcher {
	if config.Consumers < 1 {
		config.Consumers = 1
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.ProcessTimeout <= 0 {
		config.ProcessTimeout = 30 * time.Second
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		adapter: adapter,
		config:  config,
		handler: handler,
		stats:   newDispatchStats(),
		pool:    worker.NewWorkerManager(config.Workers*4, config.Workers, nil),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (d *Dispatcher) Start() error {
	logger.Info("[dispatcher] starting", "stream", d.config.Stream.Stream, "consumers", d.config.Consumers, "workers", d.config.Workers)

	d.pool.SetWorker(d.work)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.pool.Start(d.ctx); err != nil && !errors.Is(err, worker.ErrStopped) {
			logger.Error("[dispatcher] worker pool stopped", "error", err)
		}
	}()

	for i := 0; i < d.config.Consumers; i++ {
		cfg := d.config.Stream
		cfg.Consumer = fmt.Sprintf("%s-%d", cfg.Consumer, i)

		s, err := queue.New(d.adapter, cfg)
		if err != nil {
			d.Stop()
			return fmt.Errorf("consumer %d: %w", i, err)
		}
		s.OnExhausted(d.handler.Exhausted)
		if err := s.Consume(d.enqueue); err != nil {
			d.Stop()
			return fmt.Errorf("consumer %d: %w", i, err)
		}
		d.streams = append(d.streams, s)
	}

	d.wg.Add(1)
	go d.reportLoop()
	return nil
}

type job struct {
	delivery *queue.Delivery
	ctx      context.Context
	result   chan error
}

// enqueue is the stream handler. It blocks until a worker settled the entry
// so the stream acks only what was processed.
func (d *Dispatcher) enqueue(ctx context.Context, del *queue.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.ProcessTimeout)
	defer cancel()

	j := &job{delivery: del, ctx: ctx, result: make(chan error, 1)}
	if err := d.pool.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("enqueue %s: %w", del.ID, err)
	}
	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for worker on %s: %w", del.ID, ctx.Err())
	}
}

func (d *Dispatcher) work(_ context.Context, index int, v interface{}) {
	j, ok := v.(*job)
	if !ok {
		logger.Error("[dispatcher] unexpected job type", "worker", index)
		return
	}
	if j.ctx.Err() != nil {
		logger.Warn("[dispatcher] job expired before start", "worker", index, "entry", j.delivery.ID)
		return
	}

	start := time.Now()
	err := d.handler.Process(j.ctx, j.delivery)
	if err != nil {
		d.stats.failure()
	} else {
		d.stats.success(time.Since(start))
	}
	// buffered, never blocks
	j.result <- err
}

func (d *Dispatcher) reportLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.report()
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) report() {
	s := d.stats.snapshot()
	logger.Info("[dispatcher] stats",
		"processed", s.Processed,
		"failed", s.Failed,
		"rate_per_second", s.RatePerSecond,
		"avg_ms", s.AvgDuration.Milliseconds(),
		"buffered", d.pool.GetUnreadCount(),
	)
	if len(d.streams) == 0 {
		return
	}
	// consumers share the stream, one of them reports for all
	st, err := d.streams[0].Stats()
	if err != nil {
		logger.Warn("[dispatcher] stream stats unavailable", "error", err)
		return
	}
	prom.SetStreamBacklog(d.config.Stream.Stream, st.Length, st.Pending)
	if st.Pending > d.config.LagWarning {
		logger.Warn("[dispatcher] stream lagging", "pending", st.Pending, "length", st.Length)
	}
}

func (d *Dispatcher) Stats() StatsSnapshot {
	return d.stats.snapshot()
}

// Stop ends the consumers first, then the pool.
func (d *Dispatcher) Stop() {
	logger.Info("[dispatcher] stopping")

	var wg sync.WaitGroup
	for i, s := range d.streams {
		wg.Add(1)
		go func(i int, s *queue.Stream) {
			defer wg.Done()
			if err := s.Stop(d.config.ProcessTimeout + 5*time.Second); err != nil {
				logger.Error("[dispatcher] consumer stop failed", "consumer", i, "error", err)
			}
		}(i, s)
	}
	wg.Wait()

	d.cancel()
	d.pool.Exit()
	d.wg.Wait()
	d.report()
	logger.Info("[dispatcher] stopped")
}
