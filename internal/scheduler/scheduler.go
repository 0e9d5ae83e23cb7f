// Package scheduler runs periodic jobs on every api replica while making sure
// only one replica executes a given tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/nimasrn/lending-admin/pkg/logger"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

type JobFunc func(ctx context.Context) error

type Options struct {
	// LockPrefix is prepended to the job name to build the redis lock key.
	LockPrefix string
	// LockTTL bounds how long a crashed replica keeps a job locked.
	LockTTL time.Duration
	// Timeout cancels a single run.
	Timeout time.Duration
}

func (o *Options) defaults() {
	if o.LockPrefix == "" {
		o.LockPrefix = "cron:"
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 5 * time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = o.LockTTL
	}
}

type Scheduler struct {
	cron    *cron.Cron
	sync    *redsync.Redsync
	options Options

	mu   sync.Mutex
	jobs map[string]JobFunc

	ctx    context.Context
	cancel context.CancelFunc
}

func New(client goredislib.UniversalClient, options Options) *Scheduler {
	options.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	l := cronLogger{}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		sync:    redsync.New(goredis.NewPool(client)),
		options: options,
		jobs:    make(map[string]JobFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name for the given cron spec ("@every 15m",
// "0 2 * * *", ...).
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _, _ = s.run(s.ctx, name, fn) }); err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}
	s.jobs[name] = fn
	logger.Info("[scheduler] job registered", "job", name, "spec", spec)
	return nil
}

// RunNow executes a registered job immediately under the same lock. The
// boolean is false when another replica held the lock.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("job %q not registered", name)
	}
	return s.run(ctx, name, fn)
}

func (s *Scheduler) run(ctx context.Context, name string, fn JobFunc) (bool, error) {
	mutex := s.sync.NewMutex(s.options.LockPrefix+name,
		redsync.WithExpiry(s.options.LockTTL),
		redsync.WithTries(1),
	)
	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			logger.Debug("[scheduler] job locked by another replica", "job", name)
			return false, nil
		}
		logger.Error("[scheduler] lock failed", "job", name, "error", err)
		return false, err
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			logger.Warn("[scheduler] unlock failed", "job", name, "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.options.Timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		logger.Error("[scheduler] job failed", "job", name, "error", err, "took", time.Since(start).String())
		return true, err
	}
	logger.Info("[scheduler] job done", "job", name, "took", time.Since(start).String())
	return true, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("[cron] "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("[cron] "+msg, append(keysAndValues, "error", err)...)
}
