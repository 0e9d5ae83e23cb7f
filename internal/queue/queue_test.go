package queue

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/lending-admin/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	// unique connection name per test, adapters are cached by name
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func testConfig(name string) Config {
	return Config{
		Stream:        name,
		Group:         "dispatchers",
		Consumer:      "dispatcher-test",
		MaxDeliveries: 3,
		ClaimAfter:    5 * time.Second,
		PollInterval:  50 * time.Millisecond,
		BatchSize:     10,
		MaxLen:        1000,
		DeadLetter:    true,
	}
}

func TestStream_PublishAndConsume(t *testing.T) {
	_, adapter := setupTestRedis(t)

	s, err := New(adapter, testConfig("communications"))
	require.NoError(t, err)
	defer s.Stop(time.Second)

	before := time.Now().Add(-time.Second)
	_, err = s.PublishJSON(context.Background(), map[string]int64{"id": 42}, map[string]string{"channel": "SMS"})
	require.NoError(t, err)

	received := make(chan *Delivery, 1)
	require.NoError(t, s.Consume(func(ctx context.Context, d *Delivery) error {
		received <- d
		return nil
	}))

	select {
	case d := <-received:
		var job map[string]int64
		require.NoError(t, json.Unmarshal(d.Data, &job))
		assert.Equal(t, int64(42), job["id"])
		assert.Equal(t, "SMS", d.Meta["channel"])
		assert.Equal(t, int64(1), d.Deliveries)
		assert.True(t, d.PublishedAt.After(before))
	case <-time.After(2 * time.Second):
		t.Fatal("delivery not received")
	}

	require.Eventually(t, func() bool {
		st, err := s.Stats()
		return err == nil && st.Pending == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStream_FailedEntryIsRedelivered(t *testing.T) {
	_, adapter := setupTestRedis(t)

	cfg := testConfig("communications:retry")
	cfg.ClaimAfter = 150 * time.Millisecond
	s, err := New(adapter, cfg)
	require.NoError(t, err)
	defer s.Stop(time.Second)

	_, err = s.Publish(context.Background(), []byte(`{"id":1}`), nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []int64
	require.NoError(t, s.Consume(func(ctx context.Context, d *Delivery) error {
		mu.Lock()
		seen = append(seen, d.Deliveries)
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			return assert.AnError
		}
		return nil
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int64{1, 2}, seen[:2])
	mu.Unlock()
}

func TestStream_ExhaustedEntryMovesToDeadLetter(t *testing.T) {
	_, adapter := setupTestRedis(t)

	cfg := testConfig("communications:exhaust")
	cfg.ClaimAfter = 100 * time.Millisecond
	cfg.MaxDeliveries = 2
	s, err := New(adapter, cfg)
	require.NoError(t, err)
	defer s.Stop(time.Second)

	_, err = s.Publish(context.Background(), []byte(`{"id":9}`), map[string]string{"channel": "EMAIL"})
	require.NoError(t, err)

	var calls atomic.Int64
	exhausted := make(chan *Delivery, 1)
	s.OnExhausted(func(ctx context.Context, d *Delivery) {
		exhausted <- d
	})
	require.NoError(t, s.Consume(func(ctx context.Context, d *Delivery) error {
		calls.Add(1)
		return assert.AnError
	}))

	select {
	case d := <-exhausted:
		assert.Equal(t, int64(3), d.Deliveries)
		assert.JSONEq(t, `{"id":9}`, string(d.Data))
	case <-time.After(3 * time.Second):
		t.Fatal("entry never exhausted")
	}
	assert.Equal(t, int64(2), calls.Load())

	require.Eventually(t, func() bool {
		n, err := adapter.XLen(s.DeadLetterName())
		return err == nil && n == 1
	}, 2*time.Second, 20*time.Millisecond)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Pending)
}

func TestDelivery_AckNack(t *testing.T) {
	_, adapter := setupTestRedis(t)

	s, err := New(adapter, testConfig("communications:ack"))
	require.NoError(t, err)
	defer s.Stop(time.Second)

	t.Run("ack", func(t *testing.T) {
		id, err := s.Publish(context.Background(), []byte(`{}`), nil)
		require.NoError(t, err)

		d := &Delivery{ID: id, stream: s}
		assert.NoError(t, d.Ack())
		assert.True(t, d.acked)

		err = d.Ack()
		assert.ErrorContains(t, err, "already acknowledged")
		assert.ErrorContains(t, d.Nack(), "already acknowledged")
	})

	t.Run("nack", func(t *testing.T) {
		d := &Delivery{ID: "1-0", stream: s}
		assert.NoError(t, d.Nack())
		assert.True(t, d.nacked)
		assert.ErrorContains(t, d.Nack(), "already rejected")
		assert.ErrorContains(t, d.Ack(), "already rejected")
	})
}

func TestNew(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := New(adapter, Config{})
	assert.Error(t, err)

	first, err := New(adapter, testConfig("communications:group"))
	require.NoError(t, err)
	defer first.Stop(time.Second)

	// the group already exists the second time
	second, err := New(adapter, testConfig("communications:group"))
	require.NoError(t, err)
	defer second.Stop(time.Second)

	s, err := New(adapter, Config{Stream: "defaults"})
	require.NoError(t, err)
	defer s.Stop(time.Second)
	assert.Equal(t, int64(3), s.config.MaxDeliveries)
	assert.Equal(t, 30*time.Second, s.config.ClaimAfter)
	assert.Equal(t, "default-group", s.config.Group)
}

func TestStream_ConcurrentPublish(t *testing.T) {
	_, adapter := setupTestRedis(t)

	s, err := New(adapter, testConfig("communications:concurrent"))
	require.NoError(t, err)
	defer s.Stop(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := s.PublishJSON(context.Background(), map[string]int{"id": id}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Length)
}

func TestStream_Stop(t *testing.T) {
	_, adapter := setupTestRedis(t)

	s, err := New(adapter, testConfig("communications:stop"))
	require.NoError(t, err)

	require.NoError(t, s.Consume(func(ctx context.Context, d *Delivery) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}))
	assert.NoError(t, s.Stop(2*time.Second))
	assert.Error(t, s.Consume(nil))
}
