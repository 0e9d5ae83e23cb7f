package processor

import (
	"sync/atomic"
	"time"
)

// dispatchStats feeds the periodic log summary. Prometheus carries the
// per-channel series.
type dispatchStats struct {
	processed atomic.Int64
	failed    atomic.Int64
	busyNs    atomic.Int64
	since     time.Time
}

type StatsSnapshot struct {
	Processed     int64
	Failed        int64
	RatePerSecond float64
	AvgDuration   time.Duration
	Uptime        time.Duration
}

func newDispatchStats() *dispatchStats {
	return &dispatchStats{since: time.Now()}
}

func (s *dispatchStats) success(d time.Duration) {
	s.processed.Add(1)
	s.busyNs.Add(int64(d))
}

func (s *dispatchStats) failure() {
	s.failed.Add(1)
}

func (s *dispatchStats) snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
		Uptime:    time.Since(s.since),
	}
	if secs := snap.Uptime.Seconds(); secs > 0 {
		snap.RatePerSecond = float64(snap.Processed) / secs
	}
	if snap.Processed > 0 {
		snap.AvgDuration = time.Duration(s.busyNs.Load() / snap.Processed)
	}
	return snap
}
