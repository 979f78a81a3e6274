package sdgyro

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/itsOwen/SteamDeckMotion/internal/monitoring"
)

// maxGapWindow bounds the per-interval gap sample window. At 250 Hz a one
// minute interval produces ~15000 consumed frames.
const maxGapWindow = 32768

// FrameStats accumulates frame-flow counters and the observed increment gaps
// between consumed frames, and periodically logs a summary.
type FrameStats struct {
	mu         sync.Mutex
	gaps       []float64
	consumed   uint64
	replicated uint64
	repeated   uint64
}

func NewFrameStats() *FrameStats {
	return &FrameStats{}
}

// AddConsumed records one consumed real frame and its increment delta from
// the previous one.
func (s *FrameStats) AddConsumed(diff int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumed++
	if len(s.gaps) < maxGapWindow {
		s.gaps = append(s.gaps, float64(diff))
	}
}

// AddReplicated records one synthesized sample.
func (s *FrameStats) AddReplicated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replicated++
}

// AddRepeated records one retried duplicate frame.
func (s *FrameStats) AddRepeated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeated++
}

// LogStats emits a summary of the interval and resets the counters.
func (s *FrameStats) LogStats() {
	s.mu.Lock()
	gaps := s.gaps
	consumed, replicated, repeated := s.consumed, s.replicated, s.repeated
	s.gaps = nil
	s.consumed, s.replicated, s.repeated = 0, 0, 0
	s.mu.Unlock()

	if consumed == 0 {
		return
	}

	mean := stat.Mean(gaps, nil)
	stddev := 0.0
	if len(gaps) > 1 {
		stddev = stat.StdDev(gaps, nil)
	}
	monitoring.Logf("MotionAdapter: consumed %d frames (%d replicated, %d repeated), increment gap mean %.2f stddev %.2f",
		consumed, replicated, repeated, mean, stddev)
}

// run logs statistics on the given interval until the context is cancelled.
// An initial report fires shortly after startup so the first interval is not
// silent.
func (s *FrameStats) run(ctx context.Context, interval time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		s.LogStats()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.LogStats()
		}
	}
}
