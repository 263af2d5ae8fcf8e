package astiperf

import (
	"sync"
	"time"
)

// DefaultBitrateInterval is used when ProbeBitrateOptions.Interval is not
// provided.
const DefaultBitrateInterval = time.Second

const bitsPerByte = 8

// bitrateSampler periodically drains the byte counter and maintains the
// instant and mean bitrates, independently of data arrival.
type bitrateSampler struct {
	bps      float64
	c        *counter // Bytes since the last tick
	count    uint64   // Samples taken
	interval time.Duration
	m        sync.Mutex // Locks bps and mean
	mean     float64
	window   []float64
}

func newBitrateSampler(c *counter, interval time.Duration, windowSize uint) *bitrateSampler {
	// Create sampler
	s := &bitrateSampler{
		c:        c,
		interval: interval,
	}

	// Allocate window
	if windowSize > 0 {
		s.window = make([]float64, windowSize)
	}
	return s
}

// tick drains the byte counter and folds the resulting bitrate into the mean.
func (s *bitrateSampler) tick(_ time.Time) {
	// Drain byte count
	bytes := s.c.drain()

	// Compute instant bitrate using the configured interval rather than the
	// actual elapsed time
	bps := float64(bytes) * bitsPerByte / s.interval.Seconds()

	// Lock
	s.m.Lock()
	defer s.m.Unlock()

	// Update mean
	if len(s.window) > 0 {
		idx := s.count % uint64(len(s.window))
		s.mean = updateMovingAverage(uint(len(s.window)), s.mean, bps, s.window[idx])
		s.window[idx] = bps
	} else {
		s.mean = updateRunningAverage(s.count+1, bps, s.mean)
	}

	// Publish
	s.bps = bps
	s.count++
}

// snapshot returns the latest instant and mean bitrates.
func (s *bitrateSampler) snapshot() (bps, mean float64) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.bps, s.mean
}
