package astiperf

import "math"

// CPULoadUnknown is the load value carried by a report when the cpu times
// source failed for that cycle.
const CPULoadUnknown uint32 = math.MaxUint32

// CPUTimes holds cumulative cpu tick counters since boot.
type CPUTimes struct {
	Idle  uint64
	Total uint64
}

// CPUTimesFunc returns cumulative cpu tick counters since boot.
type CPUTimesFunc func() (CPUTimes, error)

// cpuEstimator converts consecutive cumulative tick readings into a load
// percentage. The first call only stores the snapshot.
type cpuEstimator struct {
	prev     CPUTimes
	tracking bool
}

func (e *cpuEstimator) update(t CPUTimes) uint32 {
	// First call has no valid delta
	if !e.tracking {
		e.prev = t
		e.tracking = true
		return 0
	}

	// Compute deltas
	idle := t.Idle - e.prev.Idle
	total := t.Total - e.prev.Total

	// Store snapshot
	e.prev = t

	// Avoid zero division
	if total == 0 {
		return 0
	}
	return roundPercent(total-idle, total)
}

// roundPercent returns part/total as a nearest-integer percentage using integer
// arithmetic only.
func roundPercent(part, total uint64) uint32 {
	return uint32((1000*part/total + 5) / 10)
}
