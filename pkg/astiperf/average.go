package astiperf

// updateRunningAverage folds sample into the cumulative average. count must be
// the number of samples including this one. A zero count returns 0.
func updateRunningAverage(count uint64, sample, average float64) float64 {
	if count == 0 {
		return 0
	}
	return (float64(count-1)*average + sample) / float64(count)
}

// updateMovingAverage replaces evicted with sample in the window average. A zero
// size returns 0. Slots never written yet evict 0, which biases the average
// toward zero until the window has filled once.
func updateMovingAverage(size uint, average, sample, evicted float64) float64 {
	if size == 0 {
		return 0
	}
	return (average*float64(size) - evicted + sample) / float64(size)
}
