package astiperf

import "sync/atomic"

// counter accumulates a value on the data path and is drained on an independent
// schedule. Operations never block.
type counter struct {
	v uint64
}

func (c *counter) add(n uint64) {
	atomic.AddUint64(&c.v, n)
}

// drain returns the accumulated value and resets it to zero atomically.
func (c *counter) drain() uint64 {
	return atomic.SwapUint64(&c.v, 0)
}
