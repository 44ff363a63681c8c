package audio

import (
	"math"
	"sync/atomic"
)

// levelCell is a single-slot last-write-wins handoff for the live
// amplitude estimate. The capture callback publishes, the UI polls;
// neither side ever waits and intermediate values may be dropped.
type levelCell struct {
	bits atomic.Uint32
}

func (l *levelCell) publish(v float32) {
	l.bits.Store(math.Float32bits(v))
}

func (l *levelCell) value() float32 {
	return math.Float32frombits(l.bits.Load())
}
