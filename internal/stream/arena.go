package stream

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrFrameTooLarge means a frame slot could not grow to hold a captured
// frame. It is fatal: the pipeline stops and the device is restarted.
var ErrFrameTooLarge = errors.New("frame exceeds slot limit")

// slot is one preallocated frame buffer. It is written only by the
// CaptureLoop and only while it is neither the published slot nor leased.
type slot struct {
	buf    []byte
	size   atomic.Int64 // mirrors cap(buf) for status readers
	leases atomic.Int32
}

// ensure grows the slot to hold size bytes. Growth goes to a third over
// the requested size, clamped to limit; the buffer never shrinks. A slot
// that cannot reach a quarter of headroom under limit is too large.
func (s *slot) ensure(size, limit int) error {
	if size > limit {
		return fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, size, limit)
	}
	if size <= len(s.buf) {
		return nil
	}

	grown := size + (size+2)/3
	if grown > limit {
		grown = limit
	}
	if grown < size+size/4 {
		return fmt.Errorf("%w: %d bytes leaves no headroom under %d", ErrFrameTooLarge, size, limit)
	}
	s.buf = make([]byte, grown)
	s.size.Store(int64(grown))
	return nil
}

func (s *slot) leased() bool {
	return s.leases.Load() > 0
}

// arena is the fixed set of frame slots, indexed by generation.
type arena struct {
	slots []*slot
}

func newArena(n, initial int) *arena {
	a := &arena{slots: make([]*slot, n)}
	for i := range a.slots {
		s := &slot{buf: make([]byte, initial)}
		s.size.Store(int64(initial))
		a.slots[i] = s
	}
	return a
}

// at returns the slot that holds generation gen
func (a *arena) at(gen uint64) *slot {
	return a.slots[gen%uint64(len(a.slots))]
}

func (a *arena) capacities() []int {
	out := make([]int, len(a.slots))
	for i, s := range a.slots {
		out[i] = int(s.size.Load())
	}
	return out
}
