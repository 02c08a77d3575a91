package stream

import (
	"context"
	"sync"
)

// Snapshot is a consistent view of one published frame.
//
// Data stays valid and unchanged until Release is called; the slot behind
// it is leased and the CaptureLoop will not write into it. Release must be
// called exactly once.
type Snapshot struct {
	Data       []byte
	Generation uint64

	slot *slot
}

// Release returns the lease on the snapshot's slot
func (s Snapshot) Release() {
	if s.slot != nil {
		s.slot.leases.Add(-1)
	}
}

// FrameStore holds the descriptor of the most recently published frame.
//
// One mutex guards the (slot, length, generation) triple. It is held for the
// swap in Publish and the copy in ReadSnapshot, never across frame I/O.
type FrameStore struct {
	mu     sync.Mutex
	cur    *slot
	length int
	gen    uint64

	first     chan struct{}
	firstOnce sync.Once
}

// NewFrameStore creates an empty store
func NewFrameStore() *FrameStore {
	return &FrameStore{first: make(chan struct{})}
}

// Publish makes the first length bytes of s the current frame and returns
// its generation. The caller must have finished writing s.
func (f *FrameStore) Publish(s *slot, length int) uint64 {
	f.mu.Lock()
	f.cur = s
	f.length = length
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	f.firstOnce.Do(func() { close(f.first) })
	return gen
}

// ReadSnapshot copies out the current descriptor and leases its slot.
// Returns false if nothing has been published yet.
func (f *FrameStore) ReadSnapshot() (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cur == nil {
		return Snapshot{}, false
	}
	f.cur.leases.Add(1)
	return Snapshot{
		Data:       f.cur.buf[:f.length:f.length],
		Generation: f.gen,
		slot:       f.cur,
	}, true
}

// Generation returns the generation of the current frame, 0 if none
func (f *FrameStore) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

// WaitFirst blocks until the first frame is published or ctx is done
func (f *FrameStore) WaitFirst(ctx context.Context) error {
	select {
	case <-f.first:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
