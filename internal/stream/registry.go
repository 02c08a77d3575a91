package stream

import "sync"

// Viewer is one registered stream connection.
type Viewer interface {
	ID() string
	// Alive probes the peer without blocking for long. A false result
	// means the connection is gone and must be discarded.
	Alive() bool
	// WritePrologue sends the response status line and headers.
	WritePrologue() error
	// WriteFrame sends one multipart part carrying jpeg.
	WriteFrame(jpeg []byte) error
	Close() error
}

// Registry is a bounded FIFO of viewers with rotate-on-success semantics.
//
// A viewer popped by the scheduler still counts against capacity until it
// is requeued or discarded, so Requeue never finds the ring full and an
// acceptor cannot take the place of a viewer that is being served.
type Registry struct {
	mu       sync.Mutex
	ring     []Viewer
	head     int
	queued   int
	inflight int
}

// NewRegistry creates a registry holding at most capacity viewers
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{ring: make([]Viewer, capacity)}
}

// TryEnqueue appends v at the back. Returns false if the registry is full.
func (r *Registry) TryEnqueue(v Viewer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queued+r.inflight >= len(r.ring) {
		return false
	}
	r.push(v)
	return true
}

// PopFront removes the viewer at the front and marks it in flight
func (r *Registry) PopFront() (Viewer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queued == 0 {
		return nil, false
	}
	v := r.ring[r.head]
	r.ring[r.head] = nil
	r.head = (r.head + 1) % len(r.ring)
	r.queued--
	r.inflight++
	return v, true
}

// Requeue appends an in-flight viewer at the back
func (r *Registry) Requeue(v Viewer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inflight--
	r.push(v)
}

// Discard frees the capacity held by an in-flight viewer
func (r *Registry) Discard() {
	r.mu.Lock()
	r.inflight--
	r.mu.Unlock()
}

// Drain removes and returns every queued viewer
func (r *Registry) Drain() []Viewer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Viewer, 0, r.queued)
	for r.queued > 0 {
		out = append(out, r.ring[r.head])
		r.ring[r.head] = nil
		r.head = (r.head + 1) % len(r.ring)
		r.queued--
	}
	return out
}

// Len returns the number of registered viewers, in flight included
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queued + r.inflight
}

// Cap returns the fixed capacity
func (r *Registry) Cap() int {
	return len(r.ring)
}

// Full reports whether TryEnqueue would currently fail
func (r *Registry) Full() bool {
	return r.Len() >= len(r.ring)
}

func (r *Registry) push(v Viewer) {
	r.ring[(r.head+r.queued)%len(r.ring)] = v
	r.queued++
}
