package stream

import (
	"context"
	"sync"
)

// Parker is the idle/active switch of a long-lived task.
//
// Park blocks the calling task until another goroutine calls Unpark or ctx is
// cancelled. An Unpark that arrives while the task is still running is kept
// as a pending token and consumed by the next Park, so a wakeup racing with
// the decision to park is never lost.
type Parker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	parked bool
	token  bool
}

// NewParker creates an unparked Parker
func NewParker() *Parker {
	p := &Parker{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Park suspends the caller until Unpark or ctx cancellation.
// Returns ctx.Err() when woken by cancellation.
func (p *Parker) Park(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token {
		p.token = false
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.parked = true
	for !p.token && ctx.Err() == nil {
		p.cond.Wait()
	}
	p.parked = false

	if p.token {
		p.token = false
		return nil
	}
	return ctx.Err()
}

// Unpark resumes a parked task, or arms the next Park to return immediately.
// Parked reports false as soon as Unpark returns, before the woken task has
// been scheduled.
func (p *Parker) Unpark() {
	p.mu.Lock()
	p.token = true
	p.parked = false
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Parked reports whether the task is suspended in Park
func (p *Parker) Parked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parked
}
