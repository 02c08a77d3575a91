package stream

import (
	"context"
	"time"
)

// pacer sleeps until fixed-rate ticks. Each tick is scheduled from the
// previous tick rather than from when the caller finished its work, so the
// rate does not drift with work duration. Not safe for concurrent use.
type pacer struct {
	next time.Time
}

// wait blocks until the next tick, period after the previous one. If the
// caller has fallen more than a whole period behind, the schedule restarts
// from now instead of firing a burst of catch-up ticks.
func (p *pacer) wait(ctx context.Context, period time.Duration) error {
	now := time.Now()
	if p.next.IsZero() {
		p.next = now
	}
	p.next = p.next.Add(period)

	d := p.next.Sub(now)
	if d <= 0 {
		if -d >= period {
			p.next = now
		}
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// reset drops the schedule; the next wait starts a fresh one. Called after
// a task resumes from idle.
func (p *pacer) reset() {
	p.next = time.Time{}
}
