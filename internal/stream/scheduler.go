package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EffectivePeriod is the scheduler's time between two served viewers:
// the capture period shared among n viewers.
func EffectivePeriod(target time.Duration, n int) time.Duration {
	return target / time.Duration(max(1, n))
}

// Scheduler is the consumer task. Each step serves the viewer at the front
// of the registry the latest frame and rotates it to the back.
type Scheduler struct {
	reg    *Registry
	store  *FrameStore
	target time.Duration

	parker *Parker
	pace   pacer

	stats *Stats
	log   *zerolog.Logger
}

// Run serves viewers until ctx is done. On exit every registered viewer is
// closed.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.closeAll()

	if err := s.store.WaitFirst(ctx); err != nil {
		return nil
	}
	s.log.Info().Msg("First frame available, scheduler running")

	for {
		n := s.reg.Len()
		if n == 0 {
			s.log.Debug().Msg("Registry empty, scheduler parked")
			if err := s.parker.Park(ctx); err != nil {
				return nil
			}
			s.pace.reset()
			s.log.Debug().Int("viewers", s.reg.Len()).Msg("Scheduler resumed")
			continue
		}

		period := EffectivePeriod(s.target, n)
		s.step()

		if err := s.pace.wait(ctx, period); err != nil {
			return nil
		}
	}
}

// step serves one viewer
func (s *Scheduler) step() {
	v, ok := s.reg.PopFront()
	if !ok {
		return
	}

	if !v.Alive() {
		s.drop(v, nil)
		return
	}

	snap, ok := s.store.ReadSnapshot()
	if !ok {
		s.reg.Requeue(v)
		return
	}
	err := v.WriteFrame(snap.Data)
	snap.Release()
	if err != nil {
		s.drop(v, err)
		return
	}

	s.stats.Served.Add(1)
	s.reg.Requeue(v)
}

func (s *Scheduler) drop(v Viewer, cause error) {
	s.reg.Discard()
	v.Close()
	s.stats.Disconnected.Add(1)

	ev := s.log.Info().Str("viewer", v.ID()).Int("viewers", s.reg.Len())
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Msg("Viewer dropped")
}

func (s *Scheduler) closeAll() {
	for _, v := range s.reg.Drain() {
		v.Close()
	}
}
