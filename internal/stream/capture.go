package stream

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Source produces JPEG frames. The frame passed to fn is borrowed and only
// valid until fn returns.
type Source interface {
	Capture(ctx context.Context, fn func(jpeg []byte) error) error
}

var errSlotLeased = errors.New("target slot leased")

// CaptureLoop is the producer task. Each cycle it captures one frame into
// the slot after the published one, waits for the next tick and publishes.
type CaptureLoop struct {
	src      Source
	store    *FrameStore
	arena    *arena
	period   time.Duration
	maxBytes int

	parker   *Parker
	consumer *Parker
	pace     pacer

	stats *Stats
	log   *zerolog.Logger
}

// Run cycles until ctx is done or a fatal error occurs
func (c *CaptureLoop) Run(ctx context.Context) error {
	c.log.Info().Dur("period", c.period).Msg("Capture loop started")
	defer c.log.Info().Msg("Capture loop stopped")

	for {
		if err := c.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *CaptureLoop) cycle(ctx context.Context) error {
	target := c.arena.at(c.store.Generation() + 1)

	var length int
	err := c.src.Capture(ctx, func(frame []byte) error {
		if target.leased() {
			return errSlotLeased
		}
		if err := target.ensure(len(frame), c.maxBytes); err != nil {
			return err
		}
		length = copy(target.buf, frame)
		return nil
	})

	switch {
	case err == nil:
		c.stats.Captured.Add(1)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ErrFrameTooLarge):
		c.log.Error().Err(err).Msg("Frame slot cannot grow")
		return err
	case errors.Is(err, errSlotLeased):
		c.stats.Dropped.Add(1)
		c.log.Debug().Msg("Slot still being served, frame dropped")
	default:
		c.stats.CaptureErrors.Add(1)
		c.log.Warn().Err(err).Msg("Capture failed")
	}

	runtime.Gosched()
	if err := c.pace.wait(ctx, c.period); err != nil {
		return err
	}

	if length > 0 {
		gen := c.store.Publish(target, length)
		c.stats.Published.Add(1)
		c.log.Debug().Uint64("generation", gen).Int("bytes", length).Msg("Frame published")
	}

	if c.consumer.Parked() {
		c.log.Debug().Msg("No viewers, capture parked")
		if err := c.parker.Park(ctx); err != nil {
			return err
		}
		c.pace.reset()
		c.log.Debug().Msg("Capture resumed")
	}
	return nil
}
