package stream

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrRegistryFull is returned by Accept when the viewer could not be
// registered. The viewer has already received the prologue and is left open.
var ErrRegistryFull = errors.New("viewer registry full")

// Acceptor registers new viewers and wakes the pipeline
type Acceptor struct {
	reg *Registry
	// consumer before producer: the capture loop re-parks if it resumes
	// while the scheduler still reports parked.
	wake []*Parker
	log  *zerolog.Logger
}

// Accept sends v the stream prologue and enqueues it. On success every
// parked task is resumed. On ErrRegistryFull the caller owns v.
func (a *Acceptor) Accept(v Viewer) error {
	if err := v.WritePrologue(); err != nil {
		v.Close()
		return fmt.Errorf("failed to write prologue: %w", err)
	}

	if !a.reg.TryEnqueue(v) {
		a.log.Warn().Str("viewer", v.ID()).Int("capacity", a.reg.Cap()).Msg("Registry full, viewer not enqueued")
		return ErrRegistryFull
	}

	for _, p := range a.wake {
		p.Unpark()
	}

	a.log.Info().Str("viewer", v.ID()).Int("viewers", a.reg.Len()).Msg("Viewer registered")
	return nil
}
