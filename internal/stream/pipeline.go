package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/sourcegraph/conc/pool"
)

const initialSlotBytes = 64 << 10

// ErrPipelineStopped is returned by Accept once Run has returned. The
// viewer has received nothing and is left to the caller to close.
var ErrPipelineStopped = errors.New("pipeline stopped")

// Stats are the pipeline's running counters
type Stats struct {
	Captured      atomic.Uint64
	Published     atomic.Uint64
	Dropped       atomic.Uint64
	CaptureErrors atomic.Uint64
	Served        atomic.Uint64
	Disconnected  atomic.Uint64
}

// Status is a point-in-time view of the pipeline
type Status struct {
	Viewers         int     `json:"viewers"`
	Capacity        int     `json:"capacity"`
	Generation      uint64  `json:"generation"`
	CaptureParked   bool    `json:"capture_parked"`
	SchedulerParked bool    `json:"scheduler_parked"`
	TargetPeriodMS  float64 `json:"target_period_ms"`
	PeriodMS        float64 `json:"effective_period_ms"`
	SlotBytes       []int   `json:"slot_bytes"`

	Captured      uint64 `json:"captured"`
	Published     uint64 `json:"published"`
	Dropped       uint64 `json:"dropped"`
	CaptureErrors uint64 `json:"capture_errors"`
	Served        uint64 `json:"served"`
	Disconnected  uint64 `json:"disconnected"`
}

// Pipeline wires one camera to the capture loop, the scheduler and the
// acceptor.
type Pipeline struct {
	store    *FrameStore
	reg      *Registry
	arena    *arena
	capture  *CaptureLoop
	sched    *Scheduler
	acceptor *Acceptor
	stats    *Stats
	target   time.Duration

	running atomic.Bool

	// mu orders Accept against the final drain in Run
	mu      sync.RWMutex
	stopped bool
}

// New builds a pipeline around src. Nothing runs until Run is called.
func New(src Source, cfg config.StreamConfig) *Pipeline {
	target := cfg.TargetPeriod()
	stats := &Stats{}
	store := NewFrameStore()
	reg := NewRegistry(cfg.Capacity)
	ar := newArena(max(2, cfg.Slots), min(initialSlotBytes, cfg.MaxFrameBytes))

	captureParker := NewParker()
	schedParker := NewParker()

	p := &Pipeline{
		store:  store,
		reg:    reg,
		arena:  ar,
		stats:  stats,
		target: target,
	}
	p.capture = &CaptureLoop{
		src:      src,
		store:    store,
		arena:    ar,
		period:   target,
		maxBytes: cfg.MaxFrameBytes,
		parker:   captureParker,
		consumer: schedParker,
		stats:    stats,
		log:      logger.WithComponent("capture"),
	}
	p.sched = &Scheduler{
		reg:    reg,
		store:  store,
		target: target,
		parker: schedParker,
		stats:  stats,
		log:    logger.WithComponent("scheduler"),
	}
	p.acceptor = &Acceptor{
		reg:  reg,
		wake: []*Parker{schedParker, captureParker},
		log:  logger.WithComponent("acceptor"),
	}
	return p
}

// Run runs the capture loop and the scheduler until ctx is done or one of
// them fails. A non-nil error is fatal.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pipeline already running")
	}
	defer p.running.Store(false)
	p.mu.Lock()
	p.stopped = false
	p.mu.Unlock()
	defer p.stop()

	log := logger.WithComponent("pipeline")
	log.Info().
		Dur("target_period", p.target).
		Int("capacity", p.reg.Cap()).
		Int("slots", len(p.arena.slots)).
		Msg("Pipeline starting")

	tasks := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	tasks.Go(p.capture.Run)
	tasks.Go(p.sched.Run)

	err := tasks.Wait()
	if err != nil {
		log.Error().Err(err).Msg("Pipeline failed")
		return err
	}
	log.Info().Msg("Pipeline stopped")
	return nil
}

// stop refuses further viewers and closes any that were enqueued after
// the scheduler drained the registry.
func (p *Pipeline) stop() {
	p.mu.Lock()
	p.stopped = true
	late := p.reg.Drain()
	p.mu.Unlock()

	for _, v := range late {
		v.Close()
	}
}

// Accept registers a viewer. See Acceptor.Accept. Once Run has returned it
// fails with ErrPipelineStopped.
func (p *Pipeline) Accept(v Viewer) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPipelineStopped
	}
	return p.acceptor.Accept(v)
}

// Full reports whether a new viewer would be rejected
func (p *Pipeline) Full() bool {
	return p.reg.Full()
}

// Status returns the current state and counters
func (p *Pipeline) Status() Status {
	n := p.reg.Len()
	return Status{
		Viewers:         n,
		Capacity:        p.reg.Cap(),
		Generation:      p.store.Generation(),
		CaptureParked:   p.capture.parker.Parked(),
		SchedulerParked: p.sched.parker.Parked(),
		TargetPeriodMS:  durationMS(p.target),
		PeriodMS:        durationMS(EffectivePeriod(p.target, n)),
		SlotBytes:       p.arena.capacities(),
		Captured:        p.stats.Captured.Load(),
		Published:       p.stats.Published.Load(),
		Dropped:         p.stats.Dropped.Load(),
		CaptureErrors:   p.stats.CaptureErrors.Load(),
		Served:          p.stats.Served.Load(),
		Disconnected:    p.stats.Disconnected.Load(),
	}
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
