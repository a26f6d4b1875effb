package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/sitetime/internal/clock"
	"github.com/goodtune/sitetime/internal/gate"
	"github.com/goodtune/sitetime/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultTickInterval is how often the recorder samples the gate.
const DefaultTickInterval = time.Second

// SignalType names an activity signal.
type SignalType string

const (
	SignalInput   SignalType = "input"
	SignalHidden  SignalType = "hidden"
	SignalVisible SignalType = "visible"
	SignalFocus   SignalType = "focus"
)

// Signal is an activity or visibility event. Focus carries the domain that
// gained focus.
type Signal struct {
	Type   SignalType `json:"type"`
	Domain string     `json:"domain,omitempty"`
}

// Validate reports whether the signal can be handled.
func (s Signal) Validate() error {
	switch s.Type {
	case SignalInput, SignalHidden, SignalVisible:
		return nil
	case SignalFocus:
		if !validDomain(s.Domain) {
			return fmt.Errorf("focus signal: %w", ErrInvalidDomain)
		}
		return nil
	default:
		return fmt.Errorf("unknown signal type %q", s.Type)
	}
}

// RecorderConfig holds recorder configuration
type RecorderConfig struct {
	Domain        string
	TickInterval  time.Duration
	IdleThreshold time.Duration
	Clock         clock.Clock
}

// Status describes what the recorder is currently doing.
type Status struct {
	Domain         string    `json:"domain"`
	State          string    `json:"state"`
	SessionSeconds int64     `json:"sessionSeconds"`
	StartedAt      time.Time `json:"startedAt"`
}

// Recorder drives the tick loop. Run owns the gate: ticks and signals are
// handled one at a time on its goroutine.
type Recorder struct {
	tracker  *Tracker
	gate     *gate.Gate
	clock    clock.Clock
	interval time.Duration
	seconds  int64
	logger   zerolog.Logger
	signals  chan Signal

	mu             sync.RWMutex
	domain         string
	sessionSeconds int64
	startedAt      time.Time
}

// NewRecorder creates a recorder crediting time to tracker.
func NewRecorder(tracker *Tracker, config RecorderConfig, logger zerolog.Logger) *Recorder {
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}
	if config.TickInterval < time.Second {
		config.TickInterval = DefaultTickInterval
	}

	r := &Recorder{
		tracker:   tracker,
		gate:      gate.New(config.Clock, config.IdleThreshold),
		clock:     config.Clock,
		interval:  config.TickInterval,
		seconds:   int64(config.TickInterval / time.Second),
		logger:    logger.With().Str("component", "recorder").Logger(),
		signals:   make(chan Signal, 64),
		domain:    config.Domain,
		startedAt: config.Clock.Now(),
	}

	tracker.Subscribe(func(ev Event) {
		if ev.Kind == EventCleared {
			r.mu.Lock()
			r.sessionSeconds = 0
			r.mu.Unlock()
		}
	})
	return r
}

// Signal queues an activity signal for the tick loop.
func (r *Recorder) Signal(ctx context.Context, s Signal) error {
	if err := s.Validate(); err != nil {
		return err
	}
	select {
	case r.signals <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().
		Str("domain", r.Domain()).
		Dur("interval", r.interval).
		Dur("idle_threshold", r.gate.IdleThreshold()).
		Msg("Recorder started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().
				Int64("session_seconds", r.Status().SessionSeconds).
				Msg("Recorder stopped")
			return nil
		case s := <-r.signals:
			r.handle(s)
		case <-ticker.C:
			// Persist failures are counted and logged by Tick; keep ticking.
			_, _ = r.Tick(ctx)
		}
	}
}

// Tick evaluates the gate and credits one interval if the gate is active.
func (r *Recorder) Tick(ctx context.Context) (bool, error) {
	state := r.gate.State()
	metrics.TicksTotal.WithLabelValues(state.String()).Inc()
	if state != gate.Active {
		return false, nil
	}

	domain := r.Domain()
	if domain == "" {
		return false, nil
	}

	if err := r.tracker.Apply(ctx, domain, r.clock.Now(), r.seconds); err != nil {
		metrics.PersistFailures.WithLabelValues("apply").Inc()
		r.logger.Error().
			Err(err).
			Str("domain", domain).
			Msg("Failed to persist tick")
		return true, err
	}

	metrics.CreditDomain(domain, r.seconds)
	r.mu.Lock()
	r.sessionSeconds += r.seconds
	r.mu.Unlock()
	return true, nil
}

func (r *Recorder) handle(s Signal) {
	switch s.Type {
	case SignalInput:
		r.gate.Input()
	case SignalHidden:
		r.gate.Hide()
	case SignalVisible:
		r.gate.Show()
	case SignalFocus:
		r.switchDomain(s.Domain)
		r.gate.Show()
	}
}

func (r *Recorder) switchDomain(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if domain == r.domain {
		return
	}

	r.logger.Info().
		Str("from", r.domain).
		Str("to", domain).
		Int64("session_seconds", r.sessionSeconds).
		Msg("Switched tracked domain")

	r.domain = domain
	r.sessionSeconds = 0
	r.startedAt = r.clock.Now()
}

// Domain returns the domain currently credited.
func (r *Recorder) Domain() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.domain
}

// Status returns the current domain, gate state and session time.
func (r *Recorder) Status() Status {
	state := r.gate.State()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		Domain:         r.domain,
		State:          state.String(),
		SessionSeconds: r.sessionSeconds,
		StartedAt:      r.startedAt,
	}
}
