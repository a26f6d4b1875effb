// Package gate decides whether a timer tick counts as active time.
package gate

import (
	"sync"
	"time"

	"github.com/goodtune/sitetime/internal/clock"
)

// DefaultIdleThreshold is how long without input before a visible page is idle.
const DefaultIdleThreshold = 30 * time.Second

// State is the gate state.
type State int

const (
	Active State = iota
	Idle
	Hidden
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Idle:
		return "idle"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Gate turns activity and visibility signals into a credit decision per tick.
type Gate struct {
	clock         clock.Clock
	idleThreshold time.Duration

	mu        sync.Mutex
	state     State
	lastInput time.Time
}

// New creates a gate in the Active state with the idle timer starting now.
func New(c clock.Clock, idleThreshold time.Duration) *Gate {
	if c == nil {
		c = clock.Real{}
	}
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}
	return &Gate{
		clock:         c,
		idleThreshold: idleThreshold,
		state:         Active,
		lastInput:     c.Now(),
	}
}

// Input records a user input signal (pointer, key, click, scroll).
func (g *Gate) Input() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastInput = g.clock.Now()
	g.state = Active
}

// Hide records that the tracked view lost visibility.
func (g *Gate) Hide() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Hidden
}

// Show records that the tracked view became visible again.
func (g *Gate) Show() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastInput = g.clock.Now()
	g.state = Active
}

// State returns the current state, applying the idle transition if due.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.evaluate()
}

// Credited reports whether a tick delivered now counts as active time.
func (g *Gate) Credited() bool {
	return g.State() == Active
}

// IdleThreshold returns the configured idle threshold.
func (g *Gate) IdleThreshold() time.Duration {
	return g.idleThreshold
}

// evaluate must be called with the lock held.
func (g *Gate) evaluate() State {
	if g.state == Active && g.clock.Now().Sub(g.lastInput) > g.idleThreshold {
		g.state = Idle
	}
	return g.state
}
