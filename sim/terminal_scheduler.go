package sim

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// RotationMode selects how the TerminalScheduler picks the next active terminal.
type RotationMode string

const (
	// RotationFixed advances to the next terminal in ring order.
	RotationFixed RotationMode = "fixed"
	// RotationLoadAware jumps to the terminal with the strictly greatest pending load,
	// scanning from the current terminal so that it wins ties.
	RotationLoadAware RotationMode = "load-aware"
)

var validRotationModes = map[RotationMode]bool{
	RotationFixed:     true,
	RotationLoadAware: true,
	"":                true, // empty defaults to fixed
}

// IsValidRotationMode returns true if mode is a recognized rotation mode.
func IsValidRotationMode(mode string) bool {
	return validRotationModes[RotationMode(mode)]
}

// Terminal is one slot of the rotation ring.
type Terminal struct {
	Name        string
	PendingLoad int
}

// RotationEvent is an immutable entry of the rotation log.
type RotationEvent struct {
	Tick int64
	From string
	To   string
	Load int // pending load of To at rotation time
}

// TerminalScheduler rotates the active terminal over a fixed ring.
// The ring is a slice addressed modulo its length; membership never changes after
// Initialize.
type TerminalScheduler struct {
	ring     []Terminal
	active   int
	interval int
	counter  int
	mode     RotationMode
	history  []RotationEvent
}

// NewTerminalScheduler creates an uninitialized scheduler that rotates every
// interval ticks. Fails with INVALID_ARGUMENT on interval < 1 or an unknown mode.
func NewTerminalScheduler(interval int, mode RotationMode) (*TerminalScheduler, error) {
	if interval < 1 {
		return nil, NewInvalidArgument(fmt.Sprintf("rotation interval must be >= 1, got %d", interval))
	}
	if !IsValidRotationMode(string(mode)) {
		return nil, NewInvalidArgument(fmt.Sprintf("unknown rotation mode %q", mode))
	}
	if mode == "" {
		mode = RotationFixed
	}
	logrus.Debugf("terminal scheduler created with rotation interval %d (%s)", interval, mode)
	return &TerminalScheduler{interval: interval, mode: mode}, nil
}

// Initialize builds the ring from names and activates the first entry.
// Fails with INVALID_ARGUMENT on an empty list or any blank name.
func (ts *TerminalScheduler) Initialize(names []string) error {
	if len(names) == 0 {
		return NewInvalidArgument("terminal list must not be empty")
	}
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return NewInvalidArgument(fmt.Sprintf("blank terminal name at index %d", i))
		}
	}
	ring := make([]Terminal, len(names))
	for i, name := range names {
		ring[i] = Terminal{Name: name}
	}
	ts.ring = ring
	ts.active = 0
	ts.counter = 0
	logrus.Infof("terminal ring initialized: %s", strings.Join(names, " -> "))
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (ts *TerminalScheduler) Initialized() bool { return len(ts.ring) > 0 }

// Current returns the active terminal; ok is false if the scheduler was never initialized.
func (ts *TerminalScheduler) Current() (name string, ok bool) {
	if !ts.Initialized() {
		logrus.Warn("terminal scheduler not initialized")
		return "", false
	}
	return ts.ring[ts.active].Name, true
}

// UpdatePendingLoad sets the cached load of every ring slot named terminal.
// Unknown terminals are ignored with a warning.
func (ts *TerminalScheduler) UpdatePendingLoad(terminal string, count int) {
	found := false
	for i := range ts.ring {
		if ts.ring[i].Name == terminal {
			ts.ring[i].PendingLoad = count
			found = true
		}
	}
	if !found {
		logrus.Warnf("terminal %q not found, pending load ignored", terminal)
	}
}

// Tick advances the interval counter and rotates when it reaches the interval.
// Returns true if a rotation happened.
func (ts *TerminalScheduler) Tick(globalTick int64) bool {
	if !ts.Initialized() {
		logrus.Warn("terminal scheduler not initialized, skipping rotation")
		return false
	}
	ts.counter++
	if ts.counter < ts.interval {
		return false
	}
	ts.counter = 0

	from := ts.ring[ts.active].Name
	ts.active = ts.next()
	to := ts.ring[ts.active]
	ts.history = append(ts.history, RotationEvent{Tick: globalTick, From: from, To: to.Name, Load: to.PendingLoad})
	logrus.Debugf("[tick %07d] terminal change: %s -> %s (pending=%d)", globalTick, from, to.Name, to.PendingLoad)
	return true
}

func (ts *TerminalScheduler) next() int {
	n := len(ts.ring)
	if ts.mode != RotationLoadAware {
		return (ts.active + 1) % n
	}
	best := ts.active
	for i := 1; i < n; i++ {
		idx := (ts.active + i) % n
		if ts.ring[idx].PendingLoad > ts.ring[best].PendingLoad {
			best = idx
		}
	}
	return best
}

// Mode returns the rotation mode.
func (ts *TerminalScheduler) Mode() RotationMode { return ts.mode }

// Interval returns the rotation interval in ticks.
func (ts *TerminalScheduler) Interval() int { return ts.interval }

// Terminals returns a copy of the ring in structural order.
func (ts *TerminalScheduler) Terminals() []Terminal {
	return append([]Terminal(nil), ts.ring...)
}

// History returns a copy of the rotation log, oldest first.
func (ts *TerminalScheduler) History() []RotationEvent {
	return append([]RotationEvent(nil), ts.history...)
}
