// Package coach tracks how long a person holds a target pose.
package coach

import (
	"sync"
	"time"

	"github.com/nvr-ai/go-pose/pose"
)

// Defaults used by the live client.
const (
	DefaultPoseThreshold     float32 = 0.97
	DefaultKeypointThreshold float32 = 0.4
	DefaultMaxUndetected             = 4
)

// Gate decides whether a detection contains a usable pose.
type Gate struct {
	KeypointThreshold float32
	MaxUndetected     int
}

// DefaultGate returns the live client gate.
func DefaultGate() Gate {
	return Gate{KeypointThreshold: DefaultKeypointThreshold, MaxUndetected: DefaultMaxUndetected}
}

// Detected reports false when more than MaxUndetected keypoints score at or below KeypointThreshold.
func (g Gate) Detected(p pose.Pose) bool {
	return p.Undetected(g.KeypointThreshold) <= g.MaxUndetected
}

// State is the tracker snapshot after a frame.
type State struct {
	Target      string        `json:"target"`
	Probability float32       `json:"probability"`
	Holding     bool          `json:"holding"`
	Hold        time.Duration `json:"hold"`
	Best        time.Duration `json:"best"`
}

// Tracker measures the current and best hold time of a target class.
type Tracker struct {
	mu        sync.Mutex
	target    string
	threshold float32
	now       func() time.Time

	holding bool
	start   time.Time
	hold    time.Duration
	best    time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker returns a tracker for target that counts frames above threshold as holding.
func NewTracker(target string, threshold float32, opts ...Option) *Tracker {
	t := &Tracker{target: target, threshold: threshold, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Target returns the tracked class.
func (t *Tracker) Target() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// SetTarget switches the tracked class. Hold and best times restart when the class changes.
func (t *Tracker) SetTarget(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if target == t.target {
		return
	}
	t.target = target
	t.holding = false
	t.hold = 0
	t.best = 0
}

// Observe records one classified frame. probs is indexed like classNames.
func (t *Tracker) Observe(classNames []string, probs []float32) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	var p float32
	for i, name := range classNames {
		if name == t.target && i < len(probs) {
			p = probs[i]
			break
		}
	}

	if p > t.threshold {
		now := t.now()
		if !t.holding {
			t.holding = true
			t.start = now
		}
		t.hold = now.Sub(t.start)
		if t.hold > t.best {
			t.best = t.hold
		}
	} else {
		t.holding = false
		t.hold = 0
	}
	return t.state(p)
}

// Miss records a frame without a usable pose.
func (t *Tracker) Miss() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.holding = false
	t.hold = 0
	return t.state(0)
}

func (t *Tracker) state(p float32) State {
	return State{
		Target:      t.target,
		Probability: p,
		Holding:     t.holding,
		Hold:        t.hold,
		Best:        t.best,
	}
}
