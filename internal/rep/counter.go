package rep

import "github.com/idvorkin/swing-analyzer-sub004/internal/phase"

// State is the counter's position in the rep cycle.
type State int

const (
	// Idle means no rep is in progress.
	Idle State = iota
	// InRep means a partial cycle is being tracked.
	InRep
)

func (s State) String() string {
	if s == InRep {
		return "in_rep"
	}
	return "idle"
}

// CounterConfig declares the exercise's cycle rules.
type CounterConfig struct {
	// StartPhase begins a rep on first entry and seals one on re-entry.
	StartPhase phase.Phase

	// MinPhaseCoverage is the number of distinct non-start phases that must
	// have been visited before a start-phase re-entry seals the rep.
	// Re-entries below this coverage are folded into the current rep.
	MinPhaseCoverage int
}

// Counter is the repetition state machine. It consumes phase observations
// in timestamp order and seals a Rep each time the exercise's cycle
// completes. Completion immediately seeds the next rep from the same
// observation, so no frame is lost between reps.
type Counter struct {
	cfg CounterConfig

	state   State
	current *Rep
	sealed  []*Rep

	lastVideoTime float64
	haveLast      bool

	// onSealed, when set, is invoked synchronously for each sealed rep.
	onSealed func(*Rep)
}

// CounterOption adjusts Counter construction.
type CounterOption func(*Counter)

// WithSealedHook registers a callback invoked once per sealed rep, in seal
// order, from the Observe call that sealed it.
func WithSealedHook(fn func(*Rep)) CounterOption {
	return func(c *Counter) { c.onSealed = fn }
}

// NewCounter returns an Idle counter with zero sealed reps.
func NewCounter(cfg CounterConfig, opts ...CounterOption) *Counter {
	if cfg.MinPhaseCoverage < 1 {
		cfg.MinPhaseCoverage = 1
	}
	c := &Counter{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe feeds one phase observation to the state machine.
//
// Returns a *SequenceError when the observation's video time is not
// strictly after the previous one; the counter's state is untouched in that
// case and the caller may drop the frame and continue. Observations with
// Phase == phase.None are transition no-ops: they advance the ordering
// watermark but never reset an in-progress rep.
func (c *Counter) Observe(obs Observation) error {
	if c.haveLast && obs.VideoTime <= c.lastVideoTime {
		return &SequenceError{
			FrameIndex:    obs.FrameIndex,
			VideoTime:     obs.VideoTime,
			LastVideoTime: c.lastVideoTime,
			State:         c.state,
		}
	}
	c.lastVideoTime = obs.VideoTime
	c.haveLast = true

	if obs.Phase == phase.None {
		return nil
	}

	switch c.state {
	case Idle:
		if obs.Phase == c.cfg.StartPhase {
			c.begin(obs)
		}

	case InRep:
		if obs.Phase == c.current.lastPhase() {
			// Dwell within a phase; only the transition matters.
			return nil
		}
		if obs.Phase == c.cfg.StartPhase &&
			c.current.coverage(c.cfg.StartPhase) >= c.cfg.MinPhaseCoverage {
			c.seal()
			// The sealing observation is also the next rep's start.
			c.begin(obs)
			return nil
		}
		c.current.record(obs)
	}
	return nil
}

func (c *Counter) begin(obs Observation) {
	c.current = newRep(len(c.sealed)+1, obs)
	c.state = InRep
}

func (c *Counter) seal() {
	c.current.sealed = true
	c.sealed = append(c.sealed, c.current)
	if c.onSealed != nil {
		c.onSealed(c.current)
	}
	c.current = nil
	c.state = Idle
}

// State returns Idle or InRep.
func (c *Counter) State() State { return c.state }

// SealedCount returns the number of completed reps. The currently-forming
// rep is not counted until sealed.
func (c *Counter) SealedCount() int { return len(c.sealed) }

// SealedReps returns the completed reps in seal order.
func (c *Counter) SealedReps() []*Rep { return c.sealed }

// InProgress returns the currently-forming rep, if any.
func (c *Counter) InProgress() (*Rep, bool) {
	return c.current, c.current != nil
}

// LastVideoTime returns the ordering watermark: the video time of the most
// recent accepted observation.
func (c *Counter) LastVideoTime() (float64, bool) {
	return c.lastVideoTime, c.haveLast
}

// Reset discards all rep state and returns the counter to Idle with zero
// sealed reps. Used when a supply swap targets an incompatible stream.
func (c *Counter) Reset() {
	c.state = Idle
	c.current = nil
	c.sealed = nil
	c.lastVideoTime = 0
	c.haveLast = false
}
