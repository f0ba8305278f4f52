// Package rep turns an ordered stream of phase observations into completed
// repetitions with per-phase checkpoints. The Counter is the single logical
// consumer of one session's stream: it is not safe for concurrent use and
// never performs I/O inside a transition.
package rep

import (
	"fmt"
	"time"

	"github.com/idvorkin/swing-analyzer-sub004/internal/phase"
	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
	"github.com/idvorkin/swing-analyzer-sub004/internal/skeleton"
)

// Observation is one frame's classification result: timestamp, phase and
// the skeleton it was derived from.
type Observation struct {
	FrameIndex int
	VideoTime  float64
	Timestamp  time.Time
	Phase      phase.Phase
	Skeleton   *skeleton.Skeleton
}

// Checkpoint is an immutable snapshot captured the first time a phase is
// observed within a rep: the triggering frame's image and angles, stamped
// with both wall-clock and video-relative time.
type Checkpoint struct {
	Phase           phase.Phase
	Pixels          *pose.PixelBuffer
	SpineAngle      float64
	ArmToSpineAngle float64
	CapturedAt      time.Time
	VideoTime       float64
	FrameIndex      int
}

// Rep is one repetition cycle, identified by a 1-based sequence number. It
// owns its checkpoints exclusively; a phase with no checkpoint is a normal,
// recorded state, not an error.
type Rep struct {
	Number int

	startVideoTime float64
	endVideoTime   float64
	startedAt      time.Time
	sealed         bool

	history     []phase.Phase
	checkpoints map[phase.Phase]*Checkpoint
}

func newRep(number int, obs Observation) *Rep {
	r := &Rep{
		Number:         number,
		startVideoTime: obs.VideoTime,
		endVideoTime:   obs.VideoTime,
		startedAt:      obs.Timestamp,
		checkpoints:    make(map[phase.Phase]*Checkpoint),
	}
	r.record(obs)
	return r
}

// record appends a phase transition and captures its checkpoint if this is
// the phase's first occurrence within the rep (first-observed wins).
func (r *Rep) record(obs Observation) {
	r.history = append(r.history, obs.Phase)
	r.endVideoTime = obs.VideoTime
	if _, exists := r.checkpoints[obs.Phase]; exists {
		return
	}
	cp := &Checkpoint{
		Phase:      obs.Phase,
		CapturedAt: obs.Timestamp,
		VideoTime:  obs.VideoTime,
		FrameIndex: obs.FrameIndex,
	}
	if obs.Skeleton != nil {
		cp.SpineAngle = obs.Skeleton.SpineAngle()
		cp.ArmToSpineAngle = obs.Skeleton.ArmToSpineAngle()
		cp.Pixels = obs.Skeleton.Frame().Pixels
	}
	r.checkpoints[obs.Phase] = cp
}

// Checkpoint returns the checkpoint captured for p, if any.
func (r *Rep) Checkpoint(p phase.Phase) (*Checkpoint, bool) {
	cp, ok := r.checkpoints[p]
	return cp, ok
}

// Checkpoints returns the phase→checkpoint mapping. Callers must treat it
// as read-only.
func (r *Rep) Checkpoints() map[phase.Phase]*Checkpoint { return r.checkpoints }

// History returns the coalesced phase transitions in observation order.
func (r *Rep) History() []phase.Phase { return r.history }

// Sealed reports whether the rep's cycle has completed.
func (r *Rep) Sealed() bool { return r.sealed }

// StartedAt returns the wall-clock time of the rep's first observation.
func (r *Rep) StartedAt() time.Time { return r.startedAt }

// Duration returns the video-relative span from the rep's first to its last
// recorded observation.
func (r *Rep) Duration() time.Duration {
	return time.Duration((r.endVideoTime - r.startVideoTime) * float64(time.Second))
}

// lastPhase is the most recently recorded phase.
func (r *Rep) lastPhase() phase.Phase {
	return r.history[len(r.history)-1]
}

// coverage counts distinct non-start phases visited.
func (r *Rep) coverage(start phase.Phase) int {
	seen := make(map[phase.Phase]bool)
	for _, p := range r.history {
		if p != start {
			seen[p] = true
		}
	}
	return len(seen)
}

// SequenceError reports an out-of-order or duplicate timestamp from a
// supply. The caller decides between skip-and-continue (the counter's state
// is untouched) and aborting the stream; frames are never silently
// reordered.
type SequenceError struct {
	FrameIndex    int
	VideoTime     float64
	LastVideoTime float64
	State         State
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf(
		"rep: out-of-order observation at frame %d: video time %.4fs not after %.4fs (state %s)",
		e.FrameIndex, e.VideoTime, e.LastVideoTime, e.State)
}
