// Package session owns one analysis run end to end: the active supply, the
// classifier, the rep counter and the checkpoint state all live on an
// explicit Session object rather than ambient globals. The session is also
// the only place a supply swap is sequenced, which is what keeps rep counts
// consistent when the data source changes mid-stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idvorkin/swing-analyzer-sub004/internal/config"
	"github.com/idvorkin/swing-analyzer-sub004/internal/phase"
	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
	"github.com/idvorkin/swing-analyzer-sub004/internal/rep"
	"github.com/idvorkin/swing-analyzer-sub004/internal/skeleton"
	"github.com/idvorkin/swing-analyzer-sub004/internal/supply"
)

// SupplyMode names where the session's frames currently come from.
type SupplyMode int

const (
	ModeNone SupplyMode = iota
	ModeLive
	ModeLiveCache
	ModeSealed
)

func (m SupplyMode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeLiveCache:
		return "live_cache"
	case ModeSealed:
		return "sealed"
	default:
		return "none"
	}
}

// SupplyTransitionError reports a supply swap that targeted an incompatible
// stream while a rep was in progress. The session applies the default
// policy (reset to Idle, logged warning) and surfaces this so the caller
// knows counting restarted.
type SupplyTransitionError struct {
	From          supply.Identity
	To            supply.Identity
	Mode          SupplyMode
	SealedReps    int
	InProgress    bool
	LastVideoTime float64
}

func (e *SupplyTransitionError) Error() string {
	return fmt.Sprintf(
		"session: supply swap to incompatible stream (hash %q -> %q, mode %s): reset %d sealed reps, in-progress=%v at %.4fs",
		e.From.SourceVideoHash, e.To.SourceVideoHash, e.Mode,
		e.SealedReps, e.InProgress, e.LastVideoTime)
}

// seeker is implemented by sources that can fast-forward to continue a
// logical stream (SealedSource).
type seeker interface {
	Seek(afterIndex int) error
}

// Session drives one exercise analysis over one logical stream.
type Session struct {
	id         string
	cfg        *config.Config
	exercise   config.Exercise
	classifier *phase.Classifier
	counter    *rep.Counter

	mu             sync.Mutex
	source         supply.Source
	mode           SupplyMode
	lastFrameIndex int
	frames         uint64
	gaps           uint64
	seqErrors      uint64
}

// Option adjusts session construction.
type Option func(*Session)

// WithSealedHook forwards each sealed rep to fn (e.g. the MQTT emitter).
func WithSealedHook(fn func(*rep.Rep)) Option {
	return func(s *Session) {
		s.counter = rep.NewCounter(s.counterConfig(), rep.WithSealedHook(fn))
	}
}

// New builds a session for the configuration's active exercise.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	ex := cfg.ActiveExercise()
	classifier, err := phase.NewClassifier(ex)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s := &Session{
		id:             uuid.NewString(),
		cfg:            cfg,
		exercise:       ex,
		classifier:     classifier,
		lastFrameIndex: -1,
	}
	s.counter = rep.NewCounter(s.counterConfig())
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) counterConfig() rep.CounterConfig {
	return rep.CounterConfig{
		StartPhase:       phase.Phase(s.exercise.StartPhase),
		MinPhaseCoverage: s.exercise.MinPhaseCoverage,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Attach sets the initial supply. Equivalent to Swap from "no data yet":
// the counter starts (or stays) empty, so no compatibility check applies.
func (s *Session) Attach(src supply.Source, mode SupplyMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
	s.mode = mode
	slog.Info("supply attached",
		"session_id", s.id,
		"mode", mode.String(),
		"track_id", src.Identity().TrackID,
	)
}

// Swap atomically replaces the session's supply.
//
// If the new source continues the same logical stream (matching source
// video hash), the counter's state — Idle/InRep plus the in-progress rep
// and its checkpoints — is preserved and the new source is fast-forwarded
// past the last processed frame, so nothing is double-counted. Otherwise
// the counter is reset to Idle with zero sealed reps and a
// *SupplyTransitionError is returned; the session stays usable.
//
// The caller must sequence Swap against Run: the old supply has to be
// drained or abandoned first (Run has returned, or the old supply was
// closed). Swapping while Run is pulling frames would interleave sources.
func (s *Session) Swap(src supply.Source, mode SupplyMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		s.source = src
		s.mode = mode
		return nil
	}

	from := s.source.Identity()
	to := src.Identity()

	if from.Same(to) {
		if sk, ok := src.(seeker); ok && s.lastFrameIndex >= 0 {
			if err := sk.Seek(s.lastFrameIndex); err != nil {
				return fmt.Errorf("session: swap seek: %w", err)
			}
		}
		s.source = src
		s.mode = mode
		slog.Info("supply swapped, stream continues",
			"session_id", s.id,
			"mode", mode.String(),
			"after_frame", s.lastFrameIndex,
			"sealed_reps", s.counter.SealedCount(),
		)
		return nil
	}

	_, inProgress := s.counter.InProgress()
	lastVT, _ := s.counter.LastVideoTime()
	terr := &SupplyTransitionError{
		From:          from,
		To:            to,
		Mode:          mode,
		SealedReps:    s.counter.SealedCount(),
		InProgress:    inProgress,
		LastVideoTime: lastVT,
	}

	slog.Warn("supply swap to different stream, resetting rep state",
		"session_id", s.id,
		"from_hash", from.SourceVideoHash,
		"to_hash", to.SourceVideoHash,
		"discarded_reps", terr.SealedReps,
		"in_progress", inProgress,
	)
	s.counter.Reset()
	s.lastFrameIndex = -1
	s.frames = 0
	s.gaps = 0
	s.seqErrors = 0
	s.source = src
	s.mode = mode
	return terr
}

// Run drains the current supply until it ends. Returns nil when the stream
// was exhausted, supply.ErrCancelled when the producer cancelled, or the
// underlying error. Sequence errors are logged, counted and skipped
// (drop-and-continue); they never corrupt the rep count.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	src := s.source
	mode := s.mode
	s.mu.Unlock()
	if src == nil {
		return fmt.Errorf("session: no supply attached")
	}

	slog.Info("session run started",
		"session_id", s.id,
		"exercise", s.cfg.Exercise,
		"mode", mode.String(),
	)

	statsInterval := time.Duration(s.cfg.StatsIntervalS) * time.Second
	lastLog := time.Now()

	for {
		f, err := src.Next(ctx)
		switch {
		case errors.Is(err, supply.ErrEndOfStream):
			s.logStats("session stream exhausted")
			return nil
		case errors.Is(err, supply.ErrCancelled):
			s.logStats("session stream cancelled")
			return supply.ErrCancelled
		case err != nil:
			slog.Error("session stream failed", "session_id", s.id, "error", err)
			return err
		}

		s.processFrame(f)

		if time.Since(lastLog) >= statsInterval {
			s.logStats("session stats")
			lastLog = time.Now()
		}
	}
}

// processFrame runs one frame through skeleton → classifier → counter.
func (s *Session) processFrame(f pose.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++

	skel := skeleton.New(f, skeleton.WithMinScore(s.cfg.MinKeypointScore))
	p := s.classifier.Classify(skel)
	if p == phase.None {
		// Data gap: recovered locally, never raised to the caller.
		s.gaps++
	}

	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	err := s.counter.Observe(rep.Observation{
		FrameIndex: f.Index,
		VideoTime:  f.VideoTime,
		Timestamp:  ts,
		Phase:      p,
		Skeleton:   skel,
	})
	if err != nil {
		var seqErr *rep.SequenceError
		if errors.As(err, &seqErr) {
			s.seqErrors++
			slog.Warn("out-of-order frame dropped",
				"session_id", s.id,
				"frame_index", seqErr.FrameIndex,
				"video_time", seqErr.VideoTime,
				"last_video_time", seqErr.LastVideoTime,
				"state", seqErr.State.String(),
			)
			return
		}
		slog.Error("observation rejected", "session_id", s.id, "error", err)
		return
	}
	s.lastFrameIndex = f.Index
}

func (s *Session) logStats(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, inProgress := s.counter.InProgress()
	slog.Info(msg,
		"session_id", s.id,
		"mode", s.mode.String(),
		"frames", s.frames,
		"gaps", s.gaps,
		"sequence_errors", s.seqErrors,
		"sealed_reps", s.counter.SealedCount(),
		"in_progress", inProgress,
		"last_frame", s.lastFrameIndex,
	)
}

// SealedReps returns the completed reps so far.
func (s *Session) SealedReps() []*rep.Rep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter.SealedReps()
}

// SealedCount returns the number of completed reps.
func (s *Session) SealedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter.SealedCount()
}

// InProgress returns the currently-forming rep, if any. It is not included
// in SealedCount until its cycle completes.
func (s *Session) InProgress() (*rep.Rep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter.InProgress()
}

// Mode returns the current supply mode.
func (s *Session) Mode() SupplyMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}
