package session_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idvorkin/swing-analyzer-sub004/internal/config"
	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
	"github.com/idvorkin/swing-analyzer-sub004/internal/rep"
	"github.com/idvorkin/swing-analyzer-sub004/internal/session"
	"github.com/idvorkin/swing-analyzer-sub004/internal/supply"
	"github.com/idvorkin/swing-analyzer-sub004/internal/track"
)

// leanFrame builds a frame whose hips sit at (100,200) and whose shoulder
// midpoint is rotated spineDeg away from vertical, yielding that exact
// spine angle.
func leanFrame(i int, spineDeg float64) pose.Frame {
	const (
		hipX, hipY = 100.0, 200.0
		torso      = 100.0
	)
	rad := spineDeg * math.Pi / 180
	sx := hipX + torso*math.Sin(rad)
	sy := hipY - torso*math.Cos(rad)
	kp := func(name string, x, y float64) pose.Keypoint {
		return pose.Keypoint{Name: name, X: x, Y: y, Score: 0.9}
	}
	return pose.Frame{
		Index:     i,
		VideoTime: float64(i) / 30,
		Keypoints: []pose.Keypoint{
			kp("left_shoulder", sx-10, sy),
			kp("right_shoulder", sx+10, sy),
			kp("left_hip", hipX-10, hipY),
			kp("right_hip", hipX+10, hipY),
		},
	}
}

// swingCycle is one full swing as spine angles: top, connect, bottom,
// release. A following top seals the rep.
var swingCycle = []float64{10, 50, 70, 40}

// swingFrames produces reps complete swing cycles plus the sealing top.
func swingFrames(reps int) []pose.Frame {
	var out []pose.Frame
	i := 0
	for r := 0; r < reps; r++ {
		for _, deg := range swingCycle {
			out = append(out, leanFrame(i, deg))
			i++
		}
	}
	out = append(out, leanFrame(i, 10))
	return out
}

func trackOf(t *testing.T, frames []pose.Frame) *track.Track {
	t.Helper()
	tr := track.New(track.Metadata{SourceVideoHash: "hash-A", SourceVideoName: "a.mp4", FPS: 30})
	for _, f := range frames {
		require.NoError(t, tr.Append(track.RecordOf(f)))
	}
	tr.Seal()
	return tr
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(config.Default())
	require.NoError(t, err)
	return s
}

func TestRunWithoutSupplyFails(t *testing.T) {
	s := newSession(t)
	assert.Error(t, s.Run(context.Background()))
}

func TestSealedReplayCountsReps(t *testing.T) {
	tr := trackOf(t, swingFrames(3))
	src, err := supply.NewSealedSource(tr, nil)
	require.NoError(t, err)

	s := newSession(t)
	s.Attach(src, session.ModeSealed)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 3, s.SealedCount())
	_, inProgress := s.InProgress()
	assert.True(t, inProgress, "the sealing top starts rep 4")
}

func TestCachedAndSealedRunsAgree(t *testing.T) {
	frames := swingFrames(2)
	tr := trackOf(t, frames)

	// Sealed replay.
	sealedSrc, err := supply.NewSealedSource(tr, nil)
	require.NoError(t, err)
	sealed := newSession(t)
	sealed.Attach(sealedSrc, session.ModeSealed)
	require.NoError(t, sealed.Run(context.Background()))

	// Same frames through the streaming cache.
	cache := supply.NewLiveCache(sealedSrc.Identity())
	for _, f := range frames {
		cache.Append(f)
	}
	cache.CloseExhausted()
	cached := newSession(t)
	cached.Attach(cache, session.ModeLiveCache)
	require.NoError(t, cached.Run(context.Background()))

	require.Equal(t, sealed.SealedCount(), cached.SealedCount())
	a, b := sealed.SealedReps(), cached.SealedReps()
	for i := range a {
		assert.Equal(t, a[i].History(), b[i].History(), "rep %d history", i+1)
		for _, p := range a[i].History() {
			ca, okA := a[i].Checkpoint(p)
			cb, okB := b[i].Checkpoint(p)
			require.Equal(t, okA, okB)
			assert.Equal(t, ca.FrameIndex, cb.FrameIndex)
		}
	}
}

func TestSwapSameStreamContinuesWithoutDoubleCounting(t *testing.T) {
	frames := swingFrames(2)
	tr := trackOf(t, frames)

	// Stream the first rep plus the start of the second through the cache,
	// then let the cache end as if the live producer stopped.
	meta := tr.Meta()
	cache := supply.NewLiveCache(supply.Identity{TrackID: meta.TrackID, SourceVideoHash: meta.SourceVideoHash})
	for _, f := range frames[:6] {
		cache.Append(f)
	}
	cache.CloseExhausted()

	s := newSession(t)
	s.Attach(cache, session.ModeLiveCache)
	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, 1, s.SealedCount())
	inRep, ok := s.InProgress()
	require.True(t, ok)
	partialHistory := inRep.History()

	// Continue from the sealed recording of the same stream.
	replay, err := supply.NewSealedSource(tr, nil)
	require.NoError(t, err)
	require.NoError(t, s.Swap(replay, session.ModeSealed))
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 2, s.SealedCount(), "no rep lost, none double counted")
	second := s.SealedReps()[1]
	assert.Equal(t, partialHistory[0], second.History()[0],
		"the in-progress rep carried across the swap")
}

func TestSwapDifferentStreamResetsAndReports(t *testing.T) {
	// Mid-rep on stream A: one full cycle plus the next rep's first phases.
	a := trackOf(t, swingFrames(1)[:5])
	srcA, err := supply.NewSealedSource(a, nil)
	require.NoError(t, err)

	s := newSession(t)
	s.Attach(srcA, session.ModeSealed)
	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, 1, s.SealedCount())

	b := track.New(track.Metadata{SourceVideoHash: "hash-B", SourceVideoName: "b.mp4", FPS: 30})
	for _, f := range swingFrames(2) {
		require.NoError(t, b.Append(track.RecordOf(f)))
	}
	b.Seal()
	srcB, err := supply.NewSealedSource(b, nil)
	require.NoError(t, err)

	err = s.Swap(srcB, session.ModeSealed)
	var terr *session.SupplyTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "hash-A", terr.From.SourceVideoHash)
	assert.Equal(t, "hash-B", terr.To.SourceVideoHash)
	assert.Equal(t, 1, terr.SealedReps)
	assert.True(t, terr.InProgress)

	// Session stays usable; counting restarts from zero on stream B.
	assert.Equal(t, 0, s.SealedCount())
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 2, s.SealedCount())
}

func TestOutOfOrderFramesDroppedNotFatal(t *testing.T) {
	frames := swingFrames(2)
	cache := supply.NewLiveCache(supply.Identity{TrackID: "t", SourceVideoHash: "h"})
	for i, f := range frames {
		cache.Append(f)
		if i == 3 {
			// Replay an earlier frame; the session must skip it.
			cache.Append(frames[1])
		}
	}
	cache.CloseExhausted()

	s := newSession(t)
	s.Attach(cache, session.ModeLiveCache)
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 2, s.SealedCount())
}

func TestDataGapFramesAreTolerated(t *testing.T) {
	frames := swingFrames(1)
	// Splice undetected frames into the stream; indices stay increasing.
	var withGaps []pose.Frame
	idx := 0
	for _, f := range frames {
		f.Index = idx
		f.VideoTime = float64(idx) / 30
		withGaps = append(withGaps, f)
		idx++
		withGaps = append(withGaps, pose.Frame{Index: idx, VideoTime: float64(idx) / 30})
		idx++
	}
	cache := supply.NewLiveCache(supply.Identity{TrackID: "t", SourceVideoHash: "h"})
	for _, f := range withGaps {
		cache.Append(f)
	}
	cache.CloseExhausted()

	s := newSession(t)
	s.Attach(cache, session.ModeLiveCache)
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, s.SealedCount())
}

func TestSealedHookFiresPerRep(t *testing.T) {
	var got []int
	s, err := session.New(config.Default(), session.WithSealedHook(func(r *rep.Rep) {
		got = append(got, r.Number)
	}))
	require.NoError(t, err)

	src, err := supply.NewSealedSource(trackOf(t, swingFrames(3)), nil)
	require.NoError(t, err)
	s.Attach(src, session.ModeSealed)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []int{1, 2, 3}, got)
}
