package supply

import (
	"context"
	"errors"
	"fmt"

	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
	"github.com/idvorkin/swing-analyzer-sub004/internal/track"
)

// LiveSource pulls frames from the external pose-estimation collaborator in
// real time. As a side effect every delivered frame is appended to the
// in-progress track, so the live run leaves behind exactly the record a
// later sealed replay will read.
type LiveSource struct {
	poses  PoseSource
	pixels PixelSource // optional
	track  *track.Track

	terminal error
}

// NewLiveSource wires a pose source to an in-progress track. pixels may be
// nil.
func NewLiveSource(poses PoseSource, pixels PixelSource, t *track.Track) *LiveSource {
	return &LiveSource{poses: poses, pixels: pixels, track: t}
}

// Next pulls one frame from the pose source. On end of stream the track is
// sealed before ErrEndOfStream is returned, so the recording is complete
// the moment the stream is.
func (s *LiveSource) Next(ctx context.Context) (pose.Frame, error) {
	if s.terminal != nil {
		return pose.Frame{}, s.terminal
	}

	f, err := s.poses.NextPose(ctx)
	switch {
	case errors.Is(err, ErrEndOfStream):
		s.track.Seal()
		s.terminal = ErrEndOfStream
		return pose.Frame{}, ErrEndOfStream
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return pose.Frame{}, err
	case err != nil:
		s.terminal = fmt.Errorf("supply: pose source: %w", err)
		return pose.Frame{}, s.terminal
	}

	if err := s.track.Append(track.RecordOf(f)); err != nil {
		// A frame that does not extend the track means the collaborator
		// broke ordering; surface it, never reorder.
		return pose.Frame{}, fmt.Errorf("supply: live append: %w", err)
	}

	if s.pixels != nil && f.Pixels == nil {
		if buf, err := s.pixels.PixelsAt(f.Index); err == nil {
			f.Pixels = buf
		}
	}
	return f, nil
}

// Identity returns the in-progress track's identity.
func (s *LiveSource) Identity() Identity {
	meta := s.track.Meta()
	return Identity{TrackID: meta.TrackID, SourceVideoHash: meta.SourceVideoHash}
}

// Track returns the track being recorded.
func (s *LiveSource) Track() *track.Track { return s.track }

// Close marks the source terminal; the underlying collaborator owns its
// own resources.
func (s *LiveSource) Close() error {
	if s.terminal == nil {
		s.terminal = ErrCancelled
	}
	return nil
}

// Pump drains src into the cache until the stream ends, the context is
// cancelled, or the source fails, then moves the cache into the matching
// terminal state. Run it as the producer task of the SPSC pair:
//
//	go supply.Pump(ctx, live, cache)
//
// Cancellation flushes already-buffered frames to the consumer before the
// cache reports ErrCancelled, so no delivered frame is ever lost.
func Pump(ctx context.Context, src Source, cache *LiveCache) error {
	for {
		f, err := src.Next(ctx)
		switch {
		case err == nil:
			cache.Append(f)
		case errors.Is(err, ErrEndOfStream):
			cache.CloseExhausted()
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, ErrCancelled):
			cache.Cancel(true)
			return err
		default:
			cache.Fail(err)
			return err
		}
	}
}
