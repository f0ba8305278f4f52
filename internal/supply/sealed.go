package supply

import (
	"context"
	"fmt"

	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
	"github.com/idvorkin/swing-analyzer-sub004/internal/track"
)

// SealedSource replays a sealed pose track deterministically in original
// order. Used for "load saved analysis", reruns and tests, and as the
// continuation target when a live session is reconciled against its own
// sealed recording.
type SealedSource struct {
	track  *track.Track
	pixels PixelSource // optional
	pos    int
	closed bool
}

// NewSealedSource wraps a sealed track. pixels may be nil; checkpoints are
// then captured without images.
func NewSealedSource(t *track.Track, pixels PixelSource) (*SealedSource, error) {
	if !t.Sealed() {
		return nil, fmt.Errorf("supply: track %s is not sealed", t.Meta().TrackID)
	}
	return &SealedSource{track: t, pixels: pixels}, nil
}

// Next returns the next frame of the track. Replay is synchronous and
// deterministic; ctx is only consulted for cancellation between frames.
func (s *SealedSource) Next(ctx context.Context) (pose.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pose.Frame{}, err
	}
	if s.closed {
		return pose.Frame{}, ErrCancelled
	}
	fr, ok := s.track.Frame(s.pos)
	if !ok {
		return pose.Frame{}, ErrEndOfStream
	}
	s.pos++

	f := fr.ToFrame()
	if s.pixels != nil {
		buf, err := s.pixels.PixelsAt(f.Index)
		if err == nil {
			f.Pixels = buf
		}
		// A failed pixel fetch degrades the checkpoint, not the stream.
	}
	return f, nil
}

// Identity returns the underlying track's identity.
func (s *SealedSource) Identity() Identity {
	meta := s.track.Meta()
	return Identity{TrackID: meta.TrackID, SourceVideoHash: meta.SourceVideoHash}
}

// Seek positions replay so that the next frame returned has a frame index
// strictly greater than afterIndex. Supports continuing a logical stream
// from where a previous supply left off.
func (s *SealedSource) Seek(afterIndex int) error {
	for i := 0; i < s.track.Len(); i++ {
		fr, _ := s.track.Frame(i)
		if fr.Index > afterIndex {
			s.pos = i
			return nil
		}
	}
	s.pos = s.track.Len()
	return nil
}

// Close stops replay; subsequent Next calls return ErrCancelled.
func (s *SealedSource) Close() error {
	s.closed = true
	return nil
}
