// Package supply abstracts where pose frames come from. Three
// interchangeable sources sit behind one interface: live extraction, a
// streaming cache that lets counting proceed while extraction is still
// running, and sealed-track replay. Every downstream consumer is
// source-agnostic; a sealed track replayed from storage produces the same
// frame sequence the live run did.
package supply

import (
	"context"
	"errors"

	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
)

// Terminal conditions. Consumers must be able to tell "ended: exhausted"
// from "ended: cancelled" from "ended: error"; the first two are these
// sentinels, anything else is an error end.
var (
	// ErrEndOfStream means the source delivered every frame it will ever
	// have.
	ErrEndOfStream = errors.New("supply: end of stream")

	// ErrCancelled means the producer side was cancelled and remaining
	// frames were discarded.
	ErrCancelled = errors.New("supply: cancelled")
)

// Identity names the logical stream a source feeds. Two sources continue
// the same stream iff their source video hashes match; the rep state
// machine survives a supply swap only in that case.
type Identity struct {
	TrackID         string
	SourceVideoHash string
}

// Same reports whether two identities refer to the same source video.
// An empty hash never matches anything, including itself.
func (id Identity) Same(other Identity) bool {
	return id.SourceVideoHash != "" && id.SourceVideoHash == other.SourceVideoHash
}

// Source is one pose-data supply.
//
// Implementations must guarantee:
//   - Next blocks until a frame is available, the stream ends, or ctx is
//     done; frames come out in strictly increasing frame-index order with
//     no skipping and no reordering.
//   - Next returns ErrEndOfStream after the final frame, ErrCancelled
//     after a discarding cancellation, and keeps returning the same
//     terminal error on subsequent calls.
//   - Identity is constant for the source's lifetime.
//   - Close releases resources and is idempotent.
//
// A Source is consumed by exactly one goroutine.
type Source interface {
	Next(ctx context.Context) (pose.Frame, error)
	Identity() Identity
	Close() error
}

// PoseSource is the external pose-estimation collaborator: decode plus
// model inference, yielding keypoints per frame. It signals the end of the
// video with ErrEndOfStream.
type PoseSource interface {
	NextPose(ctx context.Context) (pose.Frame, error)
}

// PixelSource is the external frame-image collaborator: given a frame
// index, it returns the raw image buffer used for checkpoint capture.
type PixelSource interface {
	PixelsAt(frameIndex int) (*pose.PixelBuffer, error)
}
