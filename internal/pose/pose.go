// Package pose defines the frame-level data types shared by every stage of
// the analysis pipeline: keypoints as produced by an external pose model,
// the frames that carry them, and the canonical joint vocabulary used to
// look keypoints up regardless of which model emitted them.
package pose

import "time"

// Keypoint is one anatomical landmark's estimated position for one frame.
// Coordinates are image-plane pixels (origin top-left, +y down). Z is
// model-relative depth when the model provides it, otherwise 0.
// Immutable after creation.
type Keypoint struct {
	Name  string
	X     float64
	Y     float64
	Z     float64
	Score float64 // detection confidence in [0,1]
}

// PixelBuffer is a raw image for one frame, fetched from the pixel source
// for checkpoint capture. Data layout is owned by the external decoder;
// the core never inspects it, only carries it.
type PixelBuffer struct {
	Width  int
	Height int
	Data   []byte
}

// Frame is one frame's pose data as delivered by a supply source.
//
// Immutability contract: neither Keypoints nor Pixels may be modified after
// the frame enters a supply. Frames are shared by reference between the
// producer, the live cache and the in-progress track.
type Frame struct {
	// Index is the zero-based frame index within the source video.
	Index int

	// VideoTime is seconds from the start of the source video.
	VideoTime float64

	// Timestamp is the wall-clock capture time.
	Timestamp time.Time

	// Keypoints in the upstream model's own naming/indexing scheme.
	Keypoints []Keypoint

	// SpineAngle is the extractor's pre-computed spine angle, when the
	// upstream tooling supplies one. Nil means compute it from keypoints.
	SpineAngle *float64

	// Pixels is the frame's image buffer. Nil when the supply has no
	// pixel source attached (checkpoints are then captured without images).
	Pixels *PixelBuffer
}
