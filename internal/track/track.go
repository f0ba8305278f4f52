// Package track implements the pose track: the append-only, per-frame pose
// record for one source video, its metadata, and the codecs that move it in
// and out of the persistent store. A sealed track read back from storage is
// observationally identical to the in-progress track it was sealed from;
// every downstream consumer relies on that equivalence.
package track

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
)

var (
	// ErrSealed is returned by Append once a track has been sealed.
	ErrSealed = errors.New("track: track is sealed")
	// ErrOutOfOrder is returned by Append when a frame does not extend the
	// track (frame index or video time not strictly increasing).
	ErrOutOfOrder = errors.New("track: frame does not extend track")
)

// Metadata describes a pose track's provenance. SourceVideoHash identifies
// the source video content; two supplies feed the same logical stream iff
// their hashes match.
type Metadata struct {
	TrackID             string  `msgpack:"trackId"`
	Model               string  `msgpack:"model"`
	ModelVersion        string  `msgpack:"modelVersion"`
	KeypointScheme      string  `msgpack:"keypointFormat"`
	KeypointCount       int     `msgpack:"keypointCount"`
	SourceVideoHash     string  `msgpack:"sourceVideoHash"`
	SourceVideoName     string  `msgpack:"sourceVideoName"`
	SourceVideoDuration float64 `msgpack:"sourceVideoDuration"`
	FPS                 float64 `msgpack:"fps"`
	VideoWidth          int     `msgpack:"videoWidth"`
	VideoHeight         int     `msgpack:"videoHeight"`

	ExtractedAt time.Time `msgpack:"extractedAt"`
}

// FrameRecord is one track entry: the frame's position in the video and the
// keypoints the model produced for it. Pixel data is deliberately absent;
// tracks persist pose, not video.
type FrameRecord struct {
	Index      int             `msgpack:"frameIndex"`
	VideoTime  float64         `msgpack:"videoTime"`
	Timestamp  time.Time       `msgpack:"timestamp"`
	Keypoints  []pose.Keypoint `msgpack:"keypoints"`
	Score      float64         `msgpack:"score"`
	SpineAngle *float64        `msgpack:"spineAngle,omitempty"`
}

// Track is the ordered sequence of frame records for one video. It has two
// lifecycle states: in-progress (live extraction is appending) and sealed
// (complete, immutable, eligible for persistence and replay).
//
// Append and the read methods are safe for one concurrent producer and one
// concurrent consumer, matching the live-cache topology.
type Track struct {
	mu     sync.RWMutex
	meta   Metadata
	frames []FrameRecord
	sealed bool
}

// New creates an empty in-progress track, assigning a fresh track ID when
// the metadata carries none.
func New(meta Metadata) *Track {
	if meta.TrackID == "" {
		meta.TrackID = uuid.NewString()
	}
	if meta.ExtractedAt.IsZero() {
		meta.ExtractedAt = time.Now().UTC()
	}
	return &Track{meta: meta}
}

// Append adds a frame to an in-progress track. Frames must strictly extend
// the track: increasing index and video time.
func (t *Track) Append(fr FrameRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return ErrSealed
	}
	if n := len(t.frames); n > 0 {
		last := t.frames[n-1]
		if fr.Index <= last.Index || fr.VideoTime <= last.VideoTime {
			return fmt.Errorf("%w: frame %d (%.4fs) after frame %d (%.4fs)",
				ErrOutOfOrder, fr.Index, fr.VideoTime, last.Index, last.VideoTime)
		}
	}
	t.frames = append(t.frames, fr)
	return nil
}

// Seal marks the track complete. Idempotent. A sealed track never changes
// again.
func (t *Track) Seal() {
	t.mu.Lock()
	t.sealed = true
	t.mu.Unlock()
}

// Sealed reports the lifecycle state.
func (t *Track) Sealed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sealed
}

// Meta returns a copy of the track metadata.
func (t *Track) Meta() Metadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.meta
}

// Len returns the number of frames appended so far.
func (t *Track) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.frames)
}

// Frame returns the record at position i.
func (t *Track) Frame(i int) (FrameRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.frames) {
		return FrameRecord{}, false
	}
	return t.frames[i], true
}

// Duration returns the video time span covered by the track, preferring the
// recorded source duration when present.
func (t *Track) Duration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.meta.SourceVideoDuration > 0 {
		return t.meta.SourceVideoDuration
	}
	if n := len(t.frames); n > 0 {
		return t.frames[n-1].VideoTime
	}
	return 0
}

// ToFrame converts a record to the pipeline frame type.
func (fr FrameRecord) ToFrame() pose.Frame {
	return pose.Frame{
		Index:      fr.Index,
		VideoTime:  fr.VideoTime,
		Timestamp:  fr.Timestamp,
		Keypoints:  fr.Keypoints,
		SpineAngle: fr.SpineAngle,
	}
}

// RecordOf converts a pipeline frame to a track record, dropping the pixel
// buffer.
func RecordOf(f pose.Frame) FrameRecord {
	var score float64
	if len(f.Keypoints) > 0 {
		var sum float64
		for _, kp := range f.Keypoints {
			sum += kp.Score
		}
		score = sum / float64(len(f.Keypoints))
	}
	return FrameRecord{
		Index:      f.Index,
		VideoTime:  f.VideoTime,
		Timestamp:  f.Timestamp,
		Keypoints:  f.Keypoints,
		Score:      score,
		SpineAngle: f.SpineAngle,
	}
}
