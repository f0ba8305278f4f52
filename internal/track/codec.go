package track

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// wireTrack is the serialized shape. msgpack keeps float64 keypoint and
// timing values bit-exact across a round trip, which the store contract
// requires.
type wireTrack struct {
	Version  int           `msgpack:"version"`
	Metadata Metadata      `msgpack:"metadata"`
	Frames   []FrameRecord `msgpack:"frames"`
}

const codecVersion = 1

// Encode serializes a track for the persistent store. The track need not be
// sealed; encoding snapshots the frames appended so far.
func Encode(t *Track) ([]byte, error) {
	t.mu.RLock()
	w := wireTrack{
		Version:  codecVersion,
		Metadata: t.meta,
		Frames:   t.frames,
	}
	t.mu.RUnlock()

	data, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("track: encode %s: %w", w.Metadata.TrackID, err)
	}
	return data, nil
}

// Decode deserializes a stored track. Decoded tracks are sealed: whatever
// was persisted is the complete, immutable record.
func Decode(data []byte) (*Track, error) {
	var w wireTrack
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("track: decode: %w", err)
	}
	if w.Version != codecVersion {
		return nil, fmt.Errorf("track: decode: unsupported version %d", w.Version)
	}
	return &Track{meta: w.Metadata, frames: w.Frames, sealed: true}, nil
}
