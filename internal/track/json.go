package track

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
)

// The extractor tooling writes posetrack JSON files with this shape;
// DecodeJSON imports them so recorded sessions can be replayed here.

type jsonTrack struct {
	Metadata jsonMetadata `json:"metadata"`
	Frames   []jsonFrame  `json:"frames"`
}

type jsonMetadata struct {
	Version             string  `json:"version"`
	Model               string  `json:"model"`
	ModelVersion        string  `json:"modelVersion"`
	KeypointFormat      string  `json:"keypointFormat"`
	KeypointCount       int     `json:"keypointCount"`
	SourceVideoHash     string  `json:"sourceVideoHash"`
	SourceVideoName     string  `json:"sourceVideoName"`
	SourceVideoDuration float64 `json:"sourceVideoDuration"`
	ExtractedAt         string  `json:"extractedAt"`
	FrameCount          int     `json:"frameCount"`
	FPS                 float64 `json:"fps"`
	VideoWidth          int     `json:"videoWidth"`
	VideoHeight         int     `json:"videoHeight"`
}

type jsonFrame struct {
	FrameIndex  int            `json:"frameIndex"`
	TimestampMS float64        `json:"timestamp"`
	VideoTime   float64        `json:"videoTime"`
	Keypoints   []jsonKeypoint `json:"keypoints"`
	Score       float64        `json:"score"`
	Angles      *jsonAngles    `json:"angles,omitempty"`
}

type jsonKeypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Score float64 `json:"score"`
	Name  string  `json:"name"`
}

type jsonAngles struct {
	SpineAngle         *float64 `json:"spineAngle,omitempty"`
	ArmToSpineAngle    *float64 `json:"armToSpineAngle,omitempty"`
	ArmToVerticalAngle *float64 `json:"armToVerticalAngle,omitempty"`
}

// DecodeJSON imports an extractor posetrack file. The result is a sealed
// track; frames that do not extend the sequence (repeated or rewinding
// indices) are rejected so downstream ordering invariants hold.
func DecodeJSON(data []byte) (*Track, error) {
	var jt jsonTrack
	if err := json.Unmarshal(data, &jt); err != nil {
		return nil, fmt.Errorf("track: decode json: %w", err)
	}
	if len(jt.Frames) == 0 {
		return nil, fmt.Errorf("track: decode json: no frames")
	}

	meta := Metadata{
		Model:               jt.Metadata.Model,
		ModelVersion:        jt.Metadata.ModelVersion,
		KeypointScheme:      jt.Metadata.KeypointFormat,
		KeypointCount:       jt.Metadata.KeypointCount,
		SourceVideoHash:     jt.Metadata.SourceVideoHash,
		SourceVideoName:     jt.Metadata.SourceVideoName,
		SourceVideoDuration: jt.Metadata.SourceVideoDuration,
		FPS:                 jt.Metadata.FPS,
		VideoWidth:          jt.Metadata.VideoWidth,
		VideoHeight:         jt.Metadata.VideoHeight,
	}
	if ts, err := time.Parse(time.RFC3339, jt.Metadata.ExtractedAt); err == nil {
		meta.ExtractedAt = ts
	}

	t := New(meta)
	for _, jf := range jt.Frames {
		kps := make([]pose.Keypoint, len(jf.Keypoints))
		for i, jk := range jf.Keypoints {
			kps[i] = pose.Keypoint{
				Name:  jk.Name,
				X:     jk.X,
				Y:     jk.Y,
				Z:     jk.Z,
				Score: jk.Score,
			}
		}
		fr := FrameRecord{
			Index:     jf.FrameIndex,
			VideoTime: jf.VideoTime,
			Keypoints: kps,
			Score:     jf.Score,
		}
		if jf.Angles != nil {
			fr.SpineAngle = jf.Angles.SpineAngle
		}
		if err := t.Append(fr); err != nil {
			return nil, fmt.Errorf("track: decode json: frame %d: %w", jf.FrameIndex, err)
		}
	}
	t.Seal()
	return t, nil
}
