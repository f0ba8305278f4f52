// Package skeleton wraps one frame's keypoints and derives the joint angles
// the phase classifier runs on. A Skeleton is built once per frame; derived
// angles are computed on first access and memoized, so they stay stable for
// the Skeleton's lifetime. Missing keypoints degrade to neutral angles with
// a logged diagnostic rather than failing the frame.
package skeleton

import (
	"log/slog"
	"math"
	"sync"

	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
)

// DefaultMinScore is the per-keypoint confidence floor used when the caller
// does not supply one.
const DefaultMinScore = 0.2

// Skeleton owns an ordered collection of keypoints for exactly one frame.
type Skeleton struct {
	frame    pose.Frame
	scheme   pose.Scheme
	byName   map[string]int
	minScore float64
	visible  bool

	spineOnce sync.Once
	spine     float64

	armSpineOnce sync.Once
	armSpine     float64

	armVertOnce sync.Once
	armVert     float64

	hipOnce sync.Once
	hip     float64

	kneeOnce sync.Once
	knee     float64

	confOnce sync.Once
	conf     float64
}

// Option adjusts Skeleton construction.
type Option func(*Skeleton)

// WithMinScore overrides the keypoint confidence floor.
func WithMinScore(min float64) Option {
	return func(s *Skeleton) { s.minScore = min }
}

// New builds a Skeleton from one frame. The keypoint scheme is detected from
// the keypoint count; unknown counts still work through name lookup. If the
// frame carries a pre-computed spine angle it is used verbatim.
func New(frame pose.Frame, opts ...Option) *Skeleton {
	s := &Skeleton{
		frame:    frame,
		scheme:   pose.DetectScheme(len(frame.Keypoints)),
		minScore: DefaultMinScore,
		visible:  len(frame.Keypoints) > 0,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.byName = make(map[string]int, len(frame.Keypoints))
	for i, kp := range frame.Keypoints {
		name := pose.NormalizeName(kp.Name)
		if name == "" {
			continue
		}
		if _, dup := s.byName[name]; !dup {
			s.byName[name] = i
		}
	}
	if frame.SpineAngle != nil {
		s.spineOnce.Do(func() { s.spine = *frame.SpineAngle })
	}
	return s
}

// NewHidden builds a Skeleton flagged as not visible: lookups and angles
// still work, but HasRequiredKeypoints reports false so the classifier
// suppresses the frame.
func NewHidden(frame pose.Frame, opts ...Option) *Skeleton {
	s := New(frame, opts...)
	s.visible = false
	return s
}

// Frame returns the source frame.
func (s *Skeleton) Frame() pose.Frame { return s.frame }

// Scheme returns the detected keypoint scheme.
func (s *Skeleton) Scheme() pose.Scheme { return s.scheme }

// Keypoint resolves a canonical joint. Resolution order: normalized name
// match, then the scheme's positional table. Returns ok=false when the
// joint is absent or scored below the confidence floor.
func (s *Skeleton) Keypoint(j pose.Joint) (pose.Keypoint, bool) {
	if i, ok := s.byName[j.String()]; ok {
		return s.scored(i)
	}
	if i := pose.IndexOf(s.scheme, j); i >= 0 && i < len(s.frame.Keypoints) {
		return s.scored(i)
	}
	return pose.Keypoint{}, false
}

// KeypointByName resolves a keypoint by a model-specific name, falling back
// through case variants and prefix-stripped aliases. Absent names return
// ok=false, never an error.
func (s *Skeleton) KeypointByName(name string) (pose.Keypoint, bool) {
	if i, ok := s.byName[pose.NormalizeName(name)]; ok {
		return s.scored(i)
	}
	return pose.Keypoint{}, false
}

func (s *Skeleton) scored(i int) (pose.Keypoint, bool) {
	kp := s.frame.Keypoints[i]
	if kp.Score < s.minScore {
		return pose.Keypoint{}, false
	}
	return kp, true
}

// HasRequiredKeypoints reports whether both shoulders and both hips are
// present above the confidence floor. Upstream uses this to suppress phase
// classification on low-confidence frames.
func (s *Skeleton) HasRequiredKeypoints() bool {
	if !s.visible {
		return false
	}
	for _, j := range []pose.Joint{
		pose.JointLeftShoulder, pose.JointRightShoulder,
		pose.JointLeftHip, pose.JointRightHip,
	} {
		if _, ok := s.Keypoint(j); !ok {
			return false
		}
	}
	return true
}

// Confidence returns the mean score of all keypoints in the frame. Frames
// with zero scored keypoints yield 0.
func (s *Skeleton) Confidence() float64 {
	s.confOnce.Do(func() {
		var sum float64
		var n int
		for _, kp := range s.frame.Keypoints {
			if kp.Score > 0 {
				sum += kp.Score
				n++
			}
		}
		if n > 0 {
			s.conf = sum / float64(n)
		}
	})
	return s.conf
}

func (s *Skeleton) missing(angle string, joints ...pose.Joint) {
	slog.Debug("angle unavailable, required keypoints missing",
		"angle", angle,
		"frame_index", s.frame.Index,
		"joints", joints,
	)
}

// SpineAngle returns the spine's angle from vertical in degrees: 0 when
// upright, 90 when horizontal. Neutral 0 when shoulders or hips are missing.
func (s *Skeleton) SpineAngle() float64 {
	s.spineOnce.Do(func() {
		spine, ok := s.spineVector()
		if !ok {
			s.missing("spine",
				pose.JointLeftShoulder, pose.JointRightShoulder,
				pose.JointLeftHip, pose.JointRightHip)
			return
		}
		s.spine = angleBetween(spine, vec{0, -1})
	})
	return s.spine
}

// ArmToSpineAngle returns the exterior angle between the left upper arm
// (shoulder to elbow) and the spine: near 0 when the arm hangs along the
// spine line, growing as the arm swings away. Neutral 0 when keypoints are
// missing.
func (s *Skeleton) ArmToSpineAngle() float64 {
	s.armSpineOnce.Do(func() {
		spine, okSpine := s.spineVector()
		arm, okArm := s.armVector()
		if !okSpine || !okArm {
			s.missing("arm_to_spine", pose.JointLeftShoulder, pose.JointLeftElbow)
			return
		}
		// Interior angle is ~180 when the arm hangs parallel to the spine
		// (the vectors point opposite ways); report the exterior.
		s.armSpine = 180 - angleBetween(arm, spine)
	})
	return s.armSpine
}

// ArmToVerticalAngle returns the signed angle between the left upper arm
// and straight down. 0 for an arm hanging vertically, positive when the arm
// points screen-right, negative when screen-left. Range (-180, 180].
func (s *Skeleton) ArmToVerticalAngle() float64 {
	s.armVertOnce.Do(func() {
		arm, ok := s.armVector()
		if !ok {
			s.missing("arm_to_vertical", pose.JointLeftShoulder, pose.JointLeftElbow)
			return
		}
		a := angleBetween(arm, vec{0, 1})
		if arm.x < 0 {
			a = -a
		}
		s.armVert = a
	})
	return s.armVert
}

// HipAngle returns the knee-hip-shoulder flexion angle on the left side.
func (s *Skeleton) HipAngle() float64 {
	s.hipOnce.Do(func() {
		knee, ok1 := s.Keypoint(pose.JointLeftKnee)
		hip, ok2 := s.Keypoint(pose.JointLeftHip)
		shoulder, ok3 := s.Keypoint(pose.JointLeftShoulder)
		if !ok1 || !ok2 || !ok3 {
			s.missing("hip", pose.JointLeftKnee, pose.JointLeftHip, pose.JointLeftShoulder)
			return
		}
		s.hip = angleAt(knee, hip, shoulder)
	})
	return s.hip
}

// KneeAngle returns the hip-knee-ankle bend angle on the left side.
func (s *Skeleton) KneeAngle() float64 {
	s.kneeOnce.Do(func() {
		hip, ok1 := s.Keypoint(pose.JointLeftHip)
		knee, ok2 := s.Keypoint(pose.JointLeftKnee)
		ankle, ok3 := s.Keypoint(pose.JointLeftAnkle)
		if !ok1 || !ok2 || !ok3 {
			s.missing("knee", pose.JointLeftHip, pose.JointLeftKnee, pose.JointLeftAnkle)
			return
		}
		s.knee = angleAt(hip, knee, ankle)
	})
	return s.knee
}

// WristHeights returns both wrists' heights above the shoulder midpoint in
// pixels (positive = above). ok=false when wrists or shoulders are missing.
func (s *Skeleton) WristHeights() (left, right, avg float64, ok bool) {
	ls, ok1 := s.Keypoint(pose.JointLeftShoulder)
	rs, ok2 := s.Keypoint(pose.JointRightShoulder)
	lw, ok3 := s.Keypoint(pose.JointLeftWrist)
	rw, ok4 := s.Keypoint(pose.JointRightWrist)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, 0, false
	}
	shoulderMidY := (ls.Y + rs.Y) / 2
	// Lower screen Y is higher in the room.
	left = shoulderMidY - lw.Y
	right = shoulderMidY - rw.Y
	return left, right, (left + right) / 2, true
}

// spineVector is hip midpoint to shoulder midpoint.
func (s *Skeleton) spineVector() (vec, bool) {
	ls, ok1 := s.Keypoint(pose.JointLeftShoulder)
	rs, ok2 := s.Keypoint(pose.JointRightShoulder)
	lh, ok3 := s.Keypoint(pose.JointLeftHip)
	rh, ok4 := s.Keypoint(pose.JointRightHip)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return vec{}, false
	}
	return vec{
		x: (ls.X+rs.X)/2 - (lh.X+rh.X)/2,
		y: (ls.Y+rs.Y)/2 - (lh.Y+rh.Y)/2,
	}, true
}

// armVector is left shoulder to left elbow.
func (s *Skeleton) armVector() (vec, bool) {
	sh, ok1 := s.Keypoint(pose.JointLeftShoulder)
	el, ok2 := s.Keypoint(pose.JointLeftElbow)
	if !ok1 || !ok2 {
		return vec{}, false
	}
	return vec{x: el.X - sh.X, y: el.Y - sh.Y}, true
}

type vec struct{ x, y float64 }

func (v vec) norm() float64 { return math.Hypot(v.x, v.y) }

// angleBetween returns the unsigned angle between two vectors in degrees.
// The cosine is clamped before acos so floating-point overshoot can never
// leave the domain.
func angleBetween(a, b vec) float64 {
	na, nb := a.norm(), b.norm()
	if na == 0 || nb == 0 {
		return 0
	}
	cos := (a.x*b.x + a.y*b.y) / (na * nb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// angleAt returns the angle at p2 formed by p1-p2-p3.
func angleAt(p1, p2, p3 pose.Keypoint) float64 {
	return angleBetween(
		vec{x: p1.X - p2.X, y: p1.Y - p2.Y},
		vec{x: p3.X - p2.X, y: p3.Y - p2.Y},
	)
}
