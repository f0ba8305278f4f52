package pose

import "strings"

// Joint identifies an anatomical landmark independently of the upstream
// model's naming or indexing scheme. Keypoint lookup resolves a Joint
// through a per-scheme table once per frame, not by string matching in the
// hot path.
type Joint int

const (
	JointNose Joint = iota
	JointLeftEye
	JointRightEye
	JointLeftEar
	JointRightEar
	JointLeftShoulder
	JointRightShoulder
	JointLeftElbow
	JointRightElbow
	JointLeftWrist
	JointRightWrist
	JointLeftHip
	JointRightHip
	JointLeftKnee
	JointRightKnee
	JointLeftAnkle
	JointRightAnkle
	jointCount
)

// canonical names follow the COCO convention used by both extractor outputs.
var jointNames = [jointCount]string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
}

func (j Joint) String() string {
	if j < 0 || j >= jointCount {
		return "unknown"
	}
	return jointNames[j]
}

// Scheme identifies a keypoint naming/indexing convention.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	// SchemeCOCO17 is the 17-point COCO layout the analyzer natively expects.
	SchemeCOCO17
	// SchemeBlazePose33 is MediaPipe BlazePose's full 33-point layout.
	SchemeBlazePose33
)

func (s Scheme) String() string {
	switch s {
	case SchemeCOCO17:
		return "coco-17"
	case SchemeBlazePose33:
		return "blazepose-33"
	default:
		return "unknown"
	}
}

// SchemeByName maps a serialized scheme identifier to a Scheme.
func SchemeByName(name string) Scheme {
	switch strings.ToLower(name) {
	case "coco-17", "coco17", "coco":
		return SchemeCOCO17
	case "blazepose-33", "blazepose33", "blazepose":
		return SchemeBlazePose33
	default:
		return SchemeUnknown
	}
}

// DetectScheme guesses the scheme from the keypoint count. Unknown counts
// fall back to name-based lookup only.
func DetectScheme(keypointCount int) Scheme {
	switch keypointCount {
	case 17:
		return SchemeCOCO17
	case 33:
		return SchemeBlazePose33
	default:
		return SchemeUnknown
	}
}

// Per-scheme positional tables. Indices per the COCO-17 and MediaPipe
// BlazePose-33 layouts.
var coco17Index = [jointCount]int{
	JointNose:          0,
	JointLeftEye:       1,
	JointRightEye:      2,
	JointLeftEar:       3,
	JointRightEar:      4,
	JointLeftShoulder:  5,
	JointRightShoulder: 6,
	JointLeftElbow:     7,
	JointRightElbow:    8,
	JointLeftWrist:     9,
	JointRightWrist:    10,
	JointLeftHip:       11,
	JointRightHip:      12,
	JointLeftKnee:      13,
	JointRightKnee:     14,
	JointLeftAnkle:     15,
	JointRightAnkle:    16,
}

var blazePose33Index = [jointCount]int{
	JointNose:          0,
	JointLeftEye:       2,
	JointRightEye:      5,
	JointLeftEar:       7,
	JointRightEar:      8,
	JointLeftShoulder:  11,
	JointRightShoulder: 12,
	JointLeftElbow:     13,
	JointRightElbow:    14,
	JointLeftWrist:     15,
	JointRightWrist:    16,
	JointLeftHip:       23,
	JointRightHip:      24,
	JointLeftKnee:      25,
	JointRightKnee:     26,
	JointLeftAnkle:     27,
	JointRightAnkle:    28,
}

// IndexOf returns the positional index of joint j in scheme s, or -1 when
// the scheme has no positional table.
func IndexOf(s Scheme, j Joint) int {
	if j < 0 || j >= jointCount {
		return -1
	}
	switch s {
	case SchemeCOCO17:
		return coco17Index[j]
	case SchemeBlazePose33:
		return blazePose33Index[j]
	default:
		return -1
	}
}

// NormalizeName reduces a model-specific keypoint name to canonical form:
// lowercased, with known vendor prefixes stripped. "Body_LEFT_SHOULDER" and
// "pose_left_shoulder" both resolve to "left_shoulder".
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range []string{"body_", "pose_", "kp_"} {
		n = strings.TrimPrefix(n, prefix)
	}
	return n
}
