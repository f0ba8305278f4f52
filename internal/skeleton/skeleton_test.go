package skeleton_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idvorkin/swing-analyzer-sub004/internal/pose"
	"github.com/idvorkin/swing-analyzer-sub004/internal/skeleton"
)

// kp builds one scored keypoint.
func kp(name string, x, y float64) pose.Keypoint {
	return pose.Keypoint{Name: name, X: x, Y: y, Score: 0.9}
}

// uprightFrame is a full COCO-17 body standing upright: spine vertical,
// arms hanging straight down.
func uprightFrame() pose.Frame {
	return pose.Frame{
		Index: 0,
		Keypoints: []pose.Keypoint{
			kp("nose", 100, 40),
			kp("left_eye", 95, 35), kp("right_eye", 105, 35),
			kp("left_ear", 90, 40), kp("right_ear", 110, 40),
			kp("left_shoulder", 80, 100), kp("right_shoulder", 120, 100),
			kp("left_elbow", 80, 150), kp("right_elbow", 120, 150),
			kp("left_wrist", 80, 190), kp("right_wrist", 120, 190),
			kp("left_hip", 85, 200), kp("right_hip", 115, 200),
			kp("left_knee", 85, 280), kp("right_knee", 115, 280),
			kp("left_ankle", 85, 360), kp("right_ankle", 115, 360),
		},
	}
}

func TestSpineAngleUpright(t *testing.T) {
	s := skeleton.New(uprightFrame())
	assert.InDelta(t, 0, s.SpineAngle(), 0.001, "vertical spine should read 0 degrees")
}

func TestSpineAngleHinged(t *testing.T) {
	// Hips midpoint (100,200), shoulders midpoint (200,100): the spine
	// leans 45 degrees forward of vertical.
	f := uprightFrame()
	setKP(&f, "left_shoulder", 180, 100)
	setKP(&f, "right_shoulder", 220, 100)
	s := skeleton.New(f)
	assert.InDelta(t, 45, s.SpineAngle(), 0.001)
}

func setKP(f *pose.Frame, name string, x, y float64) {
	for i := range f.Keypoints {
		if f.Keypoints[i].Name == name {
			f.Keypoints[i].X = x
			f.Keypoints[i].Y = y
			return
		}
	}
}

func TestArmToVerticalSign(t *testing.T) {
	cases := []struct {
		name    string
		elbowX  float64
		elbowY  float64
		want    float64
		approx  bool
		negOnly bool
		posOnly bool
	}{
		{name: "vertical arm is zero", elbowX: 80, elbowY: 150, want: 0},
		{name: "screen-left arm is negative", elbowX: 60, elbowY: 120, negOnly: true},
		{name: "screen-right arm is positive", elbowX: 100, elbowY: 120, posOnly: true},
		{name: "left 45", elbowX: 60, elbowY: 120, want: -45},
		{name: "right 45", elbowX: 100, elbowY: 120, want: 45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := uprightFrame()
			setKP(&f, "left_elbow", tc.elbowX, tc.elbowY)
			s := skeleton.New(f)
			got := s.ArmToVerticalAngle()
			switch {
			case tc.negOnly:
				assert.Less(t, got, 0.0)
				assert.Greater(t, got, -180.0)
			case tc.posOnly:
				assert.Greater(t, got, 0.0)
				assert.LessOrEqual(t, got, 180.0)
			default:
				assert.InDelta(t, tc.want, got, 0.001)
			}
		})
	}
}

func TestArmToSpineExteriorAngle(t *testing.T) {
	// Arm hanging parallel to an upright spine: exterior angle near 0,
	// not the 180-degree interior angle.
	s := skeleton.New(uprightFrame())
	assert.InDelta(t, 0, s.ArmToSpineAngle(), 0.001)

	// Arm raised horizontally: 90 degrees off the spine either way.
	f := uprightFrame()
	setKP(&f, "left_elbow", 30, 100)
	s = skeleton.New(f)
	assert.InDelta(t, 90, s.ArmToSpineAngle(), 0.001)
}

func TestAnglesAreMemoized(t *testing.T) {
	f := uprightFrame()
	s := skeleton.New(f)
	first := s.SpineAngle()

	// Mutating the backing array after construction must not change the
	// derived value: it was computed once and cached.
	setKP(&f, "left_shoulder", 500, 500)
	assert.Equal(t, first, s.SpineAngle())
}

func TestPrecomputedSpineAngle(t *testing.T) {
	angle := 33.5
	f := uprightFrame()
	f.SpineAngle = &angle
	s := skeleton.New(f)
	assert.Equal(t, angle, s.SpineAngle())
}

func TestMissingKeypointsNeutralAngle(t *testing.T) {
	s := skeleton.New(pose.Frame{Keypoints: []pose.Keypoint{kp("nose", 10, 10)}})
	assert.Equal(t, 0.0, s.SpineAngle())
	assert.Equal(t, 0.0, s.ArmToSpineAngle())
	assert.Equal(t, 0.0, s.ArmToVerticalAngle())
	assert.False(t, s.HasRequiredKeypoints())
}

func TestKeypointLookupFallbacks(t *testing.T) {
	f := pose.Frame{Keypoints: []pose.Keypoint{
		{Name: "Body_LEFT_SHOULDER", X: 1, Y: 2, Score: 0.8},
		{Name: "pose_right_shoulder", X: 3, Y: 4, Score: 0.8},
	}}
	s := skeleton.New(f)

	got, ok := s.Keypoint(pose.JointLeftShoulder)
	require.True(t, ok, "prefix-stripped case-folded alias should resolve")
	assert.Equal(t, 1.0, got.X)

	got, ok = s.KeypointByName("RIGHT_SHOULDER")
	require.True(t, ok)
	assert.Equal(t, 3.0, got.X)

	_, ok = s.Keypoint(pose.JointLeftAnkle)
	assert.False(t, ok, "absent joint is not-found, not an error")
}

func TestPositionalLookupBlazePose(t *testing.T) {
	// 33 unnamed keypoints: lookup must fall back to the BlazePose table.
	kps := make([]pose.Keypoint, 33)
	for i := range kps {
		kps[i] = pose.Keypoint{X: float64(i), Y: 0, Score: 0.9}
	}
	s := skeleton.New(pose.Frame{Keypoints: kps})
	require.Equal(t, pose.SchemeBlazePose33, s.Scheme())

	got, ok := s.Keypoint(pose.JointLeftShoulder)
	require.True(t, ok)
	assert.Equal(t, 11.0, got.X)
}

func TestConfidence(t *testing.T) {
	s := skeleton.New(pose.Frame{Keypoints: []pose.Keypoint{
		{Name: "a", Score: 0.4},
		{Name: "b", Score: 0.8},
		{Name: "c", Score: 0}, // unscored, excluded from the mean
	}})
	assert.InDelta(t, 0.6, s.Confidence(), 1e-9)

	empty := skeleton.New(pose.Frame{})
	assert.Equal(t, 0.0, empty.Confidence())
}

func TestLowScoreKeypointsFailGate(t *testing.T) {
	f := uprightFrame()
	for i := range f.Keypoints {
		f.Keypoints[i].Score = 0.05
	}
	s := skeleton.New(f)
	assert.False(t, s.HasRequiredKeypoints())
}

func TestWristHeights(t *testing.T) {
	f := uprightFrame()
	// Raise both wrists 50px above the shoulder midpoint (y=100).
	setKP(&f, "left_wrist", 80, 50)
	setKP(&f, "right_wrist", 120, 50)
	s := skeleton.New(f)
	l, r, avg, ok := s.WristHeights()
	require.True(t, ok)
	assert.InDelta(t, 50, l, 0.001)
	assert.InDelta(t, 50, r, 0.001)
	assert.InDelta(t, 50, avg, 0.001)
}

func TestKneeAngleStraightLeg(t *testing.T) {
	s := skeleton.New(uprightFrame())
	assert.InDelta(t, 180, s.KneeAngle(), 0.001)
	assert.False(t, math.IsNaN(s.HipAngle()))
}
