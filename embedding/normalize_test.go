package embedding

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-pose/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// standingPose returns the hip/shoulder layout used across the normalizer tests with the
// remaining landmarks scattered around the body.
func standingPose() pose.Pose {
	var p pose.Pose
	for i := range p {
		p[i] = pose.Keypoint{X: 0.4 + float32(i)*0.02, Y: 0.1 + float32(i)*0.04, Score: 0.9}
	}
	p[pose.LeftHip] = pose.Keypoint{X: 0.5, Y: 0.5, Score: 0.9}
	p[pose.RightHip] = pose.Keypoint{X: 0.7, Y: 0.5, Score: 0.9}
	p[pose.LeftShoulder] = pose.Keypoint{X: 0.5, Y: 0.2, Score: 0.9}
	p[pose.RightShoulder] = pose.Keypoint{X: 0.7, Y: 0.2, Score: 0.9}
	return p
}

func randomLandmarks(r *rand.Rand) pose.Landmarks {
	var l pose.Landmarks
	for i := range l {
		l[i] = pose.Point{X: r.Float32()*400 + 20, Y: r.Float32()*600 + 10}
	}
	return l
}

func assertLandmarksInDelta(t *testing.T, want, got pose.Landmarks, delta float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, delta, "landmark %d x", i)
		assert.InDelta(t, want[i].Y, got[i].Y, delta, "landmark %d y", i)
	}
}

func TestScenarioStandingPose(t *testing.T) {
	l := standingPose().Landmarks()

	hip := PoseCenter(l)
	assert.InDelta(t, 0.6, hip.X, 1e-6)
	assert.InDelta(t, 0.5, hip.Y, 1e-6)

	shoulder := Center(l, pose.LeftShoulder, pose.RightShoulder)
	assert.InDelta(t, 0.6, shoulder.X, 1e-6)
	assert.InDelta(t, 0.2, shoulder.Y, 1e-6)

	assert.InDelta(t, 0.3, TorsoSize(l), 1e-6)
	assert.GreaterOrEqual(t, PoseSize(l), float32(0.75)-1e-6)

	normalized := Normalize(l)
	center := PoseCenter(normalized)
	assert.Equal(t, float32(0), center.X)
	assert.Equal(t, float32(0), center.Y)
	assert.Equal(t, -normalized[pose.RightHip].X, normalized[pose.LeftHip].X)
}

func TestHipCenterAtOrigin(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		c := PoseCenter(Normalize(randomLandmarks(r)))
		assert.InDelta(t, 0, c.X, 1e-5)
		assert.InDelta(t, 0, c.Y, 1e-5)
	}
}

func TestTranslationInvariance(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		l := randomLandmarks(r)
		dx, dy := r.Float32()*200-100, r.Float32()*200-100

		var moved pose.Landmarks
		for j, pt := range l {
			moved[j] = pose.Point{X: pt.X + dx, Y: pt.Y + dy}
		}
		assertLandmarksInDelta(t, Normalize(l), Normalize(moved), 1e-4)
	}
}

func TestScaleInvariance(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	for _, k := range []float32{0.01, 0.5, 3, 250} {
		l := randomLandmarks(r)
		var scaled pose.Landmarks
		for j, pt := range l {
			scaled[j] = pose.Point{X: pt.X * k, Y: pt.Y * k}
		}
		assertLandmarksInDelta(t, Normalize(l), Normalize(scaled), 1e-4)
	}
}

func TestPoseSizeLowerBound(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	for i := 0; i < 100; i++ {
		l := randomLandmarks(r)
		assert.GreaterOrEqual(t, PoseSize(l), TorsoSize(l)*TorsoSizeMultiplier*(1-1e-6))
		assert.GreaterOrEqual(t, PoseSize(l), MaxDistance(l))
	}
}

func TestMaxDistanceIsPerSample(t *testing.T) {
	l := standingPose().Landmarks()
	l[pose.RightAnkle] = pose.Point{X: 0.6, Y: 10.5}
	assert.InDelta(t, 10, MaxDistance(l), 1e-5)
	assert.InDelta(t, 10, PoseSize(l), 1e-5)
}

func TestDegeneratePose(t *testing.T) {
	var l pose.Landmarks
	for i := range l {
		l[i] = pose.Point{X: 42, Y: 42}
	}
	assert.Equal(t, float32(Epsilon), PoseSize(l))

	for _, pt := range Normalize(l) {
		assert.False(t, math32.IsNaN(pt.X) || math32.IsInf(pt.X, 0))
		assert.False(t, math32.IsNaN(pt.Y) || math32.IsInf(pt.Y, 0))
		assert.Equal(t, float32(0), pt.X)
	}
}

func TestNormalizedRange(t *testing.T) {
	r := rand.New(rand.NewSource(19))
	for i := 0; i < 20; i++ {
		for _, pt := range Normalize(randomLandmarks(r)) {
			require.LessOrEqual(t, math32.Hypot(pt.X, pt.Y), float32(1)+1e-5)
		}
	}
}
