// Package embedding - Pose normalization and the 34 value classifier input.
//
// A pose is translated so the hip center sits at the origin, then divided by a pose size that is
// the larger of 2.5 × torso length and the farthest landmark from the hip center. The result is
// invariant to where the subject stands in the frame and how large they appear.
package embedding

import (
	"math"

	"github.com/nvr-ai/go-pose/pose"
)

const (
	// TorsoSizeMultiplier scales the torso length into the minimum pose size.
	TorsoSizeMultiplier = 2.5

	// Epsilon is the smallest pose size used as a divisor.
	Epsilon = 1e-6
)

// point64 is a landmark widened to float64. All normalization arithmetic runs at this precision and
// narrows to float32 only on output.
type point64 struct {
	x, y float64
}

type landmarks64 [pose.NumBodyParts]point64

func widen(l pose.Landmarks) landmarks64 {
	var out landmarks64
	for i, pt := range l {
		out[i] = point64{x: float64(pt.X), y: float64(pt.Y)}
	}
	return out
}

func narrow(p point64) pose.Point {
	return pose.Point{X: float32(p.x), Y: float32(p.y)}
}

func (l *landmarks64) center(left, right pose.BodyPart) point64 {
	a, b := l[left], l[right]
	return point64{x: 0.5*a.x + 0.5*b.x, y: 0.5*a.y + 0.5*b.y}
}

func (l *landmarks64) hipCenter() point64 {
	return l.center(pose.LeftHip, pose.RightHip)
}

func (l *landmarks64) torsoSize() float64 {
	return distance(l.center(pose.LeftShoulder, pose.RightShoulder), l.hipCenter())
}

func (l *landmarks64) maxDistance() float64 {
	c := l.hipCenter()
	var farthest float64
	for _, pt := range l {
		if d := distance(pt, c); d > farthest {
			farthest = d
		}
	}
	return farthest
}

func (l *landmarks64) poseSize() float64 {
	size := math.Max(l.torsoSize()*TorsoSizeMultiplier, l.maxDistance())
	if !(size > Epsilon) {
		return Epsilon
	}
	return size
}

// Center returns the midpoint of two landmarks.
func Center(l pose.Landmarks, left, right pose.BodyPart) pose.Point {
	w := widen(l)
	return narrow(w.center(left, right))
}

// PoseCenter returns the hip center.
func PoseCenter(l pose.Landmarks) pose.Point {
	return Center(l, pose.LeftHip, pose.RightHip)
}

// Translate moves every landmark so that the hip center sits at the origin.
func Translate(l pose.Landmarks) pose.Landmarks {
	w := widen(l)
	c := w.hipCenter()
	var out pose.Landmarks
	for i, pt := range w {
		out[i] = narrow(point64{x: pt.x - c.x, y: pt.y - c.y})
	}
	return out
}

// TorsoSize returns the distance between the shoulder center and the hip center.
func TorsoSize(l pose.Landmarks) float32 {
	w := widen(l)
	return float32(w.torsoSize())
}

// MaxDistance returns the largest distance from the hip center to any landmark of this pose.
func MaxDistance(l pose.Landmarks) float32 {
	w := widen(l)
	return float32(w.maxDistance())
}

// PoseSize returns max(TorsoSize × 2.5, MaxDistance), never smaller than Epsilon.
//
// Both terms are measured relative to the hip center, so the result does not depend on whether l
// has already been translated.
func PoseSize(l pose.Landmarks) float32 {
	w := widen(l)
	return float32(w.poseSize())
}

// Normalize translates the hip center to the origin and scales by the pose size.
//
// Arguments:
//   - l: Raw landmark coordinates, in whatever space the detector produced them.
//
// Returns:
//   - pose.Landmarks: Translation and scale invariant coordinates. Left and right hips that are
//     mirror images of each other come out as exact negatives.
func Normalize(l pose.Landmarks) pose.Landmarks {
	w := widen(l)
	c := w.hipCenter()
	var translated landmarks64
	for i, pt := range w {
		translated[i] = point64{x: pt.x - c.x, y: pt.y - c.y}
	}
	size := translated.poseSize()

	var out pose.Landmarks
	for i, pt := range translated {
		out[i] = narrow(point64{x: pt.x / size, y: pt.y / size})
	}
	return out
}

func distance(a, b point64) float64 {
	return math.Hypot(a.x-b.x, a.y-b.y)
}
