package pose

import (
	"github.com/pkg/errors"
)

// ErrMalformedPose is returned when a pose does not carry exactly 17 landmarks.
//
// It signals a broken contract between the detector and the tables, never bad input data.
var ErrMalformedPose = errors.New("malformed pose")

// RowWidth is the number of raw values persisted per pose: 17 × (x, y, score).
const RowWidth = NumBodyParts * 3

// Keypoint is one landmark observation.
type Keypoint struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Score float32 `json:"score"`
}

// Point is a 2D landmark coordinate with the score dropped.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Pose is the full set of landmarks for one image, indexed by BodyPart.
type Pose [NumBodyParts]Keypoint

// Landmarks is the coordinate-only view of a pose.
type Landmarks [NumBodyParts]Point

// FromKeypoints builds a pose from a detector result.
//
// Arguments:
//   - keypoints: Exactly 17 keypoints in BodyPart order.
//
// Returns:
//   - Pose: The pose.
//   - error: ErrMalformedPose if the length is not 17.
func FromKeypoints(keypoints []Keypoint) (Pose, error) {
	var p Pose
	if len(keypoints) != NumBodyParts {
		return p, errors.Wrapf(ErrMalformedPose, "expected %d keypoints, got %d", NumBodyParts, len(keypoints))
	}
	copy(p[:], keypoints)
	return p, nil
}

// FromRow builds a pose from a flattened row of 17 × (x, y, score) values.
func FromRow(row []float32) (Pose, error) {
	var p Pose
	if len(row) != RowWidth {
		return p, errors.Wrapf(ErrMalformedPose, "expected %d values, got %d", RowWidth, len(row))
	}
	for i := range p {
		p[i] = Keypoint{X: row[i*3], Y: row[i*3+1], Score: row[i*3+2]}
	}
	return p, nil
}

// Row flattens the pose into 17 × (x, y, score) values in BodyPart order.
func (p Pose) Row() []float32 {
	row := make([]float32, 0, RowWidth)
	for _, kp := range p {
		row = append(row, kp.X, kp.Y, kp.Score)
	}
	return row
}

// Get returns the keypoint of a body part.
func (p Pose) Get(part BodyPart) Keypoint {
	return p[part]
}

// MinScore returns the lowest keypoint confidence.
func (p Pose) MinScore() float32 {
	lowest := p[0].Score
	for _, kp := range p[1:] {
		if kp.Score < lowest {
			lowest = kp.Score
		}
	}
	return lowest
}

// Undetected counts the keypoints whose score does not exceed threshold.
func (p Pose) Undetected(threshold float32) int {
	n := 0
	for _, kp := range p {
		if kp.Score <= threshold {
			n++
		}
	}
	return n
}

// Landmarks drops the scores.
func (p Pose) Landmarks() Landmarks {
	var l Landmarks
	for i, kp := range p {
		l[i] = Point{X: kp.X, Y: kp.Y}
	}
	return l
}

// LandmarksFromSlice builds landmarks from a flattened 17 × (x, y) slice.
func LandmarksFromSlice(values []float32) (Landmarks, error) {
	var l Landmarks
	if len(values) != NumBodyParts*2 {
		return l, errors.Wrapf(ErrMalformedPose, "expected %d coordinates, got %d", NumBodyParts*2, len(values))
	}
	for i := range l {
		l[i] = Point{X: values[i*2], Y: values[i*2+1]}
	}
	return l, nil
}

// Flatten returns the landmarks row-major as 17 × (x, y).
func (l Landmarks) Flatten() []float32 {
	out := make([]float32, 0, NumBodyParts*2)
	for _, pt := range l {
		out = append(out, pt.X, pt.Y)
	}
	return out
}
