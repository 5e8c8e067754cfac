// Package pose - Body part table, keypoints and the landmark column schema shared by every table
// reader and writer.
package pose

import (
	"github.com/pkg/errors"
)

// BodyPart identifies one of the 17 landmarks returned by the keypoint detector.
//
// The ordinal matches the detector's output order and the column order of every persisted table.
type BodyPart int

const (
	Nose BodyPart = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// NumBodyParts is the number of landmarks in a pose.
const NumBodyParts = 17

// bodyParts is the ordered (name, ordinal) table. Column names are derived from it.
var bodyParts = [NumBodyParts]struct {
	part BodyPart
	name string
}{
	{Nose, "NOSE"},
	{LeftEye, "LEFT_EYE"},
	{RightEye, "RIGHT_EYE"},
	{LeftEar, "LEFT_EAR"},
	{RightEar, "RIGHT_EAR"},
	{LeftShoulder, "LEFT_SHOULDER"},
	{RightShoulder, "RIGHT_SHOULDER"},
	{LeftElbow, "LEFT_ELBOW"},
	{RightElbow, "RIGHT_ELBOW"},
	{LeftWrist, "LEFT_WRIST"},
	{RightWrist, "RIGHT_WRIST"},
	{LeftHip, "LEFT_HIP"},
	{RightHip, "RIGHT_HIP"},
	{LeftKnee, "LEFT_KNEE"},
	{RightKnee, "RIGHT_KNEE"},
	{LeftAnkle, "LEFT_ANKLE"},
	{RightAnkle, "RIGHT_ANKLE"},
}

// String returns the upper snake case name used in table headers.
func (b BodyPart) String() string {
	if !b.Valid() {
		return "UNKNOWN"
	}
	return bodyParts[b].name
}

// Index returns the ordinal of the body part.
func (b BodyPart) Index() int {
	return int(b)
}

// Valid reports whether b is one of the 17 known body parts.
func (b BodyPart) Valid() bool {
	return b >= Nose && b <= RightAnkle
}

// BodyParts returns every body part in ordinal order.
func BodyParts() []BodyPart {
	out := make([]BodyPart, NumBodyParts)
	for i, entry := range bodyParts {
		out[i] = entry.part
	}
	return out
}

// ParseBodyPart resolves a header name such as "LEFT_HIP" to its body part.
//
// Arguments:
//   - name: The upper snake case body part name.
//
// Returns:
//   - BodyPart: The body part.
//   - error: An error if the name is unknown.
func ParseBodyPart(name string) (BodyPart, error) {
	for _, entry := range bodyParts {
		if entry.name == name {
			return entry.part, nil
		}
	}
	return 0, errors.Errorf("unknown body part %q", name)
}
