package server

import (
	"context"
	"image"

	"github.com/nvr-ai/go-pose/classifier"
	"github.com/nvr-ai/go-pose/coach"
	"github.com/nvr-ai/go-pose/detector"
	"github.com/nvr-ai/go-pose/embedding"
	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
)

// ErrUnknownClass is returned for a target that the loaded model does not know.
var ErrUnknownClass = errors.New("unknown class")

// Keypoint is the wire form of one detected keypoint.
type Keypoint struct {
	Name  string  `json:"name"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Score float32 `json:"score"`
}

// ClassScore is one class probability.
type ClassScore struct {
	Name        string  `json:"name"`
	Probability float32 `json:"probability"`
}

// Analysis is the result of running one image through detection and classification.
type Analysis struct {
	Keypoints  []Keypoint   `json:"keypoints"`
	Detected   bool         `json:"detected"`
	Undetected int          `json:"undetected"`
	Embedding  []float32    `json:"embedding,omitempty"`
	Classes    []ClassScore `json:"classes,omitempty"`
	Top        *ClassScore  `json:"top,omitempty"`
	Target     *ClassScore  `json:"target,omitempty"`
	Coach      *coach.State `json:"coach,omitempty"`

	pose  pose.Pose
	probs []float32
}

// Analyzer runs detection, gating and classification.
type Analyzer struct {
	det   detector.Detector
	model *classifier.Model
	gate  coach.Gate
}

// NewAnalyzer returns an analyzer. model may be nil, in which case only keypoints are reported.
func NewAnalyzer(det detector.Detector, model *classifier.Model, gate coach.Gate) *Analyzer {
	return &Analyzer{det: det, model: model, gate: gate}
}

// ClassNames returns the loaded model classes.
func (a *Analyzer) ClassNames() []string {
	if a.model == nil {
		return nil
	}
	return a.model.ClassNames
}

// HasClass reports whether name is a class of the loaded model.
func (a *Analyzer) HasClass(name string) bool {
	for _, c := range a.ClassNames() {
		if c == name {
			return true
		}
	}
	return false
}

// Analyze detects the pose in img and classifies it when enough keypoints are visible.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image, target string) (Analysis, error) {
	if target != "" && !a.HasClass(target) {
		return Analysis{}, errors.Wrapf(ErrUnknownClass, "%q", target)
	}

	p, err := a.det.Detect(ctx, img)
	if err != nil {
		return Analysis{}, errors.Wrap(err, "detect")
	}

	out := Analysis{
		pose:       p,
		Undetected: p.Undetected(a.gate.KeypointThreshold),
		Detected:   a.gate.Detected(p),
		Keypoints:  make([]Keypoint, 0, pose.NumBodyParts),
	}
	for _, part := range pose.BodyParts() {
		kp := p.Get(part)
		out.Keypoints = append(out.Keypoints, Keypoint{Name: part.String(), X: kp.X, Y: kp.Y, Score: kp.Score})
	}

	if !out.Detected || a.model == nil {
		return out, nil
	}

	e := embedding.FromPose(p)
	probs, err := a.model.PredictOne(e)
	if err != nil {
		return Analysis{}, errors.Wrap(err, "classify")
	}

	out.Embedding = e.Slice()
	out.probs = probs
	out.Classes = make([]ClassScore, len(probs))
	for i, name := range a.model.ClassNames {
		out.Classes[i] = ClassScore{Name: name, Probability: probs[i]}
	}
	top := out.Classes[classifier.ArgMax(probs)]
	out.Top = &top
	for i := range out.Classes {
		if out.Classes[i].Name == target {
			out.Target = &out.Classes[i]
		}
	}
	return out, nil
}
