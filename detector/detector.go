// Package detector - Keypoint detection for single person pose estimation.
package detector

import (
	"context"
	"image"

	"github.com/nvr-ai/go-pose/inference/providers"
	"github.com/nvr-ai/go-pose/pose"
)

// Detector returns the 17 keypoints of the most prominent person in an image.
//
// Keypoint coordinates are in image pixel space, in BodyPart order.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (pose.Pose, error)
	Close() error
}

// Func adapts a function to the Detector interface.
type Func func(ctx context.Context, img image.Image) (pose.Pose, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, img image.Image) (pose.Pose, error) {
	return f(ctx, img)
}

// Close is a no-op.
func (f Func) Close() error {
	return nil
}

// Config represents the configuration for the MoveNet detector.
type Config struct {
	// ModelPath is the MoveNet single pose ONNX model.
	ModelPath string
	// InputSize is the square model input: 256 for Thunder, 192 for Lightning.
	InputSize int
	// InferenceCount is the number of passes per image. Every pass after the first crops around
	// the previous detection.
	InferenceCount int
	// InputName and OutputName override the model node names.
	InputName  string
	OutputName string
	// Provider configures the ONNX Runtime session.
	Provider providers.Config
}

// DefaultConfig returns the MoveNet Thunder configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:      "movenet_thunder.onnx",
		InputSize:      256,
		InferenceCount: 3,
		Provider:       providers.DefaultConfig(),
	}
}
