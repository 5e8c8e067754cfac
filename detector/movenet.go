package detector

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/inference/providers"
	"github.com/nvr-ai/go-pose/metrics"
	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Model runs one MoveNet forward pass.
type Model interface {
	// InputSize is the side of the square input.
	InputSize() int
	// Infer returns 17 × (y, x, score) with coordinates normalized to the crop.
	Infer(crop *image.RGBA) ([pose.RowWidth]float32, error)
	Close() error
}

// MoveNet is a Detector that refines each detection over several passes, cropping around the
// person found by the previous pass.
type MoveNet struct {
	mu             sync.Mutex
	model          Model
	inferenceCount int
	logger         *zap.Logger
}

// NewMoveNet wraps a model.
//
// Arguments:
//   - model: The forward pass.
//   - inferenceCount: Passes per image; values below 1 are treated as 1.
//   - logger: May be nil.
//
// Returns:
//   - *MoveNet: The detector. Close releases the model.
func NewMoveNet(model Model, inferenceCount int, logger *zap.Logger) *MoveNet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MoveNet{
		model:          model,
		inferenceCount: max(inferenceCount, 1),
		logger:         logger,
	}
}

// Open loads the ONNX model described by cfg and returns a ready detector.
func Open(cfg Config, logger *zap.Logger) (*MoveNet, error) {
	model, err := NewONNXModel(cfg)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("loaded pose model",
			zap.String("path", cfg.ModelPath),
			zap.Int("input_size", cfg.InputSize),
			zap.String("backend", string(cfg.Provider.Backend)))
	}
	return NewMoveNet(model, cfg.InferenceCount, logger), nil
}

// Detect runs every refinement pass on img and returns keypoints in pixel coordinates.
//
// The first pass always starts from the full image, so results do not depend on earlier calls.
func (m *MoveNet) Detect(ctx context.Context, img image.Image) (pose.Pose, error) {
	start := time.Now()
	defer func() {
		metrics.DetectDuration.Observe(time.Since(start).Seconds())
	}()

	rgba := images.ToRGBA(img)
	height, width := rgba.Bounds().Dy(), rgba.Bounds().Dx()

	m.mu.Lock()
	defer m.mu.Unlock()

	var detection pose.Pose
	region := InitCropRegion(height, width)
	for pass := 0; pass < m.inferenceCount; pass++ {
		if err := ctx.Err(); err != nil {
			return pose.Pose{}, err
		}

		crop := CropAndResize(rgba, region, m.model.InputSize())
		raw, err := m.model.Infer(crop)
		if err != nil {
			return pose.Pose{}, errors.Wrapf(err, "inference pass %d", pass+1)
		}

		detection = toImageSpace(fromYXS(raw), region)
		region = DetermineCropRegion(detection, height, width)
		m.logger.Debug("pose pass",
			zap.Int("pass", pass+1),
			zap.Float32("min_score", detection.MinScore()),
			zap.Float32("next_crop_width", region.Width))
	}

	return toPixels(detection, height, width), nil
}

// Close releases the model.
func (m *MoveNet) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model.Close()
}

// fromYXS reorders MoveNet's (y, x, score) triples into keypoints.
func fromYXS(raw [pose.RowWidth]float32) pose.Pose {
	var p pose.Pose
	for i := range p {
		p[i] = pose.Keypoint{Y: raw[i*3], X: raw[i*3+1], Score: raw[i*3+2]}
	}
	return p
}

// ONNXModel runs MoveNet single pose through ONNX Runtime. The model takes a [1, size, size, 3]
// int32 RGB tensor and returns [1, 1, 17, 3].
type ONNXModel struct {
	session *providers.Session[int32, float32]
	size    int
}

// NewONNXModel creates the ONNX Runtime session for cfg.
func NewONNXModel(cfg Config) (*ONNXModel, error) {
	if cfg.InputSize <= 0 {
		return nil, errors.Errorf("invalid input size %d", cfg.InputSize)
	}
	provider, err := cfg.Provider.Provider()
	if err != nil {
		return nil, errors.Wrap(err, "execution provider")
	}

	size := int64(cfg.InputSize)
	session, err := providers.NewSession[int32, float32](provider, cfg.Provider, providers.SessionArgs{
		ModelPath:   cfg.ModelPath,
		InputName:   cfg.InputName,
		OutputName:  cfg.OutputName,
		InputShape:  []int64{1, size, size, 3},
		OutputShape: []int64{1, 1, pose.NumBodyParts, 3},
	})
	if err != nil {
		return nil, errors.Wrap(err, "pose model session")
	}

	return &ONNXModel{session: session, size: cfg.InputSize}, nil
}

// InputSize returns the side of the square input.
func (o *ONNXModel) InputSize() int {
	return o.size
}

// Infer copies crop into the input tensor and runs the session.
func (o *ONNXModel) Infer(crop *image.RGBA) ([pose.RowWidth]float32, error) {
	var out [pose.RowWidth]float32
	if b := crop.Bounds(); b.Dx() != o.size || b.Dy() != o.size {
		return out, errors.Errorf("crop is %dx%d, model expects %dx%d", b.Dx(), b.Dy(), o.size, o.size)
	}

	images.PackRGB(crop, o.session.Input.GetData(), func(v uint8) int32 { return int32(v) })
	if err := o.session.Run(); err != nil {
		return out, errors.Wrap(err, "run pose model")
	}
	copy(out[:], o.session.Output.GetData())
	return out, nil
}

// Close releases the session.
func (o *ONNXModel) Close() error {
	return o.session.Close()
}
