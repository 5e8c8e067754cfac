package embedding

import (
	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// BatchFromLandmarks packs landmarks into an N×17×2 float32 tensor.
func BatchFromLandmarks(batch []pose.Landmarks) *tensor.Dense {
	backing := make([]float32, 0, len(batch)*Size)
	for _, l := range batch {
		backing = append(backing, l.Flatten()...)
	}
	return tensor.New(
		tensor.WithShape(len(batch), pose.NumBodyParts, 2),
		tensor.WithBacking(backing),
	)
}

// NormalizeBatch normalizes every sample of an N×17×2 float32 tensor independently.
//
// Arguments:
//   - t: The batch of raw landmark coordinates.
//
// Returns:
//   - *tensor.Dense: A new N×17×2 tensor of normalized coordinates.
//   - error: pose.ErrMalformedPose if the shape is not N×17×2, or an error for a non float32 tensor.
func NormalizeBatch(t *tensor.Dense) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 3 || shape[1] != pose.NumBodyParts || shape[2] != 2 {
		return nil, errors.Wrapf(pose.ErrMalformedPose, "expected Nx%dx2 tensor, got %v", pose.NumBodyParts, shape)
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("expected float32 tensor, got %v", t.Dtype())
	}

	src := t
	if t.IsView() {
		src = t.Materialize().(*tensor.Dense)
	}
	data := src.Data().([]float32)

	n := shape[0]
	out := make([]float32, len(data))
	for i := 0; i < n; i++ {
		sample := data[i*Size : (i+1)*Size]
		l, err := pose.LandmarksFromSlice(sample)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
		copy(out[i*Size:], Normalize(l).Flatten())
	}

	return tensor.New(tensor.WithShape(n, pose.NumBodyParts, 2), tensor.WithBacking(out)), nil
}
