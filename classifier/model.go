// Package classifier - Feed-forward pose classifier over 34 value embeddings.
//
// The network is fixed: Dense(128, relu6) → Dropout(0.5) → Dense(64, relu6) → Dropout(0.5) →
// Dense(classes, softmax). Training runs on a gorgonia graph; inference runs directly on the
// learned weights with gorgonia tensors.
package classifier

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-pose/embedding"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Layer and model names, shared with the exported topology.
const (
	ModelName      = "yoga_pose_classifier"
	InputLayerName = "pose_embedding"
	OutputName     = "output"
)

// Activations.
const (
	ActivationRelu6   = "relu6"
	ActivationSoftmax = "softmax"
)

// Layer sizes.
const (
	InputSize   = embedding.Size
	HiddenSize1 = 128
	HiddenSize2 = 64
	DropoutRate = 0.5
)

// Errors.
var (
	ErrNoSamples = errors.New("no samples")
	ErrShape     = errors.New("shape mismatch")
)

// Dense is one fully connected layer. Kernel is In×Out row-major.
type Dense struct {
	Name       string
	In         int
	Out        int
	Activation string
	Kernel     []float32
	Bias       []float32
}

// Model is the classifier with its class names indexed by class_no.
type Model struct {
	ClassNames []string
	Layers     []Dense
}

// Example is one labeled embedding.
type Example struct {
	Embedding embedding.Embedding
	Label     int
}

// NewModel builds an untrained model with Glorot uniform kernels and zero biases.
func NewModel(classNames []string, rng *rand.Rand) *Model {
	n := len(classNames)
	return &Model{
		ClassNames: append([]string(nil), classNames...),
		Layers: []Dense{
			newDense("dense_1", InputSize, HiddenSize1, ActivationRelu6, rng),
			newDense("dense_2", HiddenSize1, HiddenSize2, ActivationRelu6, rng),
			newDense(OutputName, HiddenSize2, n, ActivationSoftmax, rng),
		},
	}
}

func newDense(name string, in, out int, activation string, rng *rand.Rand) Dense {
	limit := math32.Sqrt(6 / float32(in+out))
	kernel := make([]float32, in*out)
	for i := range kernel {
		kernel[i] = (rng.Float32()*2 - 1) * limit
	}
	return Dense{
		Name:       name,
		In:         in,
		Out:        out,
		Activation: activation,
		Kernel:     kernel,
		Bias:       make([]float32, out),
	}
}

// NumClasses returns the width of the output layer.
func (m *Model) NumClasses() int {
	return len(m.ClassNames)
}

// Clone deep copies the model.
func (m *Model) Clone() *Model {
	out := &Model{ClassNames: append([]string(nil), m.ClassNames...)}
	for _, l := range m.Layers {
		l.Kernel = append([]float32(nil), l.Kernel...)
		l.Bias = append([]float32(nil), l.Bias...)
		out.Layers = append(out.Layers, l)
	}
	return out
}

// Validate checks that the layers chain from 34 inputs to one output per class.
func (m *Model) Validate() error {
	if len(m.Layers) == 0 {
		return errors.Wrap(ErrShape, "model has no layers")
	}
	in := InputSize
	for _, l := range m.Layers {
		if l.In != in {
			return errors.Wrapf(ErrShape, "layer %s expects %d inputs, previous layer gives %d", l.Name, l.In, in)
		}
		if len(l.Kernel) != l.In*l.Out || len(l.Bias) != l.Out {
			return errors.Wrapf(ErrShape, "layer %s weights do not match %dx%d", l.Name, l.In, l.Out)
		}
		in = l.Out
	}
	if in != m.NumClasses() {
		return errors.Wrapf(ErrShape, "output width %d, %d class names", in, m.NumClasses())
	}
	return nil
}

// Predict returns one probability distribution per embedding. Dropout is not applied.
func (m *Model) Predict(embeddings []embedding.Embedding) ([][]float32, error) {
	if len(embeddings) == 0 {
		return nil, nil
	}

	n := len(embeddings)
	backing := make([]float32, 0, n*InputSize)
	for _, e := range embeddings {
		backing = append(backing, e[:]...)
	}

	cur := tensor.New(tensor.WithShape(n, InputSize), tensor.WithBacking(backing))
	for _, l := range m.Layers {
		w := tensor.New(tensor.WithShape(l.In, l.Out), tensor.WithBacking(l.Kernel))
		product, err := tensor.MatMul(cur, w)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %s", l.Name)
		}
		next, ok := product.(*tensor.Dense)
		if !ok {
			return nil, errors.Errorf("layer %s: unexpected tensor %T", l.Name, product)
		}

		data := next.Data().([]float32)
		for r := 0; r < n; r++ {
			row := data[r*l.Out : (r+1)*l.Out]
			for j := range row {
				row[j] += l.Bias[j]
			}
			activate(row, l.Activation)
		}
		cur = next
	}

	out := cur.Data().([]float32)
	width := m.Layers[len(m.Layers)-1].Out
	probs := make([][]float32, n)
	for i := range probs {
		probs[i] = append([]float32(nil), out[i*width:(i+1)*width]...)
	}
	return probs, nil
}

// PredictOne classifies a single embedding.
func (m *Model) PredictOne(e embedding.Embedding) ([]float32, error) {
	probs, err := m.Predict([]embedding.Embedding{e})
	if err != nil {
		return nil, err
	}
	return probs[0], nil
}

// Evaluate returns the mean categorical cross-entropy and the accuracy over examples.
func (m *Model) Evaluate(examples []Example) (loss, accuracy float64, err error) {
	if len(examples) == 0 {
		return 0, 0, ErrNoSamples
	}
	embeddings := make([]embedding.Embedding, len(examples))
	for i, ex := range examples {
		embeddings[i] = ex.Embedding
	}
	probs, err := m.Predict(embeddings)
	if err != nil {
		return 0, 0, err
	}

	correct := 0
	for i, ex := range examples {
		if ex.Label < 0 || ex.Label >= len(probs[i]) {
			return 0, 0, errors.Wrapf(ErrShape, "label %d out of range", ex.Label)
		}
		p := math32.Min(math32.Max(probs[i][ex.Label], crossEntropyEpsilon), 1-crossEntropyEpsilon)
		loss -= float64(math32.Log(p))
		if ArgMax(probs[i]) == ex.Label {
			correct++
		}
	}
	n := float64(len(examples))
	return loss / n, float64(correct) / n, nil
}

// ArgMax returns the index of the largest value.
func ArgMax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func activate(row []float32, activation string) {
	switch activation {
	case ActivationRelu6:
		for i, v := range row {
			row[i] = math32.Min(math32.Max(v, 0), 6)
		}
	case ActivationSoftmax:
		peak := row[ArgMax(row)]
		var sum float32
		for i, v := range row {
			row[i] = math32.Exp(v - peak)
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
	}
}
