package classifier

import (
	"context"
	"math/rand"

	"github.com/nvr-ai/go-pose/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const crossEntropyEpsilon = 1e-7

// TrainConfig holds the fit hyperparameters.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	Patience     int
	LearningRate float64
	Dropout      float64
	Seed         int64
	// CheckpointDir receives the best model in browser format whenever validation accuracy improves.
	// Empty disables checkpoints.
	CheckpointDir string
}

// DefaultTrainConfig returns the reference hyperparameters.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       200,
		BatchSize:    16,
		Patience:     20,
		LearningRate: 0.001,
		Dropout:      DropoutRate,
		Seed:         42,
	}
}

// Epoch is one row of the training history.
type Epoch struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// History records every completed epoch.
type History struct {
	Epochs          []Epoch
	BestEpoch       int
	BestValAccuracy float64
	StoppedEarly    bool
}

func (c TrainConfig) validate() error {
	switch {
	case c.Epochs <= 0:
		return errors.New("epochs must be positive")
	case c.BatchSize <= 0:
		return errors.New("batch size must be positive")
	case c.LearningRate <= 0:
		return errors.New("learning rate must be positive")
	case c.Dropout < 0 || c.Dropout >= 1:
		return errors.New("dropout must be in [0, 1)")
	}
	return nil
}

// Train fits a new model on train and selects the weights with the best accuracy on val.
// When val is empty the training set doubles as the validation set.
func Train(ctx context.Context, cfg TrainConfig, classNames []string, train, val []Example, logger *zap.Logger) (*Model, History, error) {
	var history History
	if err := cfg.validate(); err != nil {
		return nil, history, err
	}
	if len(train) == 0 {
		return nil, history, errors.Wrap(ErrNoSamples, "training set is empty")
	}
	if len(classNames) < 2 {
		return nil, history, errors.Wrapf(ErrShape, "need at least 2 classes, got %d", len(classNames))
	}
	for _, set := range [][]Example{train, val} {
		for _, ex := range set {
			if ex.Label < 0 || ex.Label >= len(classNames) {
				return nil, history, errors.Wrapf(ErrShape, "label %d out of range for %d classes", ex.Label, len(classNames))
			}
		}
	}
	if len(val) == 0 {
		val = train
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	model := NewModel(classNames, rng)

	net, err := newTrainingGraph(model, cfg.BatchSize, cfg.Dropout)
	if err != nil {
		return nil, history, err
	}
	defer net.vm.Close()

	solver := G.NewAdamSolver(G.WithLearnRate(cfg.LearningRate), G.WithEps(crossEntropyEpsilon))

	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	n := model.NumClasses()
	xs := make([]float32, cfg.BatchSize*InputSize)
	ys := make([]float32, cfg.BatchSize*n)
	xt := tensor.New(tensor.WithShape(cfg.BatchSize, InputSize), tensor.WithBacking(xs))
	yt := tensor.New(tensor.WithShape(cfg.BatchSize, n), tensor.WithBacking(ys))

	best := model.Clone()
	history.BestValAccuracy = -1
	wait := 0

	logger.Info("training classifier",
		zap.Int("train", len(train)),
		zap.Int("val", len(val)),
		zap.Int("classes", n),
		zap.Int("epochs", cfg.Epochs),
		zap.Int("batch_size", cfg.BatchSize),
	)

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		batches := 0
		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, history, err
			}

			// The graph has a fixed batch dimension so the last partial batch wraps around.
			for k := 0; k < cfg.BatchSize; k++ {
				ex := train[order[(start+k)%len(order)]]
				copy(xs[k*InputSize:(k+1)*InputSize], ex.Embedding[:])
				row := ys[k*n : (k+1)*n]
				for j := range row {
					row[j] = 0
				}
				row[ex.Label] = 1
			}

			loss, err := net.step(xt, yt, solver, rng)
			if err != nil {
				return nil, history, errors.Wrapf(err, "epoch %d", epoch)
			}
			lossSum += loss
			batches++
		}

		net.copyWeights(model)

		_, acc, err := model.Evaluate(train)
		if err != nil {
			return nil, history, err
		}
		valLoss, valAcc, err := model.Evaluate(val)
		if err != nil {
			return nil, history, err
		}

		record := Epoch{
			Epoch:       epoch,
			Loss:        lossSum / float64(batches),
			Accuracy:    acc,
			ValLoss:     valLoss,
			ValAccuracy: valAcc,
		}
		history.Epochs = append(history.Epochs, record)

		metrics.TrainEpochsTotal.Inc()
		metrics.TrainLoss.Set(record.Loss)
		metrics.TrainValAccuracy.Set(valAcc)

		logger.Debug("epoch",
			zap.Int("epoch", epoch),
			zap.Float64("loss", record.Loss),
			zap.Float64("accuracy", acc),
			zap.Float64("val_loss", valLoss),
			zap.Float64("val_accuracy", valAcc),
		)

		if valAcc > history.BestValAccuracy {
			history.BestValAccuracy = valAcc
			history.BestEpoch = epoch
			best = model.Clone()
			wait = 0
			if cfg.CheckpointDir != "" {
				if err := Export(best, cfg.CheckpointDir); err != nil {
					return nil, history, errors.Wrap(err, "checkpoint")
				}
				logger.Debug("checkpoint saved", zap.Int("epoch", epoch), zap.Float64("val_accuracy", valAcc))
			}
			continue
		}

		wait++
		if cfg.Patience > 0 && wait >= cfg.Patience {
			history.StoppedEarly = true
			logger.Info("early stopping",
				zap.Int("epoch", epoch),
				zap.Int("best_epoch", history.BestEpoch),
			)
			break
		}
	}

	logger.Info("training finished",
		zap.Int("epochs", len(history.Epochs)),
		zap.Int("best_epoch", history.BestEpoch),
		zap.Float64("best_val_accuracy", history.BestValAccuracy),
	)

	return best, history, nil
}

type trainingGraph struct {
	g          *G.ExprGraph
	x, y       *G.Node
	loss       *G.Node
	lossVal    G.Value
	learnables G.Nodes
	vm         G.VM

	// Inverted dropout masks, one per hidden layer, refilled from the seeded source every batch.
	dropout float64
	masks   []*G.Node
	maskVal []*tensor.Dense
}

func newTrainingGraph(m *Model, batch int, dropout float64) (*trainingGraph, error) {
	g := G.NewGraph()
	net := &trainingGraph{
		g: g,
		x: G.NewMatrix(g, tensor.Float32, G.WithShape(batch, InputSize), G.WithName("x")),
		y: G.NewMatrix(g, tensor.Float32, G.WithShape(batch, m.NumClasses()), G.WithName("y")),

		dropout: dropout,
	}

	h := net.x
	for _, l := range m.Layers {
		w := G.NewMatrix(g, tensor.Float32,
			G.WithShape(l.In, l.Out),
			G.WithName(l.Name+"/kernel"),
			G.WithValue(tensor.New(tensor.WithShape(l.In, l.Out), tensor.WithBacking(append([]float32(nil), l.Kernel...)))),
		)
		b := G.NewMatrix(g, tensor.Float32,
			G.WithShape(1, l.Out),
			G.WithName(l.Name+"/bias"),
			G.WithValue(tensor.New(tensor.WithShape(1, l.Out), tensor.WithBacking(append([]float32(nil), l.Bias...)))),
		)
		net.learnables = append(net.learnables, w, b)

		xw, err := G.Mul(h, w)
		if err != nil {
			return nil, errors.Wrapf(err, "%s matmul", l.Name)
		}
		z, err := G.BroadcastAdd(xw, b, nil, []byte{0})
		if err != nil {
			return nil, errors.Wrapf(err, "%s bias", l.Name)
		}

		switch l.Activation {
		case ActivationRelu6:
			if h, err = relu6(z); err != nil {
				return nil, errors.Wrapf(err, "%s activation", l.Name)
			}
			if dropout > 0 {
				mask := G.NewMatrix(g, tensor.Float32, G.WithShape(batch, l.Out), G.WithName(l.Name+"/dropout_mask"))
				if h, err = G.HadamardProd(h, mask); err != nil {
					return nil, errors.Wrapf(err, "%s dropout", l.Name)
				}
				net.masks = append(net.masks, mask)
				net.maskVal = append(net.maskVal, tensor.New(tensor.WithShape(batch, l.Out), tensor.Of(tensor.Float32)))
			}
		case ActivationSoftmax:
			if h, err = G.SoftMax(z); err != nil {
				return nil, errors.Wrapf(err, "%s softmax", l.Name)
			}
		default:
			return nil, errors.Errorf("%s: unsupported activation %q", l.Name, l.Activation)
		}
	}

	loss, err := crossEntropy(h, net.y)
	if err != nil {
		return nil, err
	}
	net.loss = loss
	G.Read(loss, &net.lossVal)

	if _, err := G.Grad(loss, net.learnables...); err != nil {
		return nil, errors.Wrap(err, "gradients")
	}

	net.vm = G.NewTapeMachine(g, G.BindDualValues(net.learnables...))
	return net, nil
}

// relu6 is min(max(x, 0), 6) expressed as relu(x) - relu(x - 6).
func relu6(x *G.Node) (*G.Node, error) {
	six := G.NewConstant(float32(6))
	pos, err := G.Rectify(x)
	if err != nil {
		return nil, err
	}
	shifted, err := G.Sub(x, six)
	if err != nil {
		return nil, err
	}
	over, err := G.Rectify(shifted)
	if err != nil {
		return nil, err
	}
	return G.Sub(pos, over)
}

func crossEntropy(probs, onehot *G.Node) (*G.Node, error) {
	eps := G.NewConstant(float32(crossEntropyEpsilon))
	clipped, err := G.Add(probs, eps)
	if err != nil {
		return nil, errors.Wrap(err, "loss")
	}
	logp, err := G.Log(clipped)
	if err != nil {
		return nil, errors.Wrap(err, "loss")
	}
	prod, err := G.HadamardProd(onehot, logp)
	if err != nil {
		return nil, errors.Wrap(err, "loss")
	}
	perSample, err := G.Sum(prod, 1)
	if err != nil {
		return nil, errors.Wrap(err, "loss")
	}
	mean, err := G.Mean(perSample)
	if err != nil {
		return nil, errors.Wrap(err, "loss")
	}
	return G.Neg(mean)
}

func (t *trainingGraph) step(x, y *tensor.Dense, solver G.Solver, rng *rand.Rand) (float64, error) {
	defer t.vm.Reset()

	keep := float32(1 / (1 - t.dropout))
	for i, mask := range t.masks {
		values := t.maskVal[i].Data().([]float32)
		for j := range values {
			if rng.Float64() < t.dropout {
				values[j] = 0
			} else {
				values[j] = keep
			}
		}
		if err := G.Let(mask, t.maskVal[i]); err != nil {
			return 0, errors.Wrap(err, "bind dropout mask")
		}
	}

	if err := G.Let(t.x, x); err != nil {
		return 0, errors.Wrap(err, "bind inputs")
	}
	if err := G.Let(t.y, y); err != nil {
		return 0, errors.Wrap(err, "bind labels")
	}
	if err := t.vm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "forward/backward")
	}
	if err := solver.Step(G.NodesToValueGrads(t.learnables)); err != nil {
		return 0, errors.Wrap(err, "solver step")
	}

	loss, ok := t.lossVal.Data().(float32)
	if !ok {
		return 0, errors.Errorf("unexpected loss value %T", t.lossVal.Data())
	}
	return float64(loss), nil
}

// copyWeights writes the graph's current learnables back into m.
func (t *trainingGraph) copyWeights(m *Model) {
	for i := range m.Layers {
		kernel := t.learnables[2*i].Value().Data().([]float32)
		bias := t.learnables[2*i+1].Value().Data().([]float32)
		copy(m.Layers[i].Kernel, kernel)
		copy(m.Layers[i].Bias, bias)
	}
}
