package main

import (
	"context"
	"runtime"

	"github.com/nvr-ai/go-pose/classifier"
	"github.com/nvr-ai/go-pose/dataset"
	"github.com/nvr-ai/go-pose/embedding"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func runTrain(ctx context.Context, env *environment, args []string) error {
	cfg := &env.cfg
	fs := newFlagSet("train")
	fs.StringVar(&cfg.TrainCSV, "train-csv", cfg.TrainCSV, "combined train table (.csv or .parquet)")
	fs.StringVar(&cfg.TestCSV, "test-csv", cfg.TestCSV, "combined test table; empty skips the test evaluation")
	fs.IntVar(&cfg.Train.Epochs, "epochs", cfg.Train.Epochs, "maximum epochs")
	fs.IntVar(&cfg.Train.BatchSize, "batch-size", cfg.Train.BatchSize, "batch size")
	fs.IntVar(&cfg.Train.Patience, "patience", cfg.Train.Patience, "epochs without validation improvement before stopping")
	fs.Float64Var(&cfg.Train.LearningRate, "lr", cfg.Train.LearningRate, "Adam learning rate")
	fs.Float64Var(&cfg.Train.ValidationSplit, "val-split", cfg.Train.ValidationSplit, "validation fraction of the train table")
	fs.Int64Var(&cfg.Train.Seed, "seed", cfg.Train.Seed, "random seed")
	fs.StringVar(&cfg.Train.CheckpointDir, "checkpoint", cfg.Train.CheckpointDir, "best-model checkpoint folder")
	fs.StringVar(&cfg.Train.ModelDir, "out", cfg.Train.ModelDir, "exported browser model folder")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	samples, classNames, err := dataset.ReadCombined(cfg.TrainCSV)
	if err != nil {
		return errors.Wrap(err, "train table")
	}
	env.logger.Info("loaded train table",
		zap.String("path", cfg.TrainCSV),
		zap.Int("samples", len(samples)),
		zap.Strings("classes", classNames))

	trainSamples, valSamples := dataset.Split(samples, cfg.Train.ValidationSplit, cfg.Train.Seed)
	train, err := toExamples(ctx, trainSamples)
	if err != nil {
		return err
	}
	val, err := toExamples(ctx, valSamples)
	if err != nil {
		return err
	}

	tc := classifier.DefaultTrainConfig()
	tc.Epochs = cfg.Train.Epochs
	tc.BatchSize = cfg.Train.BatchSize
	tc.Patience = cfg.Train.Patience
	tc.LearningRate = cfg.Train.LearningRate
	tc.Seed = cfg.Train.Seed
	tc.CheckpointDir = cfg.Train.CheckpointDir

	model, history, err := classifier.Train(ctx, tc, classNames, train, val, env.logger)
	if err != nil {
		return errors.Wrap(err, "train")
	}
	env.logger.Info("best epoch",
		zap.Int("epoch", history.BestEpoch),
		zap.Float64("val_accuracy", history.BestValAccuracy),
		zap.Bool("stopped_early", history.StoppedEarly))

	if cfg.TestCSV != "" {
		if err := evaluateTable(ctx, env, model, cfg.TestCSV); err != nil {
			return err
		}
	}

	if err := classifier.Export(model, cfg.Train.ModelDir); err != nil {
		return errors.Wrap(err, "export")
	}
	env.logger.Info("exported browser model", zap.String("dir", cfg.Train.ModelDir))
	return nil
}

// toExamples embeds samples concurrently, keeping their order.
func toExamples(ctx context.Context, samples []dataset.Sample) ([]classifier.Example, error) {
	rows := make([][]float32, len(samples))
	for i, s := range samples {
		rows[i] = s.Pose.Row()
	}
	embeddings, err := embedding.EmbedRows(ctx, rows, runtime.NumCPU())
	if err != nil {
		return nil, errors.Wrap(err, "embed")
	}

	out := make([]classifier.Example, len(samples))
	for i, s := range samples {
		out[i] = classifier.Example{Embedding: embeddings[i], Label: s.ClassNo}
	}
	return out, nil
}

// evaluateTable reports loss and accuracy of model on a combined table.
func evaluateTable(ctx context.Context, env *environment, model *classifier.Model, path string) error {
	samples, classNames, err := dataset.ReadCombined(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if len(classNames) > model.NumClasses() {
		return errors.Errorf("%s has %d classes, model has %d", path, len(classNames), model.NumClasses())
	}

	examples, err := toExamples(ctx, samples)
	if err != nil {
		return err
	}
	loss, acc, err := model.Evaluate(examples)
	if err != nil {
		return errors.Wrap(err, "evaluate")
	}
	env.logger.Info("evaluation",
		zap.String("path", path),
		zap.Int("samples", len(examples)),
		zap.Float64("loss", loss),
		zap.Float64("accuracy", acc))
	return nil
}
