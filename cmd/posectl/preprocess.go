package main

import (
	"context"
	"path/filepath"

	"github.com/nvr-ai/go-pose/dataset"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Dataset splits expected under the images dir.
const (
	splitTrain = "train"
	splitTest  = "test"
)

func runPreprocess(ctx context.Context, env *environment, args []string) error {
	cfg := &env.cfg
	fs := newFlagSet("preprocess")
	fs.StringVar(&cfg.ImagesDir, "images", cfg.ImagesDir, "folder with train/ and test/ class folders")
	fs.StringVar(&cfg.PerClassDir, "per-class", cfg.PerClassDir, "folder for the per-class tables")
	fs.StringVar(&cfg.TrainCSV, "train-csv", cfg.TrainCSV, "combined train table")
	fs.StringVar(&cfg.TestCSV, "test-csv", cfg.TestCSV, "combined test table")
	var threshold float64
	fs.Float64Var(&threshold, "threshold", float64(cfg.DetectionThreshold), "minimum score of every keypoint")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent detections per class")
	fs.BoolVar(&cfg.Parquet, "parquet", cfg.Parquet, "also write Parquet tables")
	only := fs.String("only", "", "process a single split: train or test")
	progress := fs.Bool("progress", true, "show a progress bar per class")
	detectorFlags(fs, &cfg.Detector)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.DetectionThreshold = float32(threshold)

	splits := []struct{ name, output string }{
		{splitTrain, cfg.TrainCSV},
		{splitTest, cfg.TestCSV},
	}
	if *only != "" && *only != splitTrain && *only != splitTest {
		return errors.Errorf("unknown split %q", *only)
	}

	det, err := openDetector(env)
	if err != nil {
		return err
	}
	defer det.Close()

	for _, split := range splits {
		if *only != "" && *only != split.name {
			continue
		}

		builder, err := dataset.NewBuilder(dataset.Config{
			ImagesDir:          filepath.Join(cfg.ImagesDir, split.name),
			PerClassDir:        filepath.Join(cfg.PerClassDir, split.name),
			OutputPath:         split.output,
			DetectionThreshold: cfg.DetectionThreshold,
			Workers:            cfg.Workers,
			Parquet:            cfg.Parquet,
			Progress:           *progress,
		}, det, env.logger.With(zap.String("split", split.name)))
		if err != nil {
			return errors.Wrapf(err, "%s split", split.name)
		}

		report, err := builder.Process(ctx)
		if err != nil {
			return errors.Wrapf(err, "%s split", split.name)
		}
		env.logger.Info("split done",
			zap.String("split", split.name),
			zap.Int("classes", len(report.Classes)),
			zap.Int("samples", report.Samples),
			zap.Int("skipped", len(report.Skips)))
	}
	return nil
}
