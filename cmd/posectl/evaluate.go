package main

import (
	"context"

	"github.com/nvr-ai/go-pose/classifier"
	"github.com/pkg/errors"
)

func runEvaluate(ctx context.Context, env *environment, args []string) error {
	cfg := &env.cfg
	fs := newFlagSet("evaluate")
	fs.StringVar(&cfg.Train.ModelDir, "model-dir", cfg.Train.ModelDir, "exported browser model folder")
	fs.StringVar(&cfg.TestCSV, "table", cfg.TestCSV, "combined table to evaluate (.csv or .parquet)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	model, err := classifier.Load(cfg.Train.ModelDir)
	if err != nil {
		return errors.Wrap(err, "load model")
	}
	return evaluateTable(ctx, env, model, cfg.TestCSV)
}
