package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-pose/classifier"
	"github.com/nvr-ai/go-pose/coach"
	"github.com/nvr-ai/go-pose/server"
	"go.uber.org/zap"
)

func runServe(ctx context.Context, env *environment, args []string) error {
	cfg := &env.cfg
	fs := newFlagSet("serve")
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "listen address")
	fs.StringVar(&cfg.Server.ModelDir, "model-dir", cfg.Server.ModelDir, "exported browser model folder")
	detectorFlags(fs, &cfg.Detector)
	if err := fs.Parse(args); err != nil {
		return err
	}

	det, err := openDetector(env)
	if err != nil {
		return err
	}
	defer det.Close()

	var model *classifier.Model
	if _, err := os.Stat(filepath.Join(cfg.Server.ModelDir, classifier.ModelJSON)); err == nil {
		if model, err = classifier.Load(cfg.Server.ModelDir); err != nil {
			return err
		}
		env.logger.Info("loaded classifier", zap.Strings("classes", model.ClassNames))
	} else {
		env.logger.Warn("no classifier found, serving keypoints only", zap.String("model_dir", cfg.Server.ModelDir))
	}

	opts := server.DefaultOptions()
	opts.Addr = cfg.Server.Addr
	opts.ModelDir = cfg.Server.ModelDir
	opts.PoseThreshold = cfg.Server.PoseThreshold
	opts.MaxBodyBytes = cfg.Server.MaxBodyBytes
	opts.Gate = coach.Gate{KeypointThreshold: cfg.Server.KeypointThreshold, MaxUndetected: cfg.Server.MaxUndetected}

	return server.New(opts, det, model, env.logger).Run(ctx)
}
