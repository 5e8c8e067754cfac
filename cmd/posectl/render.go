package main

import (
	"context"
	"os"

	"github.com/nvr-ai/go-pose/coach"
	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/render"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func runRender(ctx context.Context, env *environment, args []string) error {
	cfg := &env.cfg
	fs := newFlagSet("render")
	in := fs.String("in", "", "input image")
	out := fs.String("out", "overlay.jpg", "output JPEG")
	detectorFlags(fs, &cfg.Detector)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return errors.Wrapf(err, "read %s", *in)
	}
	img, err := images.Decode(data)
	if err != nil {
		return err
	}

	det, err := openDetector(env)
	if err != nil {
		return err
	}
	defer det.Close()

	p, err := det.Detect(ctx, img.Image)
	if err != nil {
		return err
	}

	jpeg, err := render.Skeleton(img.Image, p, cfg.Server.KeypointThreshold, render.White)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, jpeg, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", *out)
	}

	gate := coach.Gate{KeypointThreshold: cfg.Server.KeypointThreshold, MaxUndetected: cfg.Server.MaxUndetected}
	env.logger.Info("rendered overlay",
		zap.String("out", *out),
		zap.Bool("detected", gate.Detected(p)),
		zap.Float32("min_score", p.MinScore()))
	return nil
}
