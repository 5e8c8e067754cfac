// Command posectl builds pose datasets, trains the classifier and serves live analysis.
//
// Usage:
//
//	posectl <command> [flags]
//
// Commands: preprocess, train, evaluate, embed, render, serve.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-pose/config"
	"github.com/nvr-ai/go-pose/detector"
	"github.com/nvr-ai/go-pose/inference/providers"
	"github.com/nvr-ai/go-pose/logging"
	"github.com/nvr-ai/go-pose/metrics"
	"go.uber.org/zap"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *environment, args []string) error
}

var commands = []command{
	{"preprocess", "detect keypoints for the train and test image folders", runPreprocess},
	{"train", "train the classifier and export it for the browser", runTrain},
	{"evaluate", "evaluate an exported model on a combined table", runEvaluate},
	{"embed", "print the normalized embeddings of a combined table", runEmbed},
	{"render", "draw the detected skeleton over one image", runRender},
	{"serve", "serve the HTTP and websocket API", runServe},
}

// environment is the state shared by every command.
type environment struct {
	cfg    config.Config
	logger *zap.Logger
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == os.Args[1] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &environment{cfg: cfg, logger: logger.With(zap.String("command", cmd.name))}
	err = cmd.run(ctx, env, os.Args[2:])

	if werr := metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
		logger.Warn("failed to write metrics textfile", zap.Error(werr))
	}
	if err != nil {
		logger.Error("command failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: posectl <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-11s %s\n", c.name, c.usage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("posectl "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// detectorFlags binds the detector settings shared by several commands.
func detectorFlags(fs *flag.FlagSet, cfg *config.DetectorConfig) {
	fs.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "MoveNet single pose ONNX model")
	fs.IntVar(&cfg.InputSize, "input-size", cfg.InputSize, "model input size (256 thunder, 192 lightning)")
	fs.IntVar(&cfg.InferenceCount, "inference-count", cfg.InferenceCount, "crop refinement passes per image")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "execution provider: cpu, coreml, openvino, cuda")
	fs.StringVar(&cfg.SharedLibPath, "onnxruntime", cfg.SharedLibPath, "onnxruntime shared library")
}

func openDetector(env *environment) (*detector.MoveNet, error) {
	if err := env.cfg.Validate(); err != nil {
		return nil, err
	}

	dc := env.cfg.Detector
	provider := providers.DefaultConfig()
	provider.Backend = providers.ProviderBackend(dc.Provider)
	provider.SharedLibPath = dc.SharedLibPath

	return detector.Open(detector.Config{
		ModelPath:      dc.ModelPath,
		InputSize:      dc.InputSize,
		InferenceCount: dc.InferenceCount,
		InputName:      dc.InputName,
		OutputName:     dc.OutputName,
		Provider:       provider,
	}, env.logger)
}
