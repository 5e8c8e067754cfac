package dataset

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/cheggaaa/pb/v3"
	"github.com/nvr-ai/go-pose/detector"
	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/logging"
	"github.com/nvr-ai/go-pose/metrics"
	"github.com/nvr-ai/go-pose/pose"
	"github.com/nvr-ai/go-pose/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultDetectionThreshold is the minimum score every keypoint of an accepted image must reach.
const DefaultDetectionThreshold = 0.1

const progressTemplate = `{{ string . "prefix" }} {{counters . }} {{bar . }} {{percent . }} {{etime . "%s elapsed"}}`

// Config controls a dataset build.
type Config struct {
	// ImagesDir holds one subfolder of images per class.
	ImagesDir string
	// PerClassDir receives "<class>.csv" for every class.
	PerClassDir string
	// OutputPath is the combined CSV table.
	OutputPath string
	// DetectionThreshold rejects images whose weakest keypoint scores below it.
	DetectionThreshold float32
	// Workers bounds concurrent detections within a class.
	Workers int
	// Parquet also writes the combined table next to OutputPath with a ".parquet" extension.
	Parquet bool
	// Progress renders a progress bar per class on stderr.
	Progress bool
}

// ClassReport counts the images of one class.
type ClassReport struct {
	Name     string
	Accepted int
	Total    int
}

// Report describes a finished build.
type Report struct {
	Classes []ClassReport
	Skips   []Skip
	Samples int
}

// SkipSummary returns the first limit skip messages and the remaining count.
func (r Report) SkipSummary(limit int) []string {
	return summarize(r.Skips, limit)
}

// Builder turns labeled image folders into landmark tables.
type Builder struct {
	cfg        Config
	detector   detector.Detector
	logger     *zap.Logger
	classNames []string
	skips      SkipLog
}

// NewBuilder discovers the classes under cfg.ImagesDir.
//
// Arguments:
//   - cfg: The build configuration.
//   - det: The keypoint detector. The builder does not close it.
//   - logger: May be nil.
//
// Returns:
//   - *Builder: The builder.
//   - error: An error if the images folder cannot be read or holds no class folders.
func NewBuilder(cfg Config, det detector.Detector, logger *zap.Logger) (*Builder, error) {
	if det == nil {
		return nil, errors.New("detector is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	names, err := util.LoadSubdirectories(cfg.ImagesDir)
	if err != nil {
		return nil, errors.Wrapf(err, "list classes in %s", cfg.ImagesDir)
	}
	if len(names) == 0 {
		return nil, errors.Errorf("no class folders in %s", cfg.ImagesDir)
	}

	return &Builder{
		cfg:        cfg,
		detector:   det,
		logger:     logging.OrNop(logger),
		classNames: names,
	}, nil
}

// ClassNames returns the sorted class names. A class index is its position in this list.
func (b *Builder) ClassNames() []string {
	return append([]string(nil), b.classNames...)
}

// Process builds every per-class table and then the combined table.
//
// Images that fail to decode, are not RGB, or score below the threshold are skipped and logged.
// Detector failures and I/O errors abort the run.
func (b *Builder) Process(ctx context.Context) (Report, error) {
	var report Report
	for classNo, name := range b.classNames {
		cr, err := b.processClass(ctx, name)
		if err != nil {
			return report, errors.Wrapf(err, "class %s (%d)", name, classNo)
		}
		report.Classes = append(report.Classes, cr)
		b.logger.Info("processed class",
			zap.String("class", name),
			zap.Int("valid", cr.Accepted),
			zap.Int("total", cr.Total))
	}

	report.Skips = b.skips.Skips()
	for _, line := range report.SkipSummary(DefaultSkipPreview) {
		b.logger.Warn(line)
	}

	samples, err := Combine(b.cfg.PerClassDir, b.classNames)
	if err != nil {
		return report, errors.Wrap(err, "combine per-class tables")
	}
	report.Samples = len(samples)

	if err := WriteCombinedFile(b.cfg.OutputPath, samples); err != nil {
		return report, err
	}
	if b.cfg.Parquet {
		if err := WriteCombinedFile(ParquetPath(b.cfg.OutputPath), samples); err != nil {
			return report, err
		}
	}

	b.logger.Info("saved combined table",
		zap.String("path", b.cfg.OutputPath),
		zap.Int("samples", report.Samples),
		zap.Int("skipped", len(report.Skips)))
	return report, nil
}

// outcome is the result slot of one image. Exactly one of row and skip is set.
type outcome struct {
	row  *Row
	skip *Skip
}

func (b *Builder) processClass(ctx context.Context, name string) (ClassReport, error) {
	report := ClassReport{Name: name}

	files, err := util.LoadDirectoryImageFiles(filepath.Join(b.cfg.ImagesDir, name))
	if err != nil {
		return report, errors.Wrap(err, "list images")
	}
	report.Total = len(files)

	var bar *pb.ProgressBar
	if b.cfg.Progress {
		bar = pb.ProgressBarTemplate(progressTemplate).Start(len(files))
		bar.Set("prefix", name)
		defer bar.Finish()
	}

	results := make([]outcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i, file := range files {
		g.Go(func() error {
			res, err := b.evaluate(gctx, file)
			if err != nil {
				return errors.Wrap(err, file.Path)
			}
			results[i] = res
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	rows := make([]Row, 0, len(files))
	for _, res := range results {
		if res.skip != nil {
			b.skips.Add(*res.skip)
			b.logger.Warn("skipped image",
				zap.String("path", res.skip.Path),
				zap.String("reason", string(res.skip.Reason)))
			metrics.DatasetSkipsTotal.WithLabelValues(string(res.skip.Reason)).Inc()
			metrics.DatasetImagesTotal.WithLabelValues(name, metrics.OutcomeSkipped).Inc()
			continue
		}
		rows = append(rows, *res.row)
		metrics.DatasetImagesTotal.WithLabelValues(name, metrics.OutcomeAccepted).Inc()
	}
	report.Accepted = len(rows)

	if err := WriteRowsFile(PerClassPath(b.cfg.PerClassDir, name), rows); err != nil {
		return report, err
	}
	return report, nil
}

// evaluate decodes, validates and detects one image.
func (b *Builder) evaluate(ctx context.Context, file util.ImageFile) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	data, err := file.Read()
	if err != nil {
		return outcome{}, errors.Wrap(err, "read image")
	}

	img, err := images.Decode(data)
	if err != nil {
		return outcome{skip: &Skip{Path: file.Path, Reason: SkipInvalidImage, Detail: err.Error()}}, nil
	}
	if !img.IsRGB() {
		return outcome{skip: &Skip{Path: file.Path, Reason: SkipNotRGB}}, nil
	}

	p, err := b.detector.Detect(ctx, img.Image)
	if err != nil {
		return outcome{}, errors.Wrap(err, "detect")
	}

	if !Accept(p, b.cfg.DetectionThreshold) {
		return outcome{skip: &Skip{Path: file.Path, Reason: SkipLowConfidence, Score: p.MinScore()}}, nil
	}
	return outcome{row: &Row{Filename: file.Name, Pose: p}}, nil
}

// Accept reports whether a detected pose passes the confidence filter.
func Accept(p pose.Pose, threshold float32) bool {
	return p.MinScore() >= threshold
}
