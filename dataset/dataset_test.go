package dataset

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nvr-ai/go-pose/detector"
	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lowConfidenceWidth marks test images the fake detector scores below the threshold.
const lowConfidenceWidth = 13

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func colorImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	return img
}

// widthDetector returns a pose whose x coordinates encode the image width, so rows can be traced
// back to their source image.
func widthDetector(delay time.Duration) detector.Func {
	return func(ctx context.Context, img image.Image) (pose.Pose, error) {
		if delay > 0 {
			time.Sleep(delay)
		}
		w := img.Bounds().Dx()
		var p pose.Pose
		for i := range p {
			p[i] = pose.Keypoint{X: float32(w), Y: float32(i) + 0.5, Score: 0.9}
		}
		if w == lowConfidenceWidth {
			p[pose.LeftAnkle].Score = 0.05
		}
		return p, nil
	}
}

type fixture struct {
	root   string
	images string
	cfg    Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	imagesDir := filepath.Join(root, "train")

	layout := map[string][]int{
		"warrior": {20, 21},
		"tree":    {30, lowConfidenceWidth, 31},
		"lotus":   {40},
	}
	for class, widths := range layout {
		dir := filepath.Join(imagesDir, class)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for i, w := range widths {
			writeJPEG(t, filepath.Join(dir, "img"+string(rune('a'+i))+".jpg"), colorImage(w, 16))
		}
	}

	treeDir := filepath.Join(imagesDir, "tree")
	require.NoError(t, os.WriteFile(filepath.Join(treeDir, "notes.txt"), []byte("hello"), 0o644))
	writeJPEG(t, filepath.Join(treeDir, "gray.jpg"), image.NewGray(image.Rect(0, 0, 16, 16)))

	return fixture{
		root:   root,
		images: imagesDir,
		cfg: Config{
			ImagesDir:          imagesDir,
			PerClassDir:        filepath.Join(root, "csv_per_pose"),
			OutputPath:         filepath.Join(root, "train_data.csv"),
			DetectionThreshold: DefaultDetectionThreshold,
			Workers:            4,
		},
	}
}

func TestClassNamesSorted(t *testing.T) {
	f := newFixture(t)
	b, err := NewBuilder(f.cfg, widthDetector(0), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lotus", "tree", "warrior"}, b.ClassNames())
}

func TestNewBuilderErrors(t *testing.T) {
	f := newFixture(t)
	_, err := NewBuilder(f.cfg, nil, nil)
	assert.Error(t, err)

	cfg := f.cfg
	cfg.ImagesDir = t.TempDir()
	_, err = NewBuilder(cfg, widthDetector(0), nil)
	assert.Error(t, err)
}

func TestBuilderProcess(t *testing.T) {
	f := newFixture(t)
	f.cfg.Parquet = true
	b, err := NewBuilder(f.cfg, widthDetector(2*time.Millisecond), nil)
	require.NoError(t, err)

	report, err := b.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ClassReport{
		{Name: "lotus", Accepted: 1, Total: 1},
		{Name: "tree", Accepted: 2, Total: 5},
		{Name: "warrior", Accepted: 2, Total: 2},
	}, report.Classes)
	assert.Equal(t, 5, report.Samples)

	require.Len(t, report.Skips, 3)
	reasons := map[SkipReason]Skip{}
	for _, s := range report.Skips {
		reasons[s.Reason] = s
	}
	assert.Contains(t, reasons[SkipNotRGB].Path, "gray.jpg")
	assert.Contains(t, reasons[SkipInvalidImage].Path, "notes.txt")
	assert.Contains(t, reasons[SkipLowConfidence].Path, "imgb.jpg")
	assert.Equal(t, float32(0.05), reasons[SkipLowConfidence].Score)

	rows, err := ReadRowsFile(PerClassPath(f.cfg.PerClassDir, "tree"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "imga.jpg", rows[0].Filename)
	assert.Equal(t, float32(30), rows[0].Pose[pose.Nose].X)
	assert.Equal(t, "imgc.jpg", rows[1].Filename)
	assert.Equal(t, float32(31), rows[1].Pose[pose.Nose].X)

	samples, names, err := ReadCombined(f.cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"lotus", "tree", "warrior"}, names)
	require.Len(t, samples, 5)
	assert.Equal(t, "lotus/imga.jpg", samples[0].Filename)
	assert.Equal(t, 0, samples[0].ClassNo)
	assert.Equal(t, "tree/imgc.jpg", samples[2].Filename)
	assert.Equal(t, 1, samples[2].ClassNo)
	assert.Equal(t, "warrior/imgb.jpg", samples[4].Filename)
	assert.Equal(t, 2, samples[4].ClassNo)
	assert.Equal(t, "warrior", samples[4].ClassName)

	data, err := os.ReadFile(f.cfg.OutputPath)
	require.NoError(t, err)
	firstLine := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, strings.Join(pose.Header(), ","), firstLine)

	fromParquet, parquetNames, err := ReadCombined(ParquetPath(f.cfg.OutputPath))
	require.NoError(t, err)
	assert.Equal(t, samples, fromParquet)
	assert.Equal(t, names, parquetNames)
}

func TestBuilderDetectorFailureAborts(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("session lost")
	det := detector.Func(func(context.Context, image.Image) (pose.Pose, error) {
		return pose.Pose{}, boom
	})
	b, err := NewBuilder(f.cfg, det, nil)
	require.NoError(t, err)

	_, err = b.Process(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestBuilderCancelled(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	det := detector.Func(func(ctx context.Context, img image.Image) (pose.Pose, error) {
		calls.Add(1)
		return widthDetector(0)(ctx, img)
	})
	b, err := NewBuilder(f.cfg, det, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Process(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestConfidenceFilter(t *testing.T) {
	var p pose.Pose
	for i := range p {
		p[i].Score = 0.9
	}
	assert.True(t, Accept(p, 0.1))

	p[pose.RightWrist].Score = 0.05
	assert.False(t, Accept(p, 0.1))

	p[pose.RightWrist].Score = 0.1
	assert.True(t, Accept(p, 0.1))
}
