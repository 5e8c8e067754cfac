package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-pose/config"
	"github.com/nvr-ai/go-pose/dataset"
	"github.com/nvr-ai/go-pose/embedding"
	"github.com/nvr-ai/go-pose/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func samplePose(offset float32) pose.Pose {
	var p pose.Pose
	for i := range p {
		p[i] = pose.Keypoint{X: offset + float32(i), Y: float32(i * i), Score: 0.8}
	}
	return p
}

func testEnv(t *testing.T) *environment {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	return &environment{cfg: cfg, logger: zap.NewNop()}
}

func TestToExamples(t *testing.T) {
	samples := []dataset.Sample{
		{Filename: "a.jpg", Pose: samplePose(0), ClassNo: 1, ClassName: "tree"},
		{Filename: "b.jpg", Pose: samplePose(5), ClassNo: 0, ClassName: "lotus"},
	}
	examples, err := toExamples(context.Background(), samples)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, 1, examples[0].Label)
	assert.Equal(t, 0, examples[1].Label)
	assert.Equal(t, embedding.FromPose(samples[0].Pose), examples[0].Embedding)
}

func TestRunEmbed(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "train.csv")
	require.NoError(t, dataset.WriteCombinedFile(table, []dataset.Sample{
		{Filename: "a.jpg", Pose: samplePose(0), ClassNo: 0, ClassName: "lotus"},
		{Filename: "b.jpg", Pose: samplePose(3), ClassNo: 1, ClassName: "tree"},
	}))

	out := filepath.Join(dir, "embeddings.csv")
	require.NoError(t, runEmbed(context.Background(), testEnv(t), []string{"-table", table, "-out", out}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Len(t, records[0], 3+embedding.Size)
	assert.Equal(t, []string{"b.jpg", "1", "tree"}, records[2][:3])
}

func TestPreprocessRejectsUnknownSplit(t *testing.T) {
	err := runPreprocess(context.Background(), testEnv(t), []string{"-only", "holdout"})
	assert.ErrorContains(t, err, "unknown split")
}

func TestRenderRequiresInput(t *testing.T) {
	err := runRender(context.Background(), testEnv(t), nil)
	assert.ErrorContains(t, err, "-in is required")
}
