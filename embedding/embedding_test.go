package embedding

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestFromRow(t *testing.T) {
	p := standingPose()
	row := p.Row()

	e, err := FromRow(row)
	require.NoError(t, err)
	assert.Equal(t, FromPose(p), e)

	normalized := Normalize(p.Landmarks())
	assert.Equal(t, normalized[pose.LeftHip].X, e[pose.LeftHip.Index()*2])
	assert.Equal(t, normalized[pose.LeftHip].Y, e[pose.LeftHip.Index()*2+1])
	assert.Len(t, e.Slice(), Size)
}

func TestFromRowMalformed(t *testing.T) {
	for _, n := range []int{0, 34, 50, 52} {
		_, err := FromRow(make([]float32, n))
		assert.True(t, errors.Is(err, pose.ErrMalformedPose), "width %d", n)
	}
	assert.Panics(t, func() { MustFromRow(make([]float32, 3)) })
}

func TestScoresIgnored(t *testing.T) {
	a := standingPose()
	b := a
	for i := range b {
		b[i].Score = 0.11
	}
	assert.Equal(t, FromPose(a), FromPose(b))
}

func TestEmbedRows(t *testing.T) {
	rows := make([][]float32, 40)
	for i := range rows {
		p := standingPose()
		p[pose.Nose].X = float32(i)
		rows[i] = p.Row()
	}

	got, err := EmbedRows(context.Background(), rows, 4)
	require.NoError(t, err)
	require.Len(t, got, len(rows))
	for i, row := range rows {
		assert.Equal(t, MustFromRow(row), got[i])
	}

	rows[7] = rows[7][:10]
	_, err = EmbedRows(context.Background(), rows, 4)
	assert.True(t, errors.Is(err, pose.ErrMalformedPose))
}

func TestEmbedRowsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := EmbedRows(ctx, [][]float32{standingPose().Row()}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeBatch(t *testing.T) {
	a := standingPose().Landmarks()
	b := a
	for i := range b {
		b[i].X = b[i].X*3 + 10
		b[i].Y = b[i].Y*3 - 4
	}

	out, err := NormalizeBatch(BatchFromLandmarks([]pose.Landmarks{a, b}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 17, 2}, out.Shape())

	data := out.Data().([]float32)
	want := Normalize(a).Flatten()
	for i := range want {
		assert.InDelta(t, want[i], data[i], 1e-6)
		assert.InDelta(t, want[i], data[Size+i], 1e-5)
	}
}

func TestNormalizeBatchShape(t *testing.T) {
	bad := tensor.New(tensor.WithShape(2, 17, 3), tensor.WithBacking(make([]float32, 102)))
	_, err := NormalizeBatch(bad)
	assert.True(t, errors.Is(err, pose.ErrMalformedPose))

	wrongType := tensor.New(tensor.WithShape(1, 17, 2), tensor.WithBacking(make([]float64, 34)))
	_, err = NormalizeBatch(wrongType)
	assert.Error(t, err)
}
