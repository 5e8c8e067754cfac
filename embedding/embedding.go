package embedding

import (
	"context"
	"runtime"

	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Size is the length of an embedding: 17 landmarks × (x, y).
const Size = pose.NumBodyParts * 2

// Embedding is the flattened normalized landmark vector fed to the classifier.
type Embedding [Size]float32

// FromLandmarks normalizes l and flattens it row-major.
func FromLandmarks(l pose.Landmarks) Embedding {
	var e Embedding
	copy(e[:], Normalize(l).Flatten())
	return e
}

// FromPose drops the scores of p and embeds the coordinates.
func FromPose(p pose.Pose) Embedding {
	return FromLandmarks(p.Landmarks())
}

// FromRow embeds a raw 17 × (x, y, score) table row.
//
// Arguments:
//   - row: 51 values in BodyPart order.
//
// Returns:
//   - Embedding: The 34 value embedding.
//   - error: pose.ErrMalformedPose if the row does not hold 51 values.
func FromRow(row []float32) (Embedding, error) {
	p, err := pose.FromRow(row)
	if err != nil {
		return Embedding{}, errors.Wrap(err, "embedding row")
	}
	return FromPose(p), nil
}

// MustFromRow is FromRow for rows that are known to be well formed. It panics otherwise.
func MustFromRow(row []float32) Embedding {
	e, err := FromRow(row)
	if err != nil {
		panic(err)
	}
	return e
}

// Slice returns a copy of the embedding as a slice.
func (e Embedding) Slice() []float32 {
	out := make([]float32, Size)
	copy(out, e[:])
	return out
}

// EmbedRows embeds many raw rows concurrently. The output order matches rows.
//
// Arguments:
//   - ctx: Cancels the remaining work.
//   - rows: Raw 51 value rows.
//   - workers: Maximum goroutines; values below 1 use GOMAXPROCS.
//
// Returns:
//   - []Embedding: One embedding per row.
//   - error: The first malformed row or the context error.
func EmbedRows(ctx context.Context, rows [][]float32, workers int) ([]Embedding, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]Embedding, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, row := range rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := FromRow(row)
			if err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
			out[i] = e
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
