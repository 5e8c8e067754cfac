package main

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"github.com/nvr-ai/go-pose/dataset"
	"github.com/nvr-ai/go-pose/embedding"
	"github.com/pkg/errors"
)

func runEmbed(ctx context.Context, env *environment, args []string) error {
	cfg := &env.cfg
	fs := newFlagSet("embed")
	fs.StringVar(&cfg.TrainCSV, "table", cfg.TrainCSV, "combined table (.csv or .parquet)")
	out := fs.String("out", "", "output CSV; empty writes to stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	samples, _, err := dataset.ReadCombined(cfg.TrainCSV)
	if err != nil {
		return err
	}
	examples, err := toExamples(ctx, samples)
	if err != nil {
		return err
	}

	dst := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return errors.Wrapf(err, "create %s", *out)
		}
		defer f.Close()
		dst = f
	}

	w := csv.NewWriter(dst)
	header := []string{"filename", "class_no", "class_name"}
	for i := 0; i < embedding.Size; i++ {
		header = append(header, "e"+strconv.Itoa(i))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, ex := range examples {
		record := []string{samples[i].Filename, strconv.Itoa(ex.Label), samples[i].ClassName}
		for _, v := range ex.Embedding {
			record = append(record, strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "write embeddings")
}
