package dataset

import (
	"io"

	"github.com/nvr-ai/go-pose/pose"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// SampleRecord is the Parquet row of the combined table. Landmarks holds the 51 raw values in
// BodyPart order.
type SampleRecord struct {
	Filename  string    `parquet:"filename"`
	Landmarks []float32 `parquet:"landmarks"`
	ClassNo   int32     `parquet:"class_no"`
	ClassName string    `parquet:"class_name,dict"`
}

// WriteParquet writes samples as a Zstd compressed Parquet file.
func WriteParquet(w io.Writer, samples []Sample) error {
	records := make([]SampleRecord, len(samples))
	for i, s := range samples {
		records[i] = SampleRecord{
			Filename:  s.Filename,
			Landmarks: s.Pose.Row(),
			ClassNo:   int32(s.ClassNo),
			ClassName: s.ClassName,
		}
	}

	pw := parquet.NewGenericWriter[SampleRecord](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(records); err != nil {
		_ = pw.Close()
		return errors.Wrap(err, "write parquet rows")
	}
	return errors.Wrap(pw.Close(), "close parquet writer")
}

// ReadParquet reads a combined table written by WriteParquet.
func ReadParquet(r io.ReaderAt, size int64) ([]Sample, []string, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open parquet")
	}

	pr := parquet.NewGenericReader[SampleRecord](pf)
	defer pr.Close()

	records := make([]SampleRecord, pr.NumRows())
	n, err := pr.Read(records)
	if err != nil && err != io.EOF {
		return nil, nil, errors.Wrap(err, "read parquet rows")
	}
	records = records[:n]

	samples := make([]Sample, len(records))
	for i, rec := range records {
		p, err := pose.FromRow(rec.Landmarks)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "row %d", i)
		}
		samples[i] = Sample{
			Filename:  rec.Filename,
			Pose:      p,
			ClassNo:   int(rec.ClassNo),
			ClassName: rec.ClassName,
		}
	}

	names, err := ClassNames(samples)
	if err != nil {
		return nil, nil, err
	}
	return samples, names, nil
}
