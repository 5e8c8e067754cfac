// Package dataset - Builds landmark tables from labeled image folders and reads them back.
//
// A root folder holds one subfolder per class. Every image that decodes to RGB and whose weakest
// keypoint clears the detection threshold becomes one row of a per-class table; the per-class
// tables are then concatenated into a combined table with a header and class labels.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
)

// Row is one accepted image of a per-class table.
type Row struct {
	Filename string
	Pose     pose.Pose
}

// Sample is one row of the combined table.
type Sample struct {
	// Filename is "<class_name>/<original filename>".
	Filename  string
	Pose      pose.Pose
	ClassNo   int
	ClassName string
}

// PerClassPath returns the per-class table path of a class.
func PerClassPath(dir, className string) string {
	return filepath.Join(dir, className+".csv")
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

func poseRecord(p pose.Pose) []string {
	row := p.Row()
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = formatFloat(v)
	}
	return out
}

func parsePose(fields []string) (pose.Pose, error) {
	values := make([]float32, len(fields))
	for i, field := range fields {
		v, err := parseFloat(field)
		if err != nil {
			return pose.Pose{}, errors.Wrapf(err, "column %d", i+1)
		}
		values[i] = v
	}
	return pose.FromRow(values)
}

// WriteRows writes a per-class table: no header, filename then 17 × (x, y, score).
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		record := append([]string{row.Filename}, poseRecord(row.Pose)...)
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRows reads a per-class table.
//
// Returns:
//   - []Row: The rows in file order.
//   - error: pose.ErrMalformedPose for a row that is not 52 columns wide, or a parse error.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var rows []Row
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if len(record) != 1+pose.RowWidth {
			return nil, errors.Wrapf(pose.ErrMalformedPose, "line %d has %d columns", line, len(record))
		}
		p, err := parsePose(record[1:])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		rows = append(rows, Row{Filename: record[0], Pose: p})
	}
}

// WriteRowsFile writes a per-class table to path, creating parent directories.
func WriteRowsFile(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := WriteRows(f, rows); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

// ReadRowsFile reads a per-class table from path.
func ReadRowsFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return rows, nil
}
