package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
)

// Combine concatenates the per-class tables of classNames, in order, into combined samples.
// class_no is the position of the class in classNames and filenames gain a "<class>/" prefix.
func Combine(perClassDir string, classNames []string) ([]Sample, error) {
	var samples []Sample
	for classNo, className := range classNames {
		rows, err := ReadRowsFile(PerClassPath(perClassDir, className))
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			samples = append(samples, Sample{
				Filename:  className + "/" + row.Filename,
				Pose:      row.Pose,
				ClassNo:   classNo,
				ClassName: className,
			})
		}
	}
	return samples, nil
}

// WriteCombined writes the combined table as CSV with the pose.Header columns.
func WriteCombined(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(pose.Header()); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, s := range samples {
		record := make([]string, 0, pose.RowWidth+3)
		record = append(record, s.Filename)
		record = append(record, poseRecord(s.Pose)...)
		record = append(record, strconv.Itoa(s.ClassNo), s.ClassName)
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write sample")
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCombinedCSV reads a combined CSV table.
//
// Returns:
//   - []Sample: The samples in file order.
//   - []string: Class names indexed by class_no.
//   - error: An error if the header differs from pose.Header, a row is malformed, or one class_no
//     maps to two class names.
func ReadCombinedCSV(r io.Reader) ([]Sample, []string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "read header")
	}
	want := pose.Header()
	if strings.Join(header, ",") != strings.Join(want, ",") {
		return nil, nil, errors.Wrapf(pose.ErrMalformedPose, "unexpected header with %d columns", len(header))
	}

	var samples []Sample
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", line)
		}
		p, err := parsePose(record[1 : 1+pose.RowWidth])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", line)
		}
		classNo, err := strconv.Atoi(record[1+pose.RowWidth])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d class_no", line)
		}
		samples = append(samples, Sample{
			Filename:  record[0],
			Pose:      p,
			ClassNo:   classNo,
			ClassName: record[2+pose.RowWidth],
		})
	}

	names, err := ClassNames(samples)
	if err != nil {
		return nil, nil, err
	}
	return samples, names, nil
}

// ClassNames returns the class names indexed by class_no. Every class_no from 0 to the
// highest one seen must have at least one sample.
func ClassNames(samples []Sample) ([]string, error) {
	byNo := map[int]string{}
	maxNo := -1
	for _, s := range samples {
		if s.ClassNo < 0 {
			return nil, errors.Errorf("negative class_no %d for %s", s.ClassNo, s.Filename)
		}
		if name, ok := byNo[s.ClassNo]; ok && name != s.ClassName {
			return nil, errors.Errorf("class_no %d maps to both %q and %q", s.ClassNo, name, s.ClassName)
		}
		byNo[s.ClassNo] = s.ClassName
		maxNo = max(maxNo, s.ClassNo)
	}

	names := make([]string, maxNo+1)
	for no := range names {
		name, ok := byNo[no]
		if !ok {
			return nil, errors.Errorf("class_no %d has no samples", no)
		}
		names[no] = name
	}
	return names, nil
}

// WriteCombinedFile writes the combined table to path. A ".parquet" extension selects Parquet.
func WriteCombinedFile(path string, samples []Sample) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}

	if isParquet(path) {
		err = WriteParquet(f, samples)
	} else {
		err = WriteCombined(f, samples)
	}
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

// ReadCombined reads a combined table from a CSV or ".parquet" file.
func ReadCombined(path string) ([]Sample, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var (
		samples []Sample
		names   []string
	)
	if isParquet(path) {
		stat, err := f.Stat()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "stat %s", path)
		}
		samples, names, err = ReadParquet(f, stat.Size())
	} else {
		samples, names, err = ReadCombinedCSV(f)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read %s", path)
	}
	return samples, names, nil
}

// ParquetPath returns the Parquet companion of a CSV table path.
func ParquetPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".parquet"
}

func isParquet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".parquet")
}
