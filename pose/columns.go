package pose

// Column names of the combined table that are not landmark columns.
const (
	ColumnFilename  = "filename"
	ColumnClassNo   = "class_no"
	ColumnClassName = "class_name"
)

// Coordinate suffixes, in column order.
var columnSuffixes = [3]string{"_x", "_y", "_score"}

// LandmarkColumns returns the 51 landmark column names: "<NAME>_x", "<NAME>_y", "<NAME>_score"
// for every body part in ordinal order.
func LandmarkColumns() []string {
	cols := make([]string, 0, RowWidth)
	for _, entry := range bodyParts {
		for _, suffix := range columnSuffixes {
			cols = append(cols, entry.name+suffix)
		}
	}
	return cols
}

// Header returns the full header of the combined table.
func Header() []string {
	header := make([]string, 0, RowWidth+3)
	header = append(header, ColumnFilename)
	header = append(header, LandmarkColumns()...)
	return append(header, ColumnClassNo, ColumnClassName)
}
