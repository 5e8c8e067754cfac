package render

import (
	"crypto/md5"
	"fmt"

	"gocv.io/x/gocv"
)

// Checksum returns the hex MD5 of the mat pixels, or "empty".
func Checksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return "empty"
	}
	return fmt.Sprintf("%x", md5.Sum(data))
}
