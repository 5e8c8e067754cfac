package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/nvr-ai/go-pose/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func canvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func standing() pose.Pose {
	var p pose.Pose
	for i := range p {
		p[i] = pose.Keypoint{X: 40 + float32(i%2)*20, Y: 10 + float32(i)*5, Score: 0.9}
	}
	return p
}

func TestSkeletonJPEG(t *testing.T) {
	out, err := Skeleton(canvas(100, 120), standing(), 0.3, Green)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 120), decoded.Bounds())
}

func TestDrawChangesPixels(t *testing.T) {
	mat, err := gocv.ImageToMatRGB(canvas(100, 120))
	require.NoError(t, err)
	defer mat.Close()

	before := Checksum(mat)

	var hidden pose.Pose
	Draw(&mat, hidden, 0.3, White)
	assert.Equal(t, before, Checksum(mat), "no keypoint passes the score filter")

	Draw(&mat, standing(), 0.3, White)
	assert.NotEqual(t, before, Checksum(mat))
}

func TestDrawSkipsEyes(t *testing.T) {
	mat, err := gocv.ImageToMatRGB(canvas(100, 100))
	require.NoError(t, err)
	defer mat.Close()
	before := Checksum(mat)

	var p pose.Pose
	p[pose.LeftEye.Index()] = pose.Keypoint{X: 50, Y: 50, Score: 1}
	p[pose.RightEye.Index()] = pose.Keypoint{X: 60, Y: 50, Score: 1}
	Draw(&mat, p, 0.3, color.RGBA{R: 255, A: 255})
	assert.Equal(t, before, Checksum(mat))
}

func TestChecksumEmpty(t *testing.T) {
	mat := gocv.NewMat()
	defer mat.Close()
	assert.Equal(t, "empty", Checksum(mat))
}
