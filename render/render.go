// Package render draws pose overlays with OpenCV.
package render

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-pose/pose"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Skeleton colors used by the live client.
var (
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Green = color.RGBA{G: 255, A: 255}
)

// Point and segment sizes in pixels.
const (
	PointRadius   = 8
	LineThickness = 3
)

// Skeleton draws p over img and returns the result as JPEG bytes.
//
// Arguments:
//   - img: The source image.
//   - p: Keypoints in img pixel space.
//   - minScore: Keypoints scoring at or below this are not drawn.
//   - c: The segment color. Keypoint dots are always white.
//
// Returns:
//   - []byte: The encoded JPEG.
//   - error: An error if the image could not be converted or encoded.
func Skeleton(img image.Image, p pose.Pose, minScore float32, c color.RGBA) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "convert image")
	}
	defer mat.Close()

	Draw(&mat, p, minScore, c)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// Draw renders the skeleton edges and keypoint dots onto mat in place.
func Draw(mat *gocv.Mat, p pose.Pose, minScore float32, c color.RGBA) {
	for _, e := range pose.Edges {
		from, to := p.Get(e.From), p.Get(e.To)
		if from.Score <= minScore || to.Score <= minScore {
			continue
		}
		gocv.Line(mat, point(from), point(to), c, LineThickness)
	}

	for _, part := range pose.BodyParts() {
		if part == pose.LeftEye || part == pose.RightEye {
			continue
		}
		kp := p.Get(part)
		if kp.Score <= minScore {
			continue
		}
		gocv.Circle(mat, point(kp), PointRadius, White, -1)
	}
}

func point(kp pose.Keypoint) image.Point {
	return image.Pt(int(kp.X+0.5), int(kp.Y+0.5))
}
