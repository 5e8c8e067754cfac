package detector

import (
	"image"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-pose/pose"
)

const (
	// minCropKeypointScore is the score above which a keypoint steers the next crop.
	minCropKeypointScore = 0.2
	torsoExpansionRatio  = 1.9
	bodyExpansionRatio   = 1.2
)

var torsoJoints = [...]pose.BodyPart{pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip}

// CropRegion is a square region of the image, in coordinates normalized to the image size. It may
// extend past the image borders, in which case the overflow is padded with black.
type CropRegion struct {
	YMin, XMin float32
	YMax, XMax float32
	Height     float32
	Width      float32
}

// InitCropRegion returns the square region centered on the image that covers all of it.
func InitCropRegion(height, width int) CropRegion {
	h, w := float32(height), float32(width)
	if w > h {
		yMin := (h/2 - w/2) / h
		return CropRegion{YMin: yMin, XMin: 0, YMax: yMin + w/h, XMax: 1, Height: w / h, Width: 1}
	}
	xMin := (w/2 - h/2) / w
	return CropRegion{YMin: 0, XMin: xMin, YMax: 1, XMax: xMin + h/w, Height: 1, Width: h / w}
}

// torsoVisible reports whether at least one hip and one shoulder are confidently detected.
func torsoVisible(p pose.Pose) bool {
	hip := p[pose.LeftHip].Score > minCropKeypointScore || p[pose.RightHip].Score > minCropKeypointScore
	shoulder := p[pose.LeftShoulder].Score > minCropKeypointScore ||
		p[pose.RightShoulder].Score > minCropKeypointScore
	return hip && shoulder
}

// DetermineCropRegion derives the crop for the next pass from a detection.
//
// Arguments:
//   - p: Keypoints with coordinates normalized to the image.
//   - height, width: The image size in pixels.
//
// Returns:
//   - CropRegion: A square around the torso and every confident keypoint, or the full image when
//     the torso is not visible or the square would exceed the image.
func DetermineCropRegion(p pose.Pose, height, width int) CropRegion {
	if !torsoVisible(p) {
		return InitCropRegion(height, width)
	}

	h, w := float32(height), float32(width)
	target := func(part pose.BodyPart) (float32, float32) {
		return p[part].Y * h, p[part].X * w
	}

	lhY, lhX := target(pose.LeftHip)
	rhY, rhX := target(pose.RightHip)
	centerY, centerX := (lhY+rhY)/2, (lhX+rhX)/2

	var torsoY, torsoX, bodyY, bodyX float32
	for _, joint := range torsoJoints {
		y, x := target(joint)
		torsoY = math32.Max(torsoY, math32.Abs(centerY-y))
		torsoX = math32.Max(torsoX, math32.Abs(centerX-x))
	}
	for _, part := range pose.BodyParts() {
		if p[part].Score < minCropKeypointScore {
			continue
		}
		y, x := target(part)
		bodyY = math32.Max(bodyY, math32.Abs(centerY-y))
		bodyX = math32.Max(bodyX, math32.Abs(centerX-x))
	}

	half := maxOf(torsoX*torsoExpansionRatio, torsoY*torsoExpansionRatio,
		bodyY*bodyExpansionRatio, bodyX*bodyExpansionRatio)
	half = math32.Min(half, maxOf(centerX, w-centerX, centerY, h-centerY))

	if half > math32.Max(w, h)/2 {
		return InitCropRegion(height, width)
	}

	length := half * 2
	top, left := centerY-half, centerX-half
	region := CropRegion{
		YMin: top / h,
		XMin: left / w,
		YMax: (top + length) / h,
		XMax: (left + length) / w,
	}
	region.Height = region.YMax - region.YMin
	region.Width = region.XMax - region.XMin
	return region
}

// CropAndResize cuts region out of img, pads the parts that fall outside the image with black and
// resizes the result to size×size.
func CropAndResize(img *image.RGBA, region CropRegion, size int) *image.RGBA {
	b := img.Bounds()
	h, w := float32(b.Dy()), float32(b.Dx())

	top := 0
	if region.YMin >= 0 {
		top = int(region.YMin * h)
	}
	bottom := b.Dy()
	if region.YMax < 1 {
		bottom = int(region.YMax * h)
	}
	left := 0
	if region.XMin >= 0 {
		left = int(region.XMin * w)
	}
	right := b.Dx()
	if region.XMax < 1 {
		right = int(region.XMax * w)
	}

	padTop, padBottom, padLeft, padRight := 0, 0, 0, 0
	if region.YMin < 0 {
		padTop = int(-region.YMin * h)
	}
	if region.YMax >= 1 {
		padBottom = int((region.YMax - 1) * h)
	}
	if region.XMin < 0 {
		padLeft = int(-region.XMin * w)
	}
	if region.XMax >= 1 {
		padRight = int((region.XMax - 1) * w)
	}

	cropW := max(right-left, 0) + padLeft + padRight
	cropH := max(bottom-top, 0) + padTop + padBottom
	canvas := image.NewRGBA(image.Rect(0, 0, max(cropW, 1), max(cropH, 1)))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(canvas,
		image.Rect(padLeft, padTop, padLeft+right-left, padTop+bottom-top),
		img, b.Min.Add(image.Pt(left, top)), draw.Src)

	resized := resize.Resize(uint(size), uint(size), canvas, resize.Bilinear)
	if rgba, ok := resized.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return out
}

// toImageSpace maps keypoints normalized to a crop into coordinates normalized to the image.
func toImageSpace(p pose.Pose, region CropRegion) pose.Pose {
	for i := range p {
		p[i].Y = region.YMin + region.Height*p[i].Y
		p[i].X = region.XMin + region.Width*p[i].X
	}
	return p
}

// toPixels scales keypoints normalized to the image into pixel coordinates.
func toPixels(p pose.Pose, height, width int) pose.Pose {
	for i := range p {
		p[i].Y *= float32(height)
		p[i].X *= float32(width)
	}
	return p
}

func maxOf(first float32, rest ...float32) float32 {
	for _, v := range rest {
		first = math32.Max(first, v)
	}
	return first
}
