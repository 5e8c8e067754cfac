package images

import (
	"image"
	"image/draw"
)

// ToRGBA returns img as an *image.RGBA with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// PackRGB writes the RGB bytes of img into a tightly packed HWC buffer of w×h×3 values using
// convert to map each byte to the destination element type.
func PackRGB[T any](img *image.RGBA, dst []T, convert func(uint8) T) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+3]
			dst[i] = convert(px[0])
			dst[i+1] = convert(px[1])
			dst[i+2] = convert(px[2])
			i += 3
		}
	}
}
