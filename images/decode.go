package images

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
)

var (
	// ErrDecode is returned when the bytes are not a supported image.
	ErrDecode = errors.New("invalid image")
	// ErrNotRGB is returned when a decoded image does not have three colour channels.
	ErrNotRGB = errors.New("not RGB format")
)

// Decode decodes an encoded image and classifies its channel layout.
//
// Arguments:
//   - data: The encoded image bytes (JPEG, PNG, BMP or WebP).
//
// Returns:
//   - Image: The decoded image.
//   - error: ErrDecode wrapping the decoder error.
func Decode(data []byte) (Image, error) {
	var (
		img    image.Image
		format string
		err    error
	)
	if isWebP(data) {
		img, err = webp.Decode(bytes.NewReader(data))
		format = string(FormatWebP)
	} else {
		img, format, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return Image{}, errors.Wrap(ErrDecode, err.Error())
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return Image{}, errors.Wrap(ErrDecode, "empty image")
	}

	return Image{
		Image:    img,
		Format:   ImageFormat(format),
		Channels: Channels(img),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// DecodeRGB decodes data and rejects anything that is not a three channel image.
func DecodeRGB(data []byte) (Image, error) {
	img, err := Decode(data)
	if err != nil {
		return img, err
	}
	if !img.IsRGB() {
		return img, errors.Wrapf(ErrNotRGB, "%d channels", img.Channels)
	}
	return img, nil
}

// Channels returns the number of colour channels of a decoded image.
//
// The count follows the stored layout rather than the Go colour model: an opaque 8-bit PNG decodes
// to *image.RGBA and counts as 3, a PNG with an alpha channel decodes to *image.NRGBA and counts as 4.
func Channels(img image.Image) int {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.YCbCr, *image.RGBA, *image.RGBA64:
		return 3
	case *image.NRGBA, *image.NRGBA64, *image.NYCbCrA, *image.CMYK:
		return 4
	case *image.Paletted:
		if hasTranslucency(m.Palette) {
			return 4
		}
		return 3
	}

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.NRGBAModel, color.NRGBA64Model, color.CMYKModel, color.AlphaModel, color.Alpha16Model:
		return 4
	}
	return 3
}

func hasTranslucency(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}

// isWebP matches the RIFF container header of a WebP file.
func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
