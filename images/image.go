// Package images - Image decoding and colour layout checks for detector input.
package images

import (
	"image"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
)

// Image is a decoded image with the metadata the dataset filter needs.
type Image struct {
	// The decoded pixels.
	Image image.Image `json:"-"`
	// The format reported by the decoder.
	Format ImageFormat `json:"format"`
	// The number of colour channels: 1 (gray), 3 (RGB) or 4 (with alpha, or CMYK).
	Channels int `json:"channels"`
	// The width of the image.
	Width int `json:"width"`
	// The height of the image.
	Height int `json:"height"`
}

// IsRGB reports whether the image has exactly three colour channels.
func (i Image) IsRGB() bool {
	return i.Channels == 3
}
