package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func opaqueRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

func TestDecode(t *testing.T) {
	translucent := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	translucent.Set(1, 1, color.NRGBA{R: 10, A: 10})

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, opaqueRGBA(5, 3)))

	tests := []struct {
		name     string
		data     []byte
		format   ImageFormat
		channels int
		rgb      bool
	}{
		{name: "jpeg color", data: encodeJPEG(t, opaqueRGBA(8, 6)), format: FormatJPEG, channels: 3, rgb: true},
		{name: "jpeg gray", data: encodeJPEG(t, image.NewGray(image.Rect(0, 0, 8, 8))), format: FormatJPEG, channels: 1},
		{name: "png opaque", data: encodePNG(t, opaqueRGBA(4, 4)), format: FormatPNG, channels: 3, rgb: true},
		{name: "png alpha", data: encodePNG(t, translucent), format: FormatPNG, channels: 4},
		{name: "png gray", data: encodePNG(t, image.NewGray(image.Rect(0, 0, 2, 2))), format: FormatPNG, channels: 1},
		{name: "bmp", data: bmpBuf.Bytes(), format: FormatBMP, channels: 3, rgb: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.format, img.Format)
			assert.Equal(t, tt.channels, img.Channels)
			assert.Equal(t, tt.rgb, img.IsRGB())

			_, err = DecodeRGB(tt.data)
			if tt.rgb {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrNotRGB))
			}
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = DecodeRGB(nil)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDecodeWebP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, opaqueRGBA(5, 4), &webp.Options{Lossless: true}))

	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, FormatWebP, img.Format)
	assert.Equal(t, 5, img.Width)
	assert.Equal(t, 4, img.Height)

	_, err = Decode([]byte("RIFF\x00\x00\x00\x00WEBPVP8 garbage"))
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestPalettedChannels(t *testing.T) {
	opaque := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	assert.Equal(t, 3, Channels(opaque))

	translucent := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.Transparent})
	assert.Equal(t, 4, Channels(translucent))
}

func TestPackRGB(t *testing.T) {
	src := opaqueRGBA(3, 2)
	sub := src.SubImage(image.Rect(1, 0, 3, 2)).(*image.RGBA)

	rgba := ToRGBA(sub)
	assert.Equal(t, image.Rect(0, 0, 2, 2), rgba.Bounds())

	dst := make([]int32, 2*2*3)
	PackRGB(rgba, dst, func(v uint8) int32 { return int32(v) })
	assert.Equal(t, []int32{10, 0, 128, 20, 0, 128, 10, 10, 128, 20, 10, 128}, dst)
}
