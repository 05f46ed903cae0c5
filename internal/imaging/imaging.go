// Package imaging normalises downloaded pictures to JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	// Registered decoders.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Quality is the JPEG quality used for every re-encode.
const Quality = 100

// ErrUnsupportedImage is returned when no registered decoder accepts the bytes.
var ErrUnsupportedImage = errors.New("imaging: unsupported image data")

// ToJPEG decodes data in any registered format and returns it as a JPEG.
// Transparent areas are flattened onto white.
func ToJPEG(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedImage
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, flatten(img), &jpeg.Options{Quality: Quality}); err != nil {
		return nil, format, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), format, nil
}

func flatten(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.CMYK:
		return img
	}
	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Over)
	return canvas
}
