package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultMaxDimension bounds the longest side sent to the generation API.
const DefaultMaxDimension = 1024

// ResizeToFit scales the image down so neither side exceeds maxDim, keeping
// the aspect ratio. Input already within bounds is returned unchanged,
// byte-for-byte. The output keeps the source encoding where Go can encode it;
// webp sources are re-encoded as PNG.
func ResizeToFit(data []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDim && height <= maxDim {
		return data, nil
	}

	newWidth, newHeight := fitWithin(width, height, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	return encode(dst, format)
}

func fitWithin(width, height, maxDim int) (int, int) {
	if width >= height {
		return maxDim, scaleSide(height, width, maxDim)
	}
	return scaleSide(width, height, maxDim), maxDim
}

func scaleSide(side, longest, maxDim int) int {
	scaled := side * maxDim / longest
	if scaled < 1 {
		return 1
	}
	return scaled
}

func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
		}
	default:
		// png for png sources and for formats Go cannot encode (webp, gif).
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("imaging: encode png: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// EncodePNG re-encodes any decodable image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	return encode(img, "png")
}
