package stability

import (
	"bytes"
	"image"
	"image/color"

	"server/internal/imaging"
)

// Torso ellipse proportions: white pixels mark the area the API may repaint.
// The band covers the typical apparel region on a standing or sitting dog.
const (
	maskWidthRatio  = 0.6
	maskHeightRatio = 0.4
	maskTopRatio    = 0.3

	fallbackMaskSize = 512
)

// BuildApparelMask renders a PNG mask matching the source image dimensions:
// black keeps the original pixels, a white ellipse over the torso area is
// eligible for inpainting. When the source does not decode, a fixed 512x512
// rectangular mask is returned so the call can still proceed.
func BuildApparelMask(source []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(source))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return fallbackMask()
	}

	width, height := cfg.Width, cfg.Height
	mask := image.NewGray(image.Rect(0, 0, width, height))

	rx := float64(width) * maskWidthRatio / 2
	ry := float64(height) * maskHeightRatio / 2
	cx := float64(width) / 2
	cy := float64(height)*maskTopRatio + ry

	for y := 0; y < height; y++ {
		dy := (float64(y) - cy) / ry
		for x := 0; x < width; x++ {
			dx := (float64(x) - cx) / rx
			if dx*dx+dy*dy <= 1 {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return imaging.EncodePNG(mask)
}

func fallbackMask() ([]byte, error) {
	mask := image.NewGray(image.Rect(0, 0, fallbackMaskSize, fallbackMaskSize))
	for y := 200; y < 400; y++ {
		for x := 128; x < 384; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return imaging.EncodePNG(mask)
}
