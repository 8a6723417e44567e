package imaging

import (
	"bytes"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"server/internal/domain"
)

const (
	// DefaultLogoWidthPct sizes the logo relative to the base image width.
	DefaultLogoWidthPct = 10
	// DefaultLogoPadding offsets the logo from the bottom-right corner.
	DefaultLogoPadding = 20
)

// OverlayLogo pastes the logo onto the bottom-right corner of the base image
// and returns the composite as PNG. The logo is scaled to widthPct of the
// base width, preserving its aspect ratio. Failures are reported as
// *domain.ProcessingError; the caller decides whether they are fatal.
func OverlayLogo(base, logo []byte, widthPct, padding int) ([]byte, error) {
	if widthPct <= 0 {
		widthPct = DefaultLogoWidthPct
	}
	if padding < 0 {
		padding = DefaultLogoPadding
	}
	if len(logo) == 0 {
		return nil, &domain.ProcessingError{Step: "logo_overlay", Err: fmt.Errorf("logo asset is empty")}
	}

	baseImg, _, err := image.Decode(bytes.NewReader(base))
	if err != nil {
		return nil, &domain.ProcessingError{Step: "logo_overlay", Err: fmt.Errorf("decode base: %w", err)}
	}
	logoImg, _, err := image.Decode(bytes.NewReader(logo))
	if err != nil {
		return nil, &domain.ProcessingError{Step: "logo_overlay", Err: fmt.Errorf("decode logo: %w", err)}
	}

	bb := baseImg.Bounds()
	lb := logoImg.Bounds()
	logoWidth := bb.Dx() * widthPct / 100
	if logoWidth < 1 {
		logoWidth = 1
	}
	logoHeight := logoWidth * lb.Dy() / lb.Dx()
	if logoHeight < 1 {
		logoHeight = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, logoWidth, logoHeight))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), logoImg, lb, draw.Src, nil)

	result := image.NewRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	draw.Draw(result, result.Bounds(), baseImg, bb.Min, draw.Src)

	x := bb.Dx() - logoWidth - padding
	y := bb.Dy() - logoHeight - padding
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	target := image.Rect(x, y, x+logoWidth, y+logoHeight)
	draw.Draw(result, target, scaled, image.Point{}, draw.Over)

	out, err := EncodePNG(result)
	if err != nil {
		return nil, &domain.ProcessingError{Step: "logo_overlay", Err: err}
	}
	return out, nil
}
