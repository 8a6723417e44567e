// Package imaging provides the pure byte-level image operations used by the
// generation pipeline: boundary validation, aspect-preserving resize and logo
// overlay. No function in this package keeps hidden state.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"server/internal/domain"
)

// DefaultMaxBytes caps uploads at 10MB, matching the public API contract.
const DefaultMaxBytes = 10 * 1024 * 1024

// DefaultAllowedTypes lists the accepted upload MIME types.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ValidateOptions tunes the upload checks. Zero values fall back to defaults.
type ValidateOptions struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Validate checks size, declared MIME type and decodability of an upload.
// It returns the detected format on success and a typed
// *domain.ValidationError on rejection.
func Validate(data []byte, declaredType string, opts ValidateOptions) (string, error) {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	allowed := opts.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}

	if int64(len(data)) > maxBytes {
		return "", &domain.ValidationError{
			Reason: domain.ValidationTooLarge,
			Message: fmt.Sprintf("file size %.1fMB exceeds limit of %dMB",
				float64(len(data))/(1024*1024), maxBytes/(1024*1024)),
		}
	}

	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if !typeAllowed(declared, allowed) {
		return "", &domain.ValidationError{
			Reason:  domain.ValidationBadType,
			Message: fmt.Sprintf("file type %q not allowed, allowed types: %s", declaredType, strings.Join(allowed, ", ")),
		}
	}

	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", &domain.ValidationError{
			Reason:  domain.ValidationUndecodable,
			Message: fmt.Sprintf("invalid image file: %v", err),
		}
	}
	// The decode registry is binary-wide, so a decoder registered elsewhere
	// could accept formats outside the allowed set. Check the sniffed format
	// too, not just the declared type.
	if !typeAllowed(mimeForFormat(format), allowed) {
		return "", &domain.ValidationError{
			Reason:  domain.ValidationBadType,
			Message: fmt.Sprintf("file content is %s, allowed types: %s", format, strings.Join(allowed, ", ")),
		}
	}
	return format, nil
}

func mimeForFormat(format string) string {
	if format == "jpg" {
		format = "jpeg"
	}
	return "image/" + format
}

func typeAllowed(declared string, allowed []string) bool {
	for _, t := range allowed {
		if declared == strings.ToLower(strings.TrimSpace(t)) {
			return true
		}
	}
	return false
}
