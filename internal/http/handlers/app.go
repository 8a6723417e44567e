// Package handlers exposes the HTTP surface of the generation service.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/service"
)

// Pinger reports reachability of a dependency for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GenerateService runs the generation pipeline for one upload.
type GenerateService interface {
	Generate(ctx context.Context, in service.Input) (*service.Result, error)
}

// App bundles the dependencies of all HTTP handlers.
type App struct {
	Logger      zerolog.Logger
	Generator   GenerateService
	Generations domain.GenerationRepository
	Statistics  domain.StatisticsRepository

	// Health probes. Any of these may be nil when the dependency is not
	// configured; the health report then marks it as disabled.
	DB             Pinger
	Secondary      Pinger
	HasUpstreamKey bool

	MaxUploadBytes int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// error writes a structured error body. message is looked up in the locale
// catalog by code; detail carries the technical reason verbatim.
func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, status, errorBody{
		Error:   code,
		Message: localizedMessage(locale, code),
		Detail:  detail,
	})
}

// localizedMessage returns the user-facing text for an error code in the
// requested locale, falling back to English.
func localizedMessage(locale, code string) string {
	if msgs, ok := messageCatalog[locale]; ok {
		if msg, ok := msgs[code]; ok {
			return msg
		}
	}
	if msg, ok := messageCatalog["en"][code]; ok {
		return msg
	}
	return messageCatalog["en"]["internal"]
}

var messageCatalog = map[string]map[string]string{
	"en": {
		"bad_request":        "The request could not be processed.",
		"file_too_large":     "The uploaded file exceeds the size limit.",
		"unsupported_type":   "The uploaded file type is not supported.",
		"invalid_image":      "The uploaded file is not a valid image.",
		"upstream_error":     "The image generation service is unavailable. Please try again later.",
		"upstream_rejected":  "The image generation service rejected the request.",
		"not_found":          "The requested resource was not found.",
		"internal":           "An unexpected error occurred.",
		"persistence_failed": "The result could not be recorded. Please try again.",
	},
	"tr": {
		"bad_request":        "İstek işlenemedi.",
		"file_too_large":     "Yüklenen dosya boyut sınırını aşıyor.",
		"unsupported_type":   "Yüklenen dosya türü desteklenmiyor.",
		"invalid_image":      "Yüklenen dosya geçerli bir görsel değil.",
		"upstream_error":     "Görsel üretim servisi şu anda kullanılamıyor. Lütfen daha sonra tekrar deneyin.",
		"upstream_rejected":  "Görsel üretim servisi isteği reddetti.",
		"not_found":          "İstenen kaynak bulunamadı.",
		"internal":           "Beklenmeyen bir hata oluştu.",
		"persistence_failed": "Sonuç kaydedilemedi. Lütfen tekrar deneyin.",
	},
}
