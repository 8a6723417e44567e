// Package httpapi assembles the chi router and its middleware chain.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// Options tunes the middleware chain around the handlers.
type Options struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	GenerateLimit   int           // requests per window per client IP
	GenerateWindow  time.Duration // rate-limit window, defaults to one minute
	StaticDir       string        // serves stored images when non-empty
	StaticURLPrefix string
}

// NewRouter builds the public HTTP surface.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		middleware.Logger(opts.Logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.GenerateLimit > 0 {
				window := opts.GenerateWindow
				if window <= 0 {
					window = time.Minute
				}
				r.Use(middleware.RateLimit(opts.GenerateLimit, window))
			}
			r.Post("/generate", app.Generate)
		})
		r.Get("/generations", app.ListGenerations)
		r.Get("/generations/{id}", app.GetGeneration)
		r.Get("/statistics", app.Stats)
	})

	if opts.StaticDir != "" {
		prefix := opts.StaticURLPrefix
		if prefix == "" {
			prefix = "/static"
		}
		fs := http.StripPrefix(prefix, http.FileServer(http.Dir(opts.StaticDir)))
		r.Get(prefix+"/*", fs.ServeHTTP)
	}

	return r
}
