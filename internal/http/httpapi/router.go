package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"shortform/internal/http/handlers"
	"shortform/internal/middleware"
)

// RouterOptions tunes the cross-cutting middleware stack.
type RouterOptions struct {
	Logger          zerolog.Logger
	RateLimitPerMin int
	DefaultLocale   string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.I18N(opts.DefaultLocale),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.SubmitJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.JobStatus)
			r.Post("/resume", app.ResumeJob)
			r.Post("/rework", app.ReworkJob)
			r.Get("/artifacts.zip", app.ExportJobArtifacts)
		})
	})

	return r
}
