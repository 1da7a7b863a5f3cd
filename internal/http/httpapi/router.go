package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"cgigen/internal/http/handlers"
	"cgigen/internal/infra"
	"cgigen/internal/middleware"
)

// NewRouter wires the public API surface.
func NewRouter(app *handlers.App, logger infra.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.CORS(allowedOrigins),
		middleware.Logger(logger),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)
		r.Get("/pricing", app.Pricing)
		r.Post("/register", app.Register)
		r.Post("/login", app.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.JWTSecret))

			r.Get("/profile", app.Profile)
			r.Post("/credits/purchase", app.PurchaseCredits)

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", app.CreateJob)
				r.Get("/", app.ListJobs)
				r.Get("/{job_id}", app.JobStatus)
				r.Get("/{job_id}/download", app.DownloadJob)
			})
		})
	})

	return r
}
