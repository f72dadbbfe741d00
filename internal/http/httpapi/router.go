package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/24981a0558-joel/manna-contribution/internal/http/handlers"
	"github.com/24981a0558-joel/manna-contribution/internal/middleware"
)

// Options carries the request pipeline settings of the router.
type Options struct {
	Locales         *middleware.Locales
	Country         middleware.CountryLookup
	CORSOrigins     []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	if opts.Locales == nil {
		opts.Locales = middleware.NewLocales("")
	}
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.Locales, opts.Country),
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/auth/google", app.AuthGoogle)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.JWTSecret), middleware.ResolveActor(app.Resolver, app.Logger))

			r.Get("/me", app.Me)
			r.Get("/events", app.Events)
			r.Get("/dashboard", app.Dashboard)
			r.Get("/audit", app.AuditLog)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", app.ListUsers)
				r.Put("/", app.PutUser)
				r.Delete("/{key}", app.DeleteUser)
			})

			r.Route("/events/{event}/{year}", func(r chi.Router) {
				r.Get("/counter", app.Counter)
				r.Route("/contributions", func(r chi.Router) {
					r.Get("/", app.ListContributions)
					r.Post("/", app.CreateContribution)
					r.Get("/stream", app.StreamContributions)
					r.Post("/import", app.ImportContributions)
					r.Get("/export", app.ExportContributions)
					r.Put("/{id}", app.UpdateContribution)
					r.Delete("/{id}", app.DeleteContribution)
				})
			})
		})
	})

	return r
}
