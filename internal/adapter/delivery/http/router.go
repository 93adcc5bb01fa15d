// Package http exposes the URL shortener over HTTP.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/shorturl/docs"
	"github.com/vadimbarashkov/shorturl/pkg/middleware/recoverer"
)

// NewRouter initializes a chi router with the shortener API, metrics and API docs.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(docs.Swagger)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", handlePing)
		r.Get("/hello", handleHello)

		r.Route("/shorturl", func(r chi.Router) {
			h := newURLHandler(urlUseCase)

			r.Post("/", h.shortenURL)
			r.Get("/{shortID}", h.resolveShortCode)
		})
	})

	return r
}
