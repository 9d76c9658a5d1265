// Package api sets up and starts the API server with routing and middleware.
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snapdish/snapdish/internal/api/middleware"
	"github.com/snapdish/snapdish/internal/api/routes/imports"
	"github.com/snapdish/snapdish/internal/api/routes/ping"
	"github.com/snapdish/snapdish/internal/env"
)

func addRoutes(router *chi.Mux) {
	router.Route("/api", func(r chi.Router) {
		r.Get("/ping", ping.HandlePing)

		r.Route("/imports", func(r chi.Router) {
			r.Use(middleware.Authenticate)

			r.Post("/url", imports.HandleImportURL)
			r.Post("/media", imports.HandleImportMedia)
			r.Get("/quota", imports.HandleQuota)
		})
	})
}

// Start runs the API server.
func Start(e *env.Env) error {
	router := chi.NewRouter()
	router.Use(middleware.AddRequestID)
	router.Use(middleware.LogRequest(e.Logger))
	router.Use(middleware.InjectEnv(e))

	addRoutes(router)

	addr := fmt.Sprintf(":%d", e.Config.Port)
	e.Logger.Info(fmt.Sprintf("Listening at 0.0.0.0%s", addr))
	return http.ListenAndServe(addr, router)
}
