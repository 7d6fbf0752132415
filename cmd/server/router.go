package main

import (
	"net/http"

	"github.com/ashureev/cgpt/internal/api"
	"github.com/ashureev/cgpt/internal/middleware"
	"github.com/ashureev/cgpt/internal/terminal"
	"github.com/ashureev/cgpt/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// routerDeps are the handlers mounted by newRouter.
type routerDeps struct {
	chat        *api.ChatHandler
	health      *api.HealthHandler
	ws          *terminal.WebSocketHandler
	corsOrigins []string
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(d.corsOrigins))

	d.health.RegisterHealth(r)

	// WebSocket endpoint. Registered outside the compression group so the
	// upgrade sees the raw ResponseWriter.
	r.Get("/ws/chat", d.ws.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Compress(5, "application/json", "text/plain", "text/html", "text/css", "application/javascript"))

		d.chat.RegisterRoutes(r)

		// Serve embedded chat client.
		r.Get(web.MountPath, http.RedirectHandler(web.MountPath+"/", http.StatusMovedPermanently).ServeHTTP)
		r.Handle(web.MountPath+"/*", web.SPAHandler())
	})

	return r
}
