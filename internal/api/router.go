package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cardring/internal/scene"
	"github.com/starford/cardring/internal/sse"
)

// RouterConfig wires the dependencies of the HTTP routes.
type RouterConfig struct {
	Fetcher scene.Fetcher
	Opener  Opener
	// Scenes is optional; without it the scene routes are not mounted.
	Scenes Scenes
	// Broker is optional; without it the events route is not mounted.
	Broker *sse.Broker
	// AuthEnabled puts /open and the scene routes behind Bearer token auth.
	AuthEnabled bool
	Token       string
	// StaticDir, if set, is served at / with cross-origin headers.
	StaticDir string
}

// NewRouter creates a chi router with all routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Fetcher, cfg.Opener)

	r := chi.NewRouter()

	// Browser proxy.
	r.Get("/projectData", h.ProjectData)
	r.Get("/pageData", h.PageData)
	r.Get("/url2base64", h.URL2Base64)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

		if cfg.Opener != nil {
			r.Get("/open", h.Open)
		}

		if cfg.Scenes != nil {
			sh := NewSceneHandler(cfg.Scenes, cfg.Broker)
			r.Route("/api/scenes/{project}", func(r chi.Router) {
				r.Get("/", sh.Get)
				r.Post("/select", sh.Select)
				r.Post("/rotate", sh.Rotate)
				r.Post("/spin", sh.Spin)
				r.Post("/lift", sh.Lift)
				r.Post("/camera", sh.Camera)
				if cfg.Broker != nil {
					r.Get("/events", sh.Events)
				}
			})
		}
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", CORSHeaders(http.FileServer(http.Dir(cfg.StaticDir))))
	}

	return r
}
