package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// APIPrefix is the mount point of the editor routes.
const APIPrefix = "/api/timelapse-editor"

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", h.Health)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/load", h.Load)
		r.Get("/list", h.List)
		r.Get("/frame/{index}", h.Frame)
		r.Get("/frame_preview/{index}", h.FramePreview)
		r.Post("/previews", h.Previews)
		r.Post("/extract_frame", h.ExtractFrame)
		r.Post("/batch_edit", h.BatchEdit)
		r.Post("/assemble", h.Assemble)
		r.Post("/save_project", h.SaveProject)
		r.Post("/load_project", h.LoadProject)
		r.Post("/close", h.Close)
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/{id}", h.GetTask)
	})

	return r
}
