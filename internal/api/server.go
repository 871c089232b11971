// Package api exposes the analysis pipeline, profile management and the
// report index over HTTP.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vibe-mind/internal/pipeline"
	"vibe-mind/internal/platform"
	"vibe-mind/internal/profile"
	"vibe-mind/internal/storage"
)

const (
	defaultProfileKey  = "product_designer"
	defaultPlatformKey = "v0"
	defaultMaxUpload   = 25 << 20
	summaryChars       = 500
)

type Options struct {
	Pipeline  *pipeline.Pipeline
	Profiles  *profile.Registry
	Platforms *platform.Registry
	// Files and Index are optional. Without Files nothing is written and
	// handoff_file is null.
	Files *storage.Files
	Index *storage.Index

	VisionConfigured bool
	RequestTimeout   time.Duration
	MaxUploadBytes   int64
	Logger           *slog.Logger
	Now              func() time.Time
}

type Server struct {
	pipeline  *pipeline.Pipeline
	profiles  *profile.Registry
	store     *profile.Store
	platforms *platform.Registry
	files     *storage.Files
	index     *storage.Index

	visionConfigured bool
	timeout          time.Duration
	maxUpload        int64
	logger           *slog.Logger
	now              func() time.Time
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	s := &Server{
		pipeline:         opts.Pipeline,
		profiles:         opts.Profiles,
		platforms:        opts.Platforms,
		files:            opts.Files,
		index:            opts.Index,
		visionConfigured: opts.VisionConfigured,
		timeout:          timeout,
		maxUpload:        maxUpload,
		logger:           logger,
		now:              now,
	}
	if opts.Profiles != nil {
		s.store = profile.NewStore(opts.Profiles)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Get("/", s.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/profiles", s.handleListProfiles)
		r.Post("/profiles", s.handleCreateProfile)
		r.Put("/profiles/{key}", s.handleUpdateProfile)
		r.Delete("/profiles/{key}", s.handleDeleteProfile)

		r.Get("/platforms", s.handleListPlatforms)

		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze-upload", s.handleAnalyzeUpload)

		r.Get("/reports", s.handleReports)
	})
	return r
}

type apiError struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, apiError{Status: "error", Detail: detail})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"dur_ms", time.Since(start).Milliseconds(),
		)
	})
}
