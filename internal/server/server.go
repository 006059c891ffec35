// Package server exposes the Jellyfin source to an out-of-process host over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jellylink/jellylink/internal/provider"
)

// MetadataLookup answers plugin-info queries for a playback URL and for a
// resolved track.
type MetadataLookup interface {
	provider.PluginInfoModifier
	Lookup(uri string) map[string]any
	Len() int
}

// Config holds server configuration.
type Config struct {
	Addr   string
	Source provider.SourceManager
	Info   MetadataLookup
	Logger *slog.Logger
}

// Server is the HTTP bridge between a host and the source manager.
type Server struct {
	router chi.Router
	server *http.Server
	source provider.SourceManager
	info   MetadataLookup
	log    *slog.Logger
}

type loadResult struct {
	LoadType string     `json:"loadType"`
	Data     *trackData `json:"data,omitempty"`
}

type trackData struct {
	Info       provider.TrackInfo `json:"info"`
	PluginInfo map[string]any     `json:"pluginInfo"`
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: chi.NewRouter(),
		source: cfg.Source,
		info:   cfg.Info,
		log:    logger,
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/loadtracks", s.handleLoadTracks)
		r.Get("/trackinfo", s.handleTrackInfo)
	})
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"source": s.source.SourceName(),
		"tracks": s.info.Len(),
	})
}

func (s *Server) handleLoadTracks(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "identifier is required"})
		return
	}

	item, err := s.source.LoadItem(r.Context(), provider.AudioReference{Identifier: identifier})
	if err != nil {
		s.log.Error("load item", slog.String("identifier", identifier), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load failed"})
		return
	}

	track, ok := item.(provider.AudioTrack)
	if !ok {
		writeJSON(w, http.StatusOK, loadResult{LoadType: "empty"})
		return
	}

	pluginInfo := s.info.ModifyAudioTrackPluginInfo(track)
	if pluginInfo == nil {
		pluginInfo = map[string]any{}
	}
	writeJSON(w, http.StatusOK, loadResult{
		LoadType: "track",
		Data:     &trackData{Info: track.Info(), PluginInfo: pluginInfo},
	})
}

func (s *Server) handleTrackInfo(w http.ResponseWriter, r *http.Request) {
	fields := s.info.Lookup(r.URL.Query().Get("uri"))
	if fields == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown track"})
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting http bridge", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.log.Info("shutting down http bridge")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
