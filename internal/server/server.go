// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/meditalk/internal/analysis"
	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
	"github.com/stupiduntilnot/meditalk/internal/db"
	"github.com/stupiduntilnot/meditalk/internal/media"
)

// Defaults for Options.
const (
	DefaultAddr           = ":8080"
	DefaultMaxUploadBytes = 20 << 20
	ShutdownTimeout       = 30 * time.Second

	multipartMemory = 8 << 20
)

// Options configures a Server. Zero values fall back to the defaults above.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	// Journal may be nil.
	Journal *db.Journal
	Logger  zerolog.Logger
}

// Server serves the chat endpoint over HTTP.
type Server struct {
	analyzer  analysis.Analyzer
	maxUpload int64
	journal   *db.Journal
	logger    zerolog.Logger
	server    *http.Server
}

type chatResponse struct {
	Text    string        `json:"text"`
	History []ctxpkg.Turn `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds a Server around analyzer. Call ListenAndServe to start it.
func New(analyzer analysis.Analyzer, opts Options) *Server {
	s := &Server{
		analyzer:  analyzer,
		maxUpload: opts.MaxUploadBytes,
		journal:   opts.Journal,
		logger:    opts.Logger,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	addr := opts.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withRequestID(mux)
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.logger.Info().Msg("http server stopped")
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	requestID := w.Header().Get(requestIDHeader)

	if r.ContentLength > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := parseForm(r); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large")
			return
		}
		logger.Debug().Err(err).Msg("invalid form data")
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	history, err := ctxpkg.DecodeHistory(r.FormValue("history"))
	if err != nil {
		logger.Debug().Err(err).Msg("invalid history")
		writeError(w, http.StatusBadRequest, "Invalid history")
		return
	}

	img, err := formImage(r)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read image")
		writeError(w, http.StatusBadRequest, "Invalid image")
		return
	}

	req := analysis.Request{Text: r.FormValue("prompt"), Image: img, History: history}
	result, err := analysis.Journaled(ctx, s.analyzer, s.journal, requestID, "http", req)
	if err != nil {
		writeError(w, statusFor(analysis.KindOf(err)), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Text: result.Reply, History: result.History})
}

// parseForm picks the parser from the Content-Type. ParseMultipartForm hides
// ParseForm errors behind ErrNotMultipart, and a repeated ParseForm call is a
// no-op, so urlencoded bodies must go straight to ParseForm.
func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(multipartMemory)
	}
	return r.ParseForm()
}

// formImage returns the uploaded "image" file, or nil when none was sent.
func formImage(r *http.Request) (*ctxpkg.Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return nil, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", fh.Filename, err)
	}
	return &ctxpkg.Image{
		Data:      data,
		MediaType: media.ResolveType(fh.Header.Get("Content-Type"), data),
	}, nil
}

func statusFor(kind analysis.Kind) int {
	switch kind {
	case analysis.KindValidation:
		return http.StatusBadRequest
	case analysis.KindAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID tags every request with a fresh id, attaches a request-scoped
// logger to its context and logs completion.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(requestIDHeader, id)

		logger := s.logger.With().Str("request_id", id).Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
