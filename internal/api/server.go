package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/patent-collector/internal/control"
	"github.com/JakeFAU/patent-collector/internal/metrics"
	"github.com/JakeFAU/patent-collector/internal/patent"
	"github.com/JakeFAU/patent-collector/internal/worker"
)

const requestTimeout = 30 * time.Second

// Controller is the control surface the handlers drive.
type Controller interface {
	Enqueue(ctx context.Context, url string) error
	SetPaused(ctx context.Context, paused bool) (worker.Status, error)
	TogglePause(ctx context.Context) (worker.Status, error)
	Start(ctx context.Context) (worker.Status, error)
	RequestSkip(ctx context.Context) (worker.Status, error)
	IsDownloading() bool
	ListRecords() ([]patent.Listing, error)
	PollLogs() control.LogSnapshot
	RecentEvents() []control.Event
}

// Server wires HTTP handlers to the control service.
type Server struct {
	router  chi.Router
	control Controller
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(ctrl Controller, allowedOrigins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		control: ctrl,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware(allowedOrigins))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/patents", func(r chi.Router) {
		r.Get("/list", s.listPatents)
		r.Post("/add", s.addPatent)
		r.Get("/control", s.controlWorker)
		r.Get("/logs", s.pollLogs)
		r.Get("/events", s.recentEvents)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listPatents(w http.ResponseWriter, _ *http.Request) {
	items, err := s.control.ListRecords()
	if err != nil {
		s.logger.Error("list patents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list patents")
		return
	}
	if items == nil {
		items = []patent.Listing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

type addRequest struct {
	URL string `json:"url"`
}

type statusMessage struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

func (s *Server) addPatent(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusMessage{Status: "error", Msg: "Invalid JSON"})
		return
	}
	err := s.control.Enqueue(r.Context(), req.URL)
	switch {
	case errors.Is(err, control.ErrEmptyURL):
		writeJSON(w, http.StatusBadRequest, statusMessage{Status: "error", Msg: "Empty URL"})
	case err != nil:
		s.logger.Error("enqueue failed", zap.String("url", req.URL), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, statusMessage{Status: "error", Msg: err.Error()})
	default:
		writeJSON(w, http.StatusOK, statusMessage{Status: "ok", Msg: "Added " + req.URL})
	}
}

type controlResponse struct {
	Status        string `json:"status"`
	Msg           string `json:"msg"`
	IsPaused      bool   `json:"is_paused"`
	IsDownloading bool   `json:"is_downloading"`
}

func (s *Server) controlWorker(w http.ResponseWriter, r *http.Request) {
	action := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("action")))
	ctx := r.Context()

	var (
		st  worker.Status
		err error
		msg string
	)
	switch action {
	case "start":
		st, err = s.control.Start(ctx)
		msg = "Task Started"
	case "pause":
		st, err = s.control.TogglePause(ctx)
		msg = "Resumed"
		if st.Paused {
			msg = "Paused"
		}
	case "resume":
		st, err = s.control.SetPaused(ctx, false)
		msg = "Resumed"
	case "skip":
		st, err = s.control.RequestSkip(ctx)
		msg = "Skipped Current"
	default:
		writeJSON(w, http.StatusBadRequest, statusMessage{Status: "error", Msg: fmt.Sprintf("Unknown action %q", action)})
		return
	}
	if err != nil {
		s.logger.Warn("control command failed", zap.String("action", action), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, statusMessage{Status: "error", Msg: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, controlResponse{
		Status:        "ok",
		Msg:           msg,
		IsPaused:      st.Paused,
		IsDownloading: s.control.IsDownloading(),
	})
}

func (s *Server) pollLogs(w http.ResponseWriter, _ *http.Request) {
	snap := s.control.PollLogs()
	if snap.Logs == nil {
		snap.Logs = []string{}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) recentEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": s.control.RecentEvents()})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestIDFrom(r.Context())),
						zap.Any("error", rec),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware answers preflights and stamps CORS headers. A "*" entry
// allows every origin.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	wildcard := false
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			wildcard = true
			continue
		}
		set[origin] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				if wildcard {
					h.Set("Access-Control-Allow-Origin", "*")
				} else if _, ok := set[origin]; ok {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
