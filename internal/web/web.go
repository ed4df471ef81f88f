package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"jsoncal/internal/calendar"
	"jsoncal/internal/config"
	"jsoncal/internal/ics"
	"jsoncal/internal/jsonschema"
	appLog "jsoncal/internal/log"
	"jsoncal/internal/model"
	"jsoncal/internal/rule"
)

// MaxBodySize bounds request documents.
const MaxBodySize = 8 << 20

// Server exposes validation, schema export and iCalendar conversion over
// HTTP.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	// Exported schemas per option set. The rule graph is static, so an
	// export never goes stale.
	schemaMu    sync.RWMutex
	schemaCache map[jsonschema.Options][]byte
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:         cfg,
		mux:         http.NewServeMux(),
		schemaCache: make(map[jsonschema.Options][]byte),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return logRequests(h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="jsoncal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}

// StartServer serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config) error {
	s := NewServer(cfg)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/validate", s.handleValidate)
	s.mux.HandleFunc("POST /api/ics", s.handleICS)
	s.mux.HandleFunc("GET /api/contract", s.handleContract)
	s.mux.HandleFunc("GET /schema.json", s.handleSchema)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// validateResponse is the JSON response shape for /api/validate.
type validateResponse struct {
	Valid    bool            `json:"valid"`
	Calendar *model.Calendar `json:"calendar,omitempty"`
	Issues   rule.Issues     `json:"issues,omitempty"`
}

// handleValidate validates the request body.
//
// POST /api/validate[?fail_fast=1]
//   - Content-Type application/json (default), application/yaml or
//     text/calendar selects the decoder.
//   - 200 with the normalized calendar, 422 with issues, 400 when the body
//     cannot be read or is not iCalendar.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	cal, ok := s.validateRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, Calendar: cal})
}

// handleICS validates the request body and renders it as text/calendar.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	cal, ok := s.validateRequest(w, r)
	if !ok {
		return
	}
	out, err := ics.Encode(cal, s.cfg.EncodeOptions())
	if err != nil {
		appLog.Error("api ics: encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// validateRequest writes the error response itself and reports false when
// the body does not yield a valid calendar.
func (s *Server) validateRequest(w http.ResponseWriter, r *http.Request) (*model.Calendar, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}

	opts := s.cfg.ValidationOptions()
	if v := r.URL.Query().Get("fail_fast"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.FailFast = b
		}
	}

	var cal *model.Calendar
	switch mediaType(r) {
	case "application/yaml", "application/x-yaml", "text/yaml":
		cal, err = calendar.ValidateYAML(body, opts)
	case "text/calendar":
		doc, derr := ics.Decode(body)
		if derr != nil {
			writeError(w, http.StatusBadRequest, derr.Error())
			return nil, false
		}
		cal, err = calendar.ValidateWith(doc, opts)
	default:
		cal, err = calendar.ValidateJSON(body, opts)
	}
	if err != nil {
		var verr *rule.ValidationError
		if errors.As(err, &verr) {
			appLog.Debug("api validate: document rejected", "issues", len(verr.Issues), "first", verr.Issues[0].Error())
			writeJSON(w, http.StatusUnprocessableEntity, validateResponse{Issues: verr.Issues})
			return nil, false
		}
		appLog.Error("api validate: unexpected error", err)
		writeError(w, http.StatusInternalServerError, "validation failed")
		return nil, false
	}
	return cal, true
}

func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return "application/json"
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "application/json"
	}
	return mt
}

// handleSchema serves the exported JSON Schema.
//
// GET /schema.json[?target=draft-07][&reused=inline][&io=output]
// Query parameters override the configured exporter options.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	opts := s.cfg.ExportOptions()
	q := r.URL.Query()
	if v := q.Get("target"); v != "" {
		opts.Target = jsonschema.Target(v)
	}
	if v := q.Get("reused"); v != "" {
		opts.Reused = jsonschema.Reused(v)
	}
	if v := q.Get("io"); v != "" {
		opts.IO = jsonschema.IO(v)
	}
	switch {
	case opts.Target != jsonschema.Draft202012 && opts.Target != jsonschema.Draft07,
		opts.Reused != jsonschema.ReusedRef && opts.Reused != jsonschema.ReusedInline,
		opts.IO != jsonschema.IOInput && opts.IO != jsonschema.IOOutput:
		writeError(w, http.StatusBadRequest, "unsupported schema option")
		return
	}

	data, err := s.exportSchema(opts)
	if err != nil {
		appLog.Error("schema export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export schema")
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) exportSchema(opts jsonschema.Options) ([]byte, error) {
	s.schemaMu.RLock()
	data, ok := s.schemaCache[opts]
	s.schemaMu.RUnlock()
	if ok {
		return data, nil
	}

	data, err := jsonschema.Export(calendar.Calendar, opts).JSON()
	if err != nil {
		return nil, err
	}
	s.schemaMu.Lock()
	s.schemaCache[opts] = data
	s.schemaMu.Unlock()
	return data, nil
}

// contractResponse is the JSON response shape for /api/contract.
type contractResponse struct {
	OK         bool                  `json:"ok"`
	Mismatches []jsonschema.Mismatch `json:"mismatches"`
}

// handleContract checks the configured export against the canonical
// contract.
func (s *Server) handleContract(w http.ResponseWriter, _ *http.Request) {
	canonical, err := s.cfg.CanonicalSchema()
	if err != nil {
		appLog.Error("canonical schema unavailable", err, "path", s.cfg.Schema.Canonical)
		writeError(w, http.StatusInternalServerError, "canonical schema unavailable")
		return
	}
	ms := jsonschema.CheckContract(jsonschema.Export(calendar.Calendar, s.cfg.ExportOptions()), canonical)
	if ms == nil {
		ms = []jsonschema.Mismatch{}
	}
	writeJSON(w, http.StatusOK, contractResponse{OK: len(ms) == 0, Mismatches: ms})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
