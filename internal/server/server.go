package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"animeavatar/internal/app"
	"animeavatar/internal/ratelimit"
	"animeavatar/internal/util"
	"animeavatar/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes the upload/generate/history HTTP surface.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.Limiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("avatar", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/generate", s.handleGenerate)
	s.mux.HandleFunc("/history", s.handleHistory)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	Success      bool   `json:"success"`
	GenerationID string `json:"generationId,omitempty"`
	PhotoURL     string `json:"photoUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	// Slack above the payload ceiling covers multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()

	sessionToken := r.FormValue("sessionToken")
	if sessionToken == "" {
		writeError(w, http.StatusBadRequest, "sessionToken is required")
		return
	}
	style, ok := domain.ParseStyle(r.FormValue("style"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid style")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	contentType := header.Header.Get("Content-Type")

	result, err := s.app.Upload(r.Context(), app.UploadInput{
		Data:         data,
		ContentType:  contentType,
		SessionToken: sessionToken,
		Style:        style,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:      true,
		GenerationID: result.GenerationID,
		PhotoURL:     result.PhotoURL,
	})
}

type generateRequest struct {
	GenerationID string `json:"generationId"`
	ImageBase64  string `json:"imageBase64"`
	Style        string `json:"style"`
}

type generateResponse struct {
	Success   bool   `json:"success"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.limiter != nil {
		key := util.ClientIP(r, s.trustedProxies)
		if !s.limiter.Allow(key) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
	}
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 32<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.GenerationID == "" || req.ImageBase64 == "" {
		writeError(w, http.StatusBadRequest, "generationId and imageBase64 are required")
		return
	}
	style, ok := domain.ParseStyle(req.Style)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid style")
		return
	}

	avatarURL, err := s.app.Generate(r.Context(), app.GenerateInput{
		GenerationID: req.GenerationID,
		ImageBase64:  req.ImageBase64,
		Style:        style,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Success: true, AvatarURL: avatarURL})
}

type historyResponse struct {
	Success     bool                `json:"success"`
	Generations []domain.Generation `json:"generations"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	sessionToken := query.Get("sessionToken")
	if sessionToken == "" {
		writeError(w, http.StatusBadRequest, "sessionToken is required")
		return
	}
	limit := parseIntDefault(query.Get("limit"), 20)
	offset := parseIntDefault(query.Get("offset"), 0)

	generations, err := s.app.History(r.Context(), sessionToken, limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	// generations is non-nil even when empty so the field serializes
	// as [] rather than null.
	writeJSON(w, http.StatusOK, historyResponse{Success: true, Generations: generations})
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// writeAppError maps the error taxonomy onto HTTP statuses. Provider
// and persistence failures both surface as 500.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}
