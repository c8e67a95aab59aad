// Package handlers provides the HTTP API and AWS Lambda handlers for the NIL
// match engine.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nil-match-engine/internal/models"
	s3service "nil-match-engine/internal/services/s3"
	"nil-match-engine/internal/services/store"
)

const maxBodyBytes = 1 << 20

// Ranker runs ranked searches and single-pair scoring.
type Ranker interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
	Score(ctx context.Context, mode models.MatchMode, targetID, candidateID string) (*models.MatchResult, error)
}

// Refresher recomputes an agency's cached interaction scores.
type Refresher interface {
	RefreshScores(ctx context.Context, agencyID string) (*models.RefreshReport, error)
}

// UploadURLGenerator signs roster upload URLs.
type UploadURLGenerator interface {
	GenerateRosterUploadURL(ctx context.Context, filename string, expiry time.Duration) (*s3service.PresignedURLResult, error)
}

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// API serves the HTTP endpoints.
type API struct {
	ranker    Ranker
	refresher Refresher
	uploads   UploadURLGenerator
	health    *HealthChecker
	logger    *zap.Logger
}

// APIOption configures optional API endpoints.
type APIOption func(*API)

// WithUploads enables POST /api/rosters/upload-url.
func WithUploads(g UploadURLGenerator) APIOption {
	return func(a *API) { a.uploads = g }
}

// NewAPI creates the HTTP API.
func NewAPI(ranker Ranker, refresher Refresher, health *HealthChecker, logger *zap.Logger, opts ...APIOption) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &API{ranker: ranker, refresher: refresher, health: health, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes builds the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", a.handleSearch)
		r.Get("/campaigns/{id}/athletes/{athleteID}/score", a.handleScore(models.ModeCampaign))
		r.Get("/agencies/{id}/athletes/{athleteID}/score", a.handleScore(models.ModeAgency))
		r.Post("/agencies/{id}/refresh-scores", a.handleRefresh)
		if a.uploads != nil {
			r.Post("/rosters/upload-url", a.handleUploadURL)
		}
	})

	return r
}

type requestIDKey struct{}

// requestID tags every request with an X-Request-ID, keeping one supplied
// by the caller.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := a.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, Response{
		Success:   status == http.StatusOK,
		Message:   "NIL match engine is " + report.Status,
		Data:      report,
		RequestID: requestIDFrom(r.Context()),
	})
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	resp, err := a.ranker.Search(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.ok(w, r, resp)
}

func (a *API) handleScore(mode models.MatchMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := a.ranker.Score(r.Context(), mode, chi.URLParam(r, "id"), chi.URLParam(r, "athleteID"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.ok(w, r, result)
	}
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := a.refresher.RefreshScores(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, r, report)
}

// UploadURLRequest asks for a signed roster upload URL. The filename query
// parameter takes precedence over the body.
type UploadURLRequest struct {
	Filename string `json:"filename"`
}

func (a *API) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	req := UploadURLRequest{Filename: r.URL.Query().Get("filename")}
	if req.Filename == "" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			req.Filename = ""
		}
	}
	if req.Filename == "" {
		a.writeError(w, r, http.StatusBadRequest, "Missing required field: filename")
		return
	}

	result, err := a.uploads.GenerateRosterUploadURL(r.Context(), req.Filename, 0)
	if err != nil {
		if errors.Is(err, s3service.ErrNotCSV) {
			a.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		a.fail(w, r, err)
		return
	}
	a.ok(w, r, result)
}

func (a *API) ok(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		RequestID: requestIDFrom(r.Context()),
	})
}

// fail maps a service error onto an HTTP status.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		message = "internal error"
	}
	a.writeError(w, r, status, message)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, Response{
		Success:   false,
		Error:     message,
		RequestID: requestIDFrom(r.Context()),
	})
}

// StatusFor returns the HTTP status code for a service error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case models.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
