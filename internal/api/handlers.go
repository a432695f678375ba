// Package api provides HTTP API handlers.
package api

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/videoforensics/veriscope/internal/database"
	"github.com/videoforensics/veriscope/internal/models"
	"github.com/videoforensics/veriscope/internal/pipeline"
)

// Analyzer runs analysis jobs. Satisfied by *pipeline.Pipeline.
type Analyzer interface {
	AnalyzeFactCheck(ctx context.Context, in pipeline.Input) (*models.FinalReport, error)
	AnalyzeAIDetection(ctx context.Context, in pipeline.Input) (*models.FinalReport, error)
}

// HealthInfo describes the configured collaborator services for the health
// endpoint.
type HealthInfo struct {
	Version       string
	LLMProvider   string
	Understanding string
	SearchSources []string
}

// Handler contains all HTTP handlers.
type Handler struct {
	analyzer       Analyzer
	store          database.Store
	health         HealthInfo
	maxUploadBytes int64
}

// NewHandler creates a new handler. maxUploadMB bounds multipart uploads.
func NewHandler(analyzer Analyzer, store database.Store, health HealthInfo, maxUploadMB int) *Handler {
	return &Handler{
		analyzer:       analyzer,
		store:          store,
		health:         health,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// HealthCheck returns the service health status and configured services.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"version":   h.health.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": map[string]interface{}{
			"llm":           h.health.LLMProvider,
			"understanding": h.health.Understanding,
			"search":        h.health.SearchSources,
		},
	}
	writeJSON(w, http.StatusOK, response)
}

// AnalyzeFactCheck handles fact-check analysis requests. The multipart form
// carries the video file plus optional caption_text and posted_date fields.
func (h *Handler) AnalyzeFactCheck(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readAnalysisInput(w, r)
	if !ok {
		return
	}

	report, err := h.analyzer.AnalyzeFactCheck(r.Context(), in)
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}

	h.saveReport(report)
	writeJSON(w, http.StatusOK, report)
}

// AnalyzeAIDetection handles AI-generation detection requests.
func (h *Handler) AnalyzeAIDetection(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readAnalysisInput(w, r)
	if !ok {
		return
	}

	report, err := h.analyzer.AnalyzeAIDetection(r.Context(), in)
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}

	h.saveReport(report)
	writeJSON(w, http.StatusOK, renderDetection(report))
}

func (h *Handler) readAnalysisInput(w http.ResponseWriter, r *http.Request) (pipeline.Input, bool) {
	// Leave headroom for the non-file form fields.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return pipeline.Input{}, false
	}

	file, _, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Video file is required")
		return pipeline.Input{}, false
	}
	defer file.Close()

	video, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read video upload")
		return pipeline.Input{}, false
	}

	return pipeline.Input{
		Video:      video,
		Caption:    r.FormValue("caption_text"),
		PostedDate: r.FormValue("posted_date"),
	}, true
}

func (h *Handler) writeAnalysisError(w http.ResponseWriter, err error) {
	var critical *pipeline.CriticalPhaseError

	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrJobTimedOut):
		writeError(w, http.StatusGatewayTimeout, "Analysis timed out")
	case errors.As(err, &critical):
		log.Error().Err(err).Str("phase", critical.Phase).Msg("Analysis failed")
		writeError(w, http.StatusBadGateway, "Analysis failed in phase "+critical.Phase)
	default:
		log.Error().Err(err).Msg("Analysis failed")
		writeError(w, http.StatusInternalServerError, "Analysis failed")
	}
}

// saveReport archives the report without blocking the response on storage
// failures.
func (h *Handler) saveReport(report *models.FinalReport) {
	if err := h.store.SaveReport(context.Background(), report); err != nil {
		log.Error().Err(err).Str("report_id", report.ID).Msg("Failed to save report")
	}
}

// GetReport returns a stored report by ID.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID is required")
		return
	}

	report, err := h.store.GetReport(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get report")
		writeError(w, http.StatusInternalServerError, "Failed to get report")
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "Report not found")
		return
	}

	if report.Track == models.TrackAIDetection {
		writeJSON(w, http.StatusOK, renderDetection(report))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListReports returns paginated report summaries.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	reports, err := h.store.ListReports(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reports")
		writeError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetAuditLogs returns paginated audit logs.
func (h *Handler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	logs, err := h.store.GetAuditLogs(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get audit logs")
		writeError(w, http.StatusInternalServerError, "Failed to get audit logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}

// CreateAPIKey creates a new API key.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name              string `json:"name"`
		RequestsPerMinute int    `json:"requests_per_minute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	// Generate random API key
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate key")
		return
	}
	rawKey := "vsc_" + base64.URLEncoding.EncodeToString(keyBytes)

	// Hash for storage
	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])

	if req.RequestsPerMinute <= 0 {
		req.RequestsPerMinute = 60
	}

	apiKey := &models.APIKey{
		ID:                uuid.New().String(),
		KeyHash:           keyHash,
		Name:              req.Name,
		RequestsPerMinute: req.RequestsPerMinute,
		CreatedAt:         time.Now(),
	}

	if err := h.store.CreateAPIKey(r.Context(), apiKey); err != nil {
		log.Error().Err(err).Msg("Failed to create API key")
		writeError(w, http.StatusInternalServerError, "Failed to create API key")
		return
	}

	// Return the raw key only once
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                  apiKey.ID,
		"key":                 rawKey, // Only returned on creation
		"name":                apiKey.Name,
		"requests_per_minute": apiKey.RequestsPerMinute,
		"created_at":          apiKey.CreatedAt,
	})
}

// ListAPIKeys lists all API keys (without the actual keys).
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list API keys")
		writeError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys": keys,
	})
}

// DeleteAPIKey deletes an API key.
func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID is required")
		return
	}

	if err := h.store.DeleteAPIKey(r.Context(), id); err != nil {
		log.Error().Err(err).Msg("Failed to delete API key")
		writeError(w, http.StatusInternalServerError, "Failed to delete API key")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
