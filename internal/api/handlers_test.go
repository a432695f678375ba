package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforensics/veriscope/internal/config"
	"github.com/videoforensics/veriscope/internal/models"
	"github.com/videoforensics/veriscope/internal/pipeline"
)

type fakeAnalyzer struct {
	factReport *models.FinalReport
	aiReport   *models.FinalReport
	err        error
	lastInput  pipeline.Input
}

func (f *fakeAnalyzer) AnalyzeFactCheck(ctx context.Context, in pipeline.Input) (*models.FinalReport, error) {
	f.lastInput = in
	return f.factReport, f.err
}

func (f *fakeAnalyzer) AnalyzeAIDetection(ctx context.Context, in pipeline.Input) (*models.FinalReport, error) {
	f.lastInput = in
	return f.aiReport, f.err
}

type fakeStore struct {
	reports map[string]*models.FinalReport
	keys    map[string]*models.APIKey
	saved   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reports: map[string]*models.FinalReport{},
		keys:    map[string]*models.APIKey{},
	}
}

func (s *fakeStore) SaveReport(ctx context.Context, r *models.FinalReport) error {
	s.saved++
	s.reports[r.ID] = r
	return nil
}

func (s *fakeStore) GetReport(ctx context.Context, id string) (*models.FinalReport, error) {
	return s.reports[id], nil
}

func (s *fakeStore) ListReports(ctx context.Context, limit, offset int) ([]*models.ReportSummary, error) {
	var out []*models.ReportSummary
	for _, r := range s.reports {
		out = append(out, &models.ReportSummary{ID: r.ID, Track: r.Track})
	}
	return out, nil
}

func (s *fakeStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	s.keys[key.KeyHash] = key
	return nil
}

func (s *fakeStore) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	return s.keys[hash], nil
}

func (s *fakeStore) UpdateAPIKeyLastUsed(ctx context.Context, id string, t time.Time) error {
	return nil
}
func (s *fakeStore) DeleteAPIKey(ctx context.Context, id string) error         { return nil }
func (s *fakeStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) { return nil, nil }
func (s *fakeStore) LogRequest(ctx context.Context, l *models.AuditLog) error  { return nil }
func (s *fakeStore) GetAuditLogs(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return nil, nil
}
func (s *fakeStore) Close() error   { return nil }
func (s *fakeStore) Migrate() error { return nil }

func testHealth() HealthInfo {
	return HealthInfo{
		Version:       "1.0.0",
		LLMProvider:   "openai",
		Understanding: "twelvelabs",
		SearchSources: []string{"duckduckgo", "wikipedia"},
	}
}

func multipartVideo(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("video", "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake video bytes"))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{}, newFakeStore(), testHealth(), 500)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	services := body["services"].(map[string]interface{})
	assert.Equal(t, "twelvelabs", services["understanding"])
	assert.Equal(t, "openai", services["llm"])
}

func TestAnalyzeFactCheckHandler(t *testing.T) {
	report := &models.FinalReport{
		ID:        "r-1",
		Track:     models.TrackFactCheck,
		CreatedAt: time.Now().UTC(),
		Final: &models.FinalVerdict{
			Verdict:           models.VerdictMisleading,
			ConfidencePercent: 70,
			OneLineLabel:      "MISLEADING - 70% Confidence (false claims)",
		},
	}
	analyzer := &fakeAnalyzer{factReport: report}
	store := newFakeStore()
	h := NewHandler(analyzer, store, testHealth(), 500)

	body, contentType := multipartVideo(t, map[string]string{
		"caption_text": "breaking news",
		"posted_date":  "2024-05-01",
	})
	req := httptest.NewRequest("POST", "/api/v1/analyze/factcheck", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.AnalyzeFactCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "breaking news", analyzer.lastInput.Caption)
	assert.Equal(t, "2024-05-01", analyzer.lastInput.PostedDate)
	assert.NotEmpty(t, analyzer.lastInput.Video)
	assert.Equal(t, 1, store.saved)

	var got models.FinalReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.VerdictMisleading, got.Final.Verdict)
}

func TestAnalyzeFactCheckMissingVideo(t *testing.T) {
	h := NewHandler(&fakeAnalyzer{}, newFakeStore(), testHealth(), 500)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("caption_text", "no video here"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/analyze/factcheck", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	h.AnalyzeFactCheck(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", pipeline.ErrInvalidInput, http.StatusBadRequest},
		{"timeout", pipeline.ErrJobTimedOut, http.StatusGatewayTimeout},
		{"critical phase", &pipeline.CriticalPhaseError{Phase: "understanding", Err: errors.New("down")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&fakeAnalyzer{err: tc.err}, newFakeStore(), testHealth(), 500)

			body, contentType := multipartVideo(t, nil)
			req := httptest.NewRequest("POST", "/api/v1/analyze/factcheck", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			h.AnalyzeFactCheck(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAnalyzeAIDetectionDualNaming(t *testing.T) {
	trust := &models.ModelTrustSignal{IsAIGenerated: true, TrustScore: 15, Confidence: 90, Note: "synthetic voice"}
	report := &models.FinalReport{
		ID:        "r-2",
		Track:     models.TrackAIDetection,
		CreatedAt: time.Now().UTC(),
		Detection: &models.DetectionVerdict{IsAIGenerated: true, TrustScore: 15, Confidence: 90, Note: "synthetic voice"},
		Provenance: &models.ProvenanceSignal{
			MarkersPresent: true,
			Manifest:       json.RawMessage(`{"active_manifest":"urn:m1"}`),
		},
		ModelTrust: trust,
	}
	h := NewHandler(&fakeAnalyzer{aiReport: report}, newFakeStore(), testHealth(), 500)

	body, contentType := multipartVideo(t, nil)
	req := httptest.NewRequest("POST", "/api/v1/analyze/ai-detection", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.AnalyzeAIDetection(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, true, got["is_ai_generated"])
	assert.Equal(t, 15.0, got["trust_score"])

	// The trust signal appears under both the legacy and the nested name.
	legacy := got["synthid"].(map[string]interface{})
	assert.Equal(t, true, legacy["is_ai"])

	methods := got["detection_methods"].(map[string]interface{})
	nested := methods["synthid_analysis"].(map[string]interface{})
	assert.Equal(t, legacy["trust_score"], nested["trust_score"])

	c2pa := methods["c2pa_metadata"].(map[string]interface{})
	assert.Equal(t, true, c2pa["detected"])
}

func TestGetReportNotFound(t *testing.T) {
	store := newFakeStore()
	router := NewRouter(testRouterConfig(), &fakeAnalyzer{}, store, testHealth())

	req := httptest.NewRequest("GET", "/api/v1/reports/missing", nil)
	req.Header.Set("Authorization", "Bearer "+seedKey(t, store))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRequiresAuth(t *testing.T) {
	router := NewRouter(testRouterConfig(), &fakeAnalyzer{}, newFakeStore(), testHealth())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/reports", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func testRouterConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RateLimits.RequestsPerMinute = 100
	return cfg
}

func seedKey(t *testing.T, store *fakeStore) string {
	raw := "vsc_test_key"
	hash := sha256.Sum256([]byte(raw))
	err := store.CreateAPIKey(context.Background(), &models.APIKey{
		ID:      "key-1",
		KeyHash: hex.EncodeToString(hash[:]),
		Name:    "test",
	})
	require.NoError(t, err)
	return raw
}
