package understanding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforensics/veriscope/internal/config"
	"github.com/videoforensics/veriscope/internal/models"
)

type fakeService struct {
	analyzeReplies map[string]string // prompt substring -> reply
	onAnalyze      func(analyzeRequest)
	taskPolls      int
	failTask       bool
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /indexes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"_id": "idx-1"})
	})
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		assert.Equal(t, "idx-1", r.FormValue("index_id"))
		json.NewEncoder(w).Encode(map[string]string{"_id": "task-1", "status": "processing"})
	})
	mux.HandleFunc("GET /tasks/task-1", func(w http.ResponseWriter, r *http.Request) {
		f.taskPolls++
		status := "ready"
		if f.failTask {
			status = "failed"
		} else if f.taskPolls < 2 {
			status = "indexing"
		}
		json.NewEncoder(w).Encode(map[string]string{"_id": "task-1", "status": status, "video_id": "vid-1"})
	})
	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "vid-1", req.VideoID)
		if f.onAnalyze != nil {
			f.onAnalyze(req)
		}
		for fragment, reply := range f.analyzeReplies {
			if strings.Contains(req.Prompt, fragment) {
				json.NewEncoder(w).Encode(map[string]string{"data": reply})
				return
			}
		}
		http.Error(w, "no scripted reply", http.StatusInternalServerError)
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeService) *Client {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(&config.UnderstandingConfig{BaseURL: srv.URL, APIKey: "test"})
	require.NoError(t, err)
	client.pollInterval = time.Millisecond
	return client
}

func TestUploadPollsUntilReady(t *testing.T) {
	fake := &fakeService{}
	client := newTestClient(t, fake)

	videoID, err := client.Upload(context.Background(), []byte("mp4 bytes"))
	require.NoError(t, err)
	assert.Equal(t, "vid-1", videoID)
	assert.GreaterOrEqual(t, fake.taskPolls, 2)
}

func TestUploadFailedTask(t *testing.T) {
	fake := &fakeService{failTask: true}
	client := newTestClient(t, fake)

	_, err := client.Upload(context.Background(), []byte("mp4 bytes"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessingFailed)
}

func TestUnderstandParsesHeadings(t *testing.T) {
	fake := &fakeService{analyzeReplies: map[string]string{
		"TRANSCRIPT": `TRANSCRIPT:
Welcome back everyone, today we visit the old harbor.
VISIBLE_TEXT:
LIVE FROM THE HARBOR
SCENE_SUMMARY:
1. Drone shot over the water
2. Reporter speaking to camera`,
	}}
	client := newTestClient(t, fake)

	u, err := client.Understand(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome back everyone, today we visit the old harbor.", u.Transcript)
	assert.Equal(t, "LIVE FROM THE HARBOR", u.OnScreenText)
	require.Len(t, u.Scenes, 2)
	assert.Equal(t, 0, u.Scenes[0].Index)
	assert.Equal(t, "Drone shot over the water", u.Scenes[0].Summary)
	assert.Equal(t, "Reporter speaking to camera", u.Scenes[1].Summary)
}

func TestSpliceAnalysisParsesFencedJSON(t *testing.T) {
	fake := &fakeService{analyzeReplies: map[string]string{
		"has_sudden_shifts": "```json\n{\"has_sudden_shifts\": true, \"splice_risk_score\": 140, \"summary\": \"footage from two events\"}\n```",
	}}
	client := newTestClient(t, fake)

	sig, err := client.SpliceAnalysis(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.True(t, sig.HasSuddenShifts)
	assert.Equal(t, 100.0, sig.RiskScore) // clamped
	assert.Equal(t, "footage from two events", sig.Summary)
}

func TestAIJudgmentEmbedsMetadata(t *testing.T) {
	var seenPrompt string
	fake := &fakeService{analyzeReplies: map[string]string{
		"misinformation detection expert": "```json\n{\"is_ai\": true, \"trust_score\": 25, \"confidence\": 130, \"note\": \"uncanny facial motion\"}\n```",
	}}
	fake.onAnalyze = func(req analyzeRequest) { seenPrompt = req.Prompt }
	client := newTestClient(t, fake)

	sig, err := client.AIJudgment(context.Background(), "vid-1", &models.VideoMetadata{Format: "mov,mp4", Encoder: "Lavf58"})
	require.NoError(t, err)

	assert.True(t, sig.IsAIGenerated)
	assert.Equal(t, 25.0, sig.TrustScore)
	assert.Equal(t, 100.0, sig.Confidence) // clamped
	assert.Equal(t, "uncanny facial motion", sig.Note)

	assert.Contains(t, seenPrompt, `"encoder":"Lavf58"`)
}

func TestAIJudgmentNilMetadata(t *testing.T) {
	fake := &fakeService{analyzeReplies: map[string]string{
		"misinformation detection expert": `{"is_ai": false, "trust_score": 80, "confidence": 60, "note": ""}`,
	}}
	client := newTestClient(t, fake)

	sig, err := client.AIJudgment(context.Background(), "vid-1", nil)
	require.NoError(t, err)
	assert.False(t, sig.IsAIGenerated)
	assert.Equal(t, 80.0, sig.TrustScore)
}

func TestSpliceAnalysisRejectsProse(t *testing.T) {
	fake := &fakeService{analyzeReplies: map[string]string{
		"has_sudden_shifts": "I could not determine anything about this video.",
	}}
	client := newTestClient(t, fake)

	_, err := client.SpliceAnalysis(context.Background(), "vid-1")
	require.Error(t, err)
}

func TestParseUnderstandingInlineHeadings(t *testing.T) {
	u := parseUnderstanding("TRANSCRIPT: hello there\nVISIBLE_TEXT:\nSCENE_SUMMARY: single take")
	assert.Equal(t, "hello there", u.Transcript)
	assert.Equal(t, "", u.OnScreenText)
	require.Len(t, u.Scenes, 1)
	assert.Equal(t, "single take", u.Scenes[0].Summary)
}
