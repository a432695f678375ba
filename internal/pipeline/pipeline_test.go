package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforensics/veriscope/internal/config"
	"github.com/videoforensics/veriscope/internal/factcheck"
	"github.com/videoforensics/veriscope/internal/fusion"
	"github.com/videoforensics/veriscope/internal/llm"
	"github.com/videoforensics/veriscope/internal/models"
	"github.com/videoforensics/veriscope/internal/search"
	"github.com/videoforensics/veriscope/internal/structuring"
)

type fakeProber struct {
	meta *models.VideoMetadata
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, video []byte) (*models.VideoMetadata, error) {
	return f.meta, f.err
}

type fakeVideoService struct {
	uploadErr  error
	spliceErr  error
	aiErr      error
	splice     *models.SpliceSignal
	und        *models.Understanding
	ai         *models.ModelTrustSignal
	uploads    int
	undRuns    int
	spliceRuns int
	aiRuns     int
	mu         sync.Mutex
}

func (f *fakeVideoService) Upload(ctx context.Context, video []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "vid-1", nil
}

func (f *fakeVideoService) Understand(ctx context.Context, videoID string) (*models.Understanding, error) {
	f.mu.Lock()
	f.undRuns++
	f.mu.Unlock()
	if f.und == nil {
		return nil, errors.New("no understanding available")
	}
	return f.und, nil
}

func (f *fakeVideoService) SpliceAnalysis(ctx context.Context, videoID string) (*models.SpliceSignal, error) {
	f.mu.Lock()
	f.spliceRuns++
	f.mu.Unlock()
	if f.spliceErr != nil {
		return nil, f.spliceErr
	}
	return f.splice, nil
}

func (f *fakeVideoService) AIJudgment(ctx context.Context, videoID string, meta *models.VideoMetadata) (*models.ModelTrustSignal, error) {
	f.mu.Lock()
	f.aiRuns++
	f.mu.Unlock()
	if f.aiErr != nil {
		return nil, f.aiErr
	}
	return f.ai, nil
}

func (f *fakeVideoService) Name() string { return "fake" }

// dispatchProvider routes completions by system prompt so one fake serves
// every structuring operation.
type dispatchProvider struct{}

func (dispatchProvider) Name() string { return "fake" }

func (d dispatchProvider) Complete(ctx context.Context, prompt string, opts llm.CompletionOptions) (string, error) {
	return d.CompleteWithSystem(ctx, "", prompt, opts)
}

func (dispatchProvider) CompleteWithSystem(ctx context.Context, system, user string, opts llm.CompletionOptions) (string, error) {
	switch {
	case strings.Contains(system, "decomposing video content"):
		return `{"video_summary": "harbor report", "combined_summary": "harbor news report",
			"claims": [{"claim": "the harbor reopened in 2024", "claim_source": "video", "claim_type": "event", "confidence": 90}]}`, nil
	case strings.Contains(system, "against the provided web sources"):
		return `{"verdict": "true", "confidence": 85, "explanation": "confirmed by port authority"}`, nil
	case strings.Contains(system, "content timing matches"):
		return `{"likely_event_year": 2024, "time_relation": "same_year", "timeline_mismatch_risk_score": 5, "why": "recent footage"}`, nil
	case strings.Contains(system, "AI-generated or deepfaked"):
		return `{"is_ai": false, "trust_score": 88, "confidence": 75, "note": "consistent lighting"}`, nil
	}
	return "", errors.New("unexpected prompt")
}

type stubSearch struct{}

func (stubSearch) Search(ctx context.Context, query string, maxResults int) ([]models.Evidence, error) {
	return []models.Evidence{{Source: "stub", SourceURL: "https://example.com", Text: "the harbor reopened"}}, nil
}
func (stubSearch) Name() string    { return "stub" }
func (stubSearch) Available() bool { return true }

func testConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		JobTimeoutSeconds:    60,
		PhaseTimeoutSeconds:  10,
		FactCheckConcurrency: 2,
		MaxUploadMB:          1,
	}
}

func newTestPipeline(cfg *config.PipelineConfig, prober *fakeProber, video *fakeVideoService) *Pipeline {
	engine := structuring.NewEngine(dispatchProvider{})
	checker := factcheck.NewChecker(search.NewAggregatedClient(stubSearch{}), engine, cfg.FactCheckConcurrency)
	scorer := fusion.NewScorer(fusion.DefaultThresholds())
	return New(cfg, prober, video, engine, checker, scorer)
}

func healthyVideoService() *fakeVideoService {
	return &fakeVideoService{
		und: &models.Understanding{
			Transcript: "the harbor reopened this spring",
			Scenes:     []models.Scene{{Index: 0, Summary: "harbor aerial shot"}},
		},
		splice: &models.SpliceSignal{HasSuddenShifts: false, RiskScore: 10},
		ai:     &models.ModelTrustSignal{IsAIGenerated: false, TrustScore: 92, Confidence: 80, Note: "natural camera motion"},
	}
}

func TestAnalyzeFactCheckFullRun(t *testing.T) {
	prober := &fakeProber{meta: &models.VideoMetadata{Format: "mov,mp4", Encoder: "libx264"}}
	p := newTestPipeline(testConfig(), prober, healthyVideoService())

	report, err := p.AnalyzeFactCheck(context.Background(), Input{Video: []byte("bytes"), PostedDate: "2024-05-01"})
	require.NoError(t, err)

	assert.Equal(t, models.TrackFactCheck, report.Track)
	assert.NotEmpty(t, report.ID)
	require.NotNil(t, report.Final)
	assert.Equal(t, models.VerdictReal, report.Final.Verdict)
	assert.Contains(t, report.Final.OneLineLabel, "REAL")

	require.Len(t, report.Claims, 1)
	require.Len(t, report.FactCheck, 1)
	require.NotNil(t, report.FactCheck[0])
	assert.Equal(t, "true", report.FactCheck[0].Verdict)

	require.NotNil(t, report.Splice)
	require.NotNil(t, report.Timeline)
	require.NotNil(t, report.ModelTrust)
	assert.Equal(t, 92.0, report.ModelTrust.TrustScore, "judgment should run on the indexed video")
	assert.Empty(t, report.Warnings)
	assert.Equal(t, "harbor news report", report.Summary)
}

func TestAnalyzeFactCheckVideoJudgmentFallsBack(t *testing.T) {
	video := healthyVideoService()
	video.aiErr = errors.New("analyze endpoint down")
	p := newTestPipeline(testConfig(), &fakeProber{meta: &models.VideoMetadata{}}, video)

	report, err := p.AnalyzeFactCheck(context.Background(), Input{Video: []byte("bytes")})
	require.NoError(t, err)

	require.NotNil(t, report.ModelTrust)
	assert.Equal(t, 88.0, report.ModelTrust.TrustScore, "metadata judgment should cover the failure")
	assert.Equal(t, 1, video.aiRuns)
}

func TestAnalyzeFactCheckUnderstandingIsCritical(t *testing.T) {
	video := healthyVideoService()
	video.uploadErr = errors.New("service unreachable")
	p := newTestPipeline(testConfig(), &fakeProber{}, video)

	_, err := p.AnalyzeFactCheck(context.Background(), Input{Video: []byte("bytes")})
	require.Error(t, err)

	var critical *CriticalPhaseError
	require.ErrorAs(t, err, &critical)
	assert.Equal(t, PhaseUnderstanding, critical.Phase)
}

func TestAnalyzeFactCheckSpliceFailureDegrades(t *testing.T) {
	video := healthyVideoService()
	video.spliceErr = errors.New("analysis backend down")
	p := newTestPipeline(testConfig(), &fakeProber{meta: &models.VideoMetadata{}}, video)

	report, err := p.AnalyzeFactCheck(context.Background(), Input{Video: []byte("bytes")})
	require.NoError(t, err)

	assert.Nil(t, report.Splice)
	require.NotNil(t, report.Final)

	found := false
	for _, w := range report.Warnings {
		if w.Source == PhaseSplice {
			found = true
		}
	}
	assert.True(t, found, "splice failure should be surfaced as a warning")
}

func TestAnalyzeFactCheckProbeFailureDegrades(t *testing.T) {
	prober := &fakeProber{err: errors.New("ffprobe not installed")}
	p := newTestPipeline(testConfig(), prober, healthyVideoService())

	report, err := p.AnalyzeFactCheck(context.Background(), Input{Video: []byte("bytes")})
	require.NoError(t, err)

	assert.Nil(t, report.Metadata)
	assert.Nil(t, report.Provenance)
	require.NotNil(t, report.Final)
}

func TestValidateInput(t *testing.T) {
	p := newTestPipeline(testConfig(), &fakeProber{}, healthyVideoService())

	_, err := p.AnalyzeFactCheck(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	oversize := make([]byte, 2<<20) // cap is 1MB in testConfig
	_, err = p.AnalyzeFactCheck(context.Background(), Input{Video: oversize})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.AnalyzeAIDetection(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyzeFactCheckDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.JobTimeoutSeconds = 0 // deadline already passed when the job starts
	p := newTestPipeline(cfg, &fakeProber{}, healthyVideoService())

	_, err := p.AnalyzeFactCheck(context.Background(), Input{Video: []byte("bytes")})
	assert.ErrorIs(t, err, ErrJobTimedOut)
}

func TestAnalyzeAIDetectionJudgesVideo(t *testing.T) {
	video := healthyVideoService()
	meta := &models.VideoMetadata{Format: "mov,mp4"}
	p := newTestPipeline(testConfig(), &fakeProber{meta: meta}, video)

	report, err := p.AnalyzeAIDetection(context.Background(), Input{Video: []byte("bytes")})
	require.NoError(t, err)

	assert.Equal(t, models.TrackAIDetection, report.Track)
	require.NotNil(t, report.Detection)
	assert.False(t, report.Detection.IsAIGenerated)
	assert.Equal(t, 92.0, report.Detection.TrustScore)
	require.NotNil(t, report.ModelTrust)

	// The video is uploaded for the multimodal judgment, but no transcript
	// or splice analysis runs on this track.
	assert.Equal(t, 1, video.uploads)
	assert.Equal(t, 1, video.aiRuns)
	assert.Equal(t, 0, video.undRuns)
	assert.Equal(t, 0, video.spliceRuns)
	assert.Nil(t, report.Final)
}

func TestAnalyzeAIDetectionUploadFailureDegrades(t *testing.T) {
	video := healthyVideoService()
	video.uploadErr = errors.New("service unreachable")
	meta := &models.VideoMetadata{Format: "mov,mp4"}
	p := newTestPipeline(testConfig(), &fakeProber{meta: meta}, video)

	report, err := p.AnalyzeAIDetection(context.Background(), Input{Video: []byte("bytes")})
	require.NoError(t, err)

	// The metadata-only judgment covers for the missing indexed video.
	require.NotNil(t, report.Detection)
	assert.Equal(t, 88.0, report.Detection.TrustScore)
	assert.Equal(t, 0, video.aiRuns)

	found := false
	for _, w := range report.Warnings {
		if w.Source == PhaseUnderstanding {
			found = true
		}
	}
	assert.True(t, found, "upload failure should be surfaced as a warning")
}

func TestJobCarriesInputFields(t *testing.T) {
	p := newTestPipeline(testConfig(), &fakeProber{}, healthyVideoService())

	job := p.newJob(models.TrackFactCheck, Input{Caption: "harbor reopening", PostedDate: "2024-05-01"})

	assert.Equal(t, "harbor reopening", job.Caption)
	assert.Equal(t, "2024-05-01", job.PostedDate)
	assert.False(t, job.Deadline.Before(job.CreatedAt))
}

func TestProgressEvents(t *testing.T) {
	p := newTestPipeline(testConfig(), &fakeProber{meta: &models.VideoMetadata{}}, healthyVideoService())

	var mu sync.Mutex
	seen := map[string]bool{}
	p.SetProgress(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Status == StatusCompleted {
			seen[ev.Phase] = true
		}
		assert.NotEmpty(t, ev.JobID)
		assert.False(t, ev.At.IsZero())
	})

	_, err := p.AnalyzeFactCheck(context.Background(), Input{Video: []byte("bytes")})
	require.NoError(t, err)

	for _, phase := range []string{PhaseProbe, PhaseUnderstanding, PhaseStructuring, PhaseFactCheck, PhaseSplice, PhaseTimeline, PhaseAIJudgment, PhaseFusion} {
		assert.True(t, seen[phase], "missing completed event for %s", phase)
	}
}
