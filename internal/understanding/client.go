package understanding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/videoforensics/veriscope/internal/config"
	"github.com/videoforensics/veriscope/internal/models"
)

const (
	defaultPollInterval = 2 * time.Second
	analyzeTemperature  = 0.2
)

// Client implements Service against a TwelveLabs-style HTTP API. An index
// is created lazily on first upload and reused for the process lifetime.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	httpClient   *http.Client
	pollInterval time.Duration

	mu      sync.Mutex
	indexID string
}

// NewClient creates an understanding client from configuration.
func NewClient(cfg *config.UnderstandingConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("understanding base URL is required")
	}

	model := cfg.Model
	if model == "" {
		model = "pegasus-1.2"
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        model,
		httpClient:   &http.Client{},
		pollInterval: defaultPollInterval,
	}, nil
}

// Name returns the service name for health reporting.
func (c *Client) Name() string {
	return "twelvelabs"
}

type indexRequest struct {
	IndexName string       `json:"index_name"`
	Models    []indexModel `json:"models"`
}

type indexModel struct {
	ModelName    string   `json:"model_name"`
	ModelOptions []string `json:"model_options"`
}

type indexResponse struct {
	ID string `json:"_id"`
}

type taskResponse struct {
	ID      string `json:"_id"`
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
}

type analyzeRequest struct {
	VideoID     string  `json:"video_id"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
}

type analyzeResponse struct {
	Data string `json:"data"`
}

func (c *Client) ensureIndex(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexID != "" {
		return c.indexID, nil
	}

	reqBody := indexRequest{
		IndexName: fmt.Sprintf("forensics-%d", time.Now().Unix()),
		Models: []indexModel{
			{ModelName: c.model, ModelOptions: []string{"visual", "audio"}},
		},
	}

	var resp indexResponse
	if err := c.postJSON(ctx, "/indexes", reqBody, &resp); err != nil {
		return "", fmt.Errorf("failed to create index: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("index creation returned no ID")
	}

	log.Debug().Str("index_id", resp.ID).Msg("Understanding: Created index")
	c.indexID = resp.ID
	return c.indexID, nil
}

// Upload sends the video for indexing and polls until it is ready.
func (c *Client) Upload(ctx context.Context, video []byte) (string, error) {
	indexID, err := c.ensureIndex(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("index_id", indexID); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	part, err := writer.CreateFormFile("video_file", "upload.mp4")
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(video); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/tasks", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	task, err := c.doTask(req)
	if err != nil {
		return "", fmt.Errorf("video upload failed: %w", err)
	}

	log.Debug().Str("task_id", task.ID).Msg("Understanding: Upload accepted, waiting for indexing")
	return c.waitForTask(ctx, task)
}

func (c *Client) waitForTask(ctx context.Context, task *taskResponse) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		switch task.Status {
		case "ready":
			if task.VideoID == "" {
				return task.ID, nil
			}
			return task.VideoID, nil
		case "failed":
			return "", fmt.Errorf("indexing task %s: %w", task.ID, ErrProcessingFailed)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/tasks/"+task.ID, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		c.setAuth(req)

		task, err = c.doTask(req)
		if err != nil {
			return "", fmt.Errorf("task poll failed: %w", err)
		}
	}
}

// Understand retrieves transcript, on-screen text and a scene summary for
// an indexed video.
func (c *Client) Understand(ctx context.Context, videoID string) (*models.Understanding, error) {
	prompt := `Return under EXACT headings:
TRANSCRIPT:
VISIBLE_TEXT:
SCENE_SUMMARY:`

	raw, err := c.analyze(ctx, videoID, prompt)
	if err != nil {
		return nil, err
	}

	return parseUnderstanding(raw), nil
}

const splicePrompt = `Return ONLY JSON:
{
  "has_sudden_shifts": true/false,
  "splice_risk_score": 0-100,
  "summary": ""
}

Rules:
- Ignore normal editing: tip cards, title screens, jump cuts, camera angles, b-roll.
- Give HIGH splice_risk_score only for real context mismatches:
  different locations as same, mismatched time/events, conflicting audio/visuals,
  repurposed footage, conflicting labels.
- Single coherent tutorial with edit cards: keep splice_risk_score low (0-30).`

// SpliceAnalysis asks the model to score context-shift manipulation.
func (c *Client) SpliceAnalysis(ctx context.Context, videoID string) (*models.SpliceSignal, error) {
	raw, err := c.analyze(ctx, videoID, splicePrompt)
	if err != nil {
		return nil, err
	}

	var sig models.SpliceSignal
	if err := decodeJSONReply(raw, &sig); err != nil {
		return nil, fmt.Errorf("splice analysis returned unparseable output: %w", err)
	}

	sig.RiskScore = clampScore(sig.RiskScore)
	return &sig, nil
}

const aiJudgmentPrompt = `You are a misinformation detection expert.

METADATA: %s

TASK:
1. Cross-reference visual and audio elements for consistency
2. Look for visual-audio inconsistency (e.g. environment does not match claims)
3. Detect signs of AI generation or deepfake manipulation
4. Check whether the metadata indicates AI generation

Return ONLY JSON:
{ "is_ai": true/false, "trust_score": 0-100, "confidence": 0-100, "note": "" }`

type aiJudgmentReply struct {
	IsAI       bool    `json:"is_ai"`
	TrustScore float64 `json:"trust_score"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note"`
}

// AIJudgment runs the multimodal AI-generation judgment on an indexed
// video. The container metadata is embedded in the prompt so the model can
// cross-check it against what it sees and hears.
func (c *Client) AIJudgment(ctx context.Context, videoID string, meta *models.VideoMetadata) (*models.ModelTrustSignal, error) {
	metaJSON := "{}"
	if meta != nil {
		if raw, err := json.Marshal(meta); err == nil {
			metaJSON = string(raw)
		}
	}

	raw, err := c.analyze(ctx, videoID, fmt.Sprintf(aiJudgmentPrompt, metaJSON))
	if err != nil {
		return nil, err
	}

	var reply aiJudgmentReply
	if err := decodeJSONReply(raw, &reply); err != nil {
		return nil, fmt.Errorf("AI judgment returned unparseable output: %w", err)
	}

	return &models.ModelTrustSignal{
		IsAIGenerated: reply.IsAI,
		TrustScore:    clampScore(reply.TrustScore),
		Confidence:    clampScore(reply.Confidence),
		Note:          reply.Note,
	}, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (c *Client) analyze(ctx context.Context, videoID, prompt string) (string, error) {
	reqBody := analyzeRequest{
		VideoID:     videoID,
		Prompt:      prompt,
		Temperature: analyzeTemperature,
	}

	var resp analyzeResponse
	if err := c.postJSON(ctx, "/analyze", reqBody, &resp); err != nil {
		return "", fmt.Errorf("analyze failed: %w", err)
	}

	return strings.TrimSpace(resp.Data), nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("service returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) doTask(req *http.Request) (*taskResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("service returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var task taskResponse
	if err := json.Unmarshal(respBody, &task); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &task, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
