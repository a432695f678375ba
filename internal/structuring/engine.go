// Package structuring turns raw video understanding output into discrete
// claims and model judgments via an LLM provider.
package structuring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/videoforensics/veriscope/internal/llm"
	"github.com/videoforensics/veriscope/internal/models"
)

const maxVideoTextChars = 3200

// Structured is the claim-extraction output for one video.
type Structured struct {
	VideoSummary    string
	CaptionSummary  string
	CombinedSummary string
	Claims          []models.Claim
}

// Summary returns the best available summary text.
func (s *Structured) Summary() string {
	if s.CombinedSummary != "" {
		return s.CombinedSummary
	}
	return s.VideoSummary
}

// Engine drives all model-backed structuring operations.
type Engine struct {
	provider llm.Provider
}

// NewEngine creates a structuring engine on the given provider.
func NewEngine(provider llm.Provider) *Engine {
	return &Engine{provider: provider}
}

type extractedClaim struct {
	Claim      string  `json:"claim"`
	Source     string  `json:"claim_source"`
	Type       string  `json:"claim_type"`
	Confidence float64 `json:"confidence"`
	Evidence   []struct {
		Source string `json:"source"`
		Text   string `json:"text"`
	} `json:"evidence"`
}

type extractionResult struct {
	VideoSummary    string           `json:"video_summary"`
	CaptionSummary  string           `json:"caption_summary"`
	CombinedSummary string           `json:"combined_summary"`
	Claims          []extractedClaim `json:"claims"`
}

const extractSystemPrompt = `You are an expert fact-checker specialized in decomposing video content into atomic, verifiable claims.

Your task:
1. Summarize the video content and the caption (if any)
2. Extract 8-12 CHECKABLE claims when possible, preferring factual / testable claims
3. Classify each claim by type: date, person, place, event, number, or other
4. For each claim, record where it came from: video, caption, or both
5. Assign each claim a confidence (0-100) that it was stated as shown
6. Evidence must be short and directly copied/summarized from the input

Rules:
- Ignore opinions, questions, and subjective statements
- If the caption is empty, set caption_summary to "" and claim_source to "video"
- Each claim must be a complete, standalone statement

Respond with a JSON object:
{
  "video_summary": "",
  "caption_summary": "",
  "combined_summary": "",
  "claims": [
    {
      "claim": "",
      "claim_source": "video",
      "claim_type": "event",
      "confidence": 0,
      "evidence": [{"source": "Video", "text": ""}]
    }
  ]
}

Only respond with the JSON object, no other text.`

// ExtractClaims extracts summaries and checkable claims from understanding
// output plus an optional caption.
func (e *Engine) ExtractClaims(ctx context.Context, und *models.Understanding, caption string) (*Structured, error) {
	videoText := buildVideoText(und)
	if len(videoText) > maxVideoTextChars {
		videoText = videoText[:maxVideoTextChars]
	}

	userPrompt := fmt.Sprintf("CAPTION:\n%s\n\nVIDEO_TEXT:\n%s", caption, videoText)

	opts := llm.DefaultCompletionOptions()
	opts.MaxTokens = 4096

	response, err := e.provider.CompleteWithSystem(ctx, extractSystemPrompt, userPrompt, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}

	var result extractionResult
	if err := decodeModelJSON(response, &result); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	structured := &Structured{
		VideoSummary:    result.VideoSummary,
		CaptionSummary:  result.CaptionSummary,
		CombinedSummary: result.CombinedSummary,
	}

	for _, ec := range result.Claims {
		text := strings.TrimSpace(ec.Claim)
		if text == "" {
			continue
		}
		source := ec.Source
		if source == "" {
			source = "video"
		}
		claim := models.Claim{
			Text:       text,
			Source:     source,
			Type:       ec.Type,
			Confidence: clamp100(ec.Confidence),
		}
		for _, ev := range ec.Evidence {
			claim.Evidence = append(claim.Evidence, models.Evidence{
				Source: ev.Source,
				Text:   ev.Text,
			})
		}
		structured.Claims = append(structured.Claims, claim)
	}

	return structured, nil
}

type factCheckResult struct {
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Correct     string  `json:"correct_information"`
	Explanation string  `json:"explanation"`
	VerifyNote  string  `json:"verify_manually"`
	Citations   []struct {
		URL            string `json:"url"`
		SupportingText string `json:"supporting_text"`
	} `json:"citations"`
}

const factCheckSystemPrompt = `You are a fact-checking expert. Analyze the claim against the provided web sources only.

Rules:
- Use ONLY the SOURCES given by the user.
- If the sources do not support the claim, verdict MUST be "unclear".
- If the sources contradict each other, verdict is "mixed".
- Provide 1-3 citations; supporting_text must be short.
- If the sources are too thin to decide, fill verify_manually with what a
  human should check.

Respond with a JSON object:
{
  "verdict": "true/false/mixed/unclear",
  "confidence": 0-100,
  "correct_information": "",
  "explanation": "",
  "verify_manually": "",
  "citations": [{"url": "", "supporting_text": ""}]
}

Only respond with the JSON object, no other text.`

// FactCheck evaluates one claim against web search evidence. The verdict
// label is stored verbatim; classification happens downstream.
func (e *Engine) FactCheck(ctx context.Context, claim models.Claim, evidence []models.Evidence) (*models.FactCheckResult, error) {
	if len(evidence) == 0 {
		return &models.FactCheckResult{
			Claim:       claim.Text,
			Verdict:     "unclear",
			Confidence:  0,
			Explanation: "No web sources found for this claim.",
		}, nil
	}

	var sources strings.Builder
	for i, ev := range evidence {
		fmt.Fprintf(&sources, "\nSource %d: %s\nURL: %s\nText: %s\n", i+1, ev.Source, ev.SourceURL, ev.Text)
	}

	userPrompt := fmt.Sprintf("Claim: %s\n\nSOURCES:%s", claim.Text, sources.String())

	opts := llm.DefaultCompletionOptions()
	response, err := e.provider.CompleteWithSystem(ctx, factCheckSystemPrompt, userPrompt, opts)
	if err != nil {
		return nil, fmt.Errorf("fact-check failed: %w", err)
	}

	var result factCheckResult
	if err := decodeModelJSON(response, &result); err != nil {
		return nil, fmt.Errorf("failed to parse fact-check response: %w", err)
	}

	if result.Verdict == "" {
		result.Verdict = "unclear"
	}

	fcr := &models.FactCheckResult{
		Claim:       claim.Text,
		Verdict:     result.Verdict,
		Confidence:  clamp100(result.Confidence),
		Explanation: result.Explanation,
		Correction:  result.Correct,
		VerifyNote:  result.VerifyNote,
	}
	for _, c := range result.Citations {
		fcr.Citations = append(fcr.Citations, models.Evidence{
			Source:    "Web",
			SourceURL: c.URL,
			Text:      c.SupportingText,
		})
	}

	return fcr, nil
}

type timelineResult struct {
	LikelyEventYear *int    `json:"likely_event_year"`
	TimeRelation    string  `json:"time_relation"`
	RiskScore       float64 `json:"timeline_mismatch_risk_score"`
	Why             string  `json:"why"`
	Correct         string  `json:"what_is_correct"`
}

const timelineSystemPrompt = `You check whether a video's content timing matches the date it was posted.

Goal:
- If the scenes or claims imply an event year far from the posted date, flag it.
- If there are no explicit year/date clues, use time_relation "unclear" and a low risk score.

Respond with a JSON object:
{
  "likely_event_year": null,
  "time_relation": "same_year/past_years/future/unclear",
  "timeline_mismatch_risk_score": 0-100,
  "why": "",
  "what_is_correct": ""
}

Only respond with the JSON object, no other text.`

// TimelineCheck judges posted-date vs. event-date consistency from scene data.
func (e *Engine) TimelineCheck(ctx context.Context, scenes []models.Scene, claims []models.Claim, postedDate string) (*models.TimelineSignal, error) {
	payload := struct {
		PostedDate string         `json:"posted_date"`
		Scenes     []models.Scene `json:"scenes"`
		Claims     []models.Claim `json:"claims"`
	}{postedDate, scenes, claims}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode timeline payload: %w", err)
	}

	opts := llm.DefaultCompletionOptions()
	response, err := e.provider.CompleteWithSystem(ctx, timelineSystemPrompt, string(raw), opts)
	if err != nil {
		return nil, fmt.Errorf("timeline check failed: %w", err)
	}

	var result timelineResult
	if err := decodeModelJSON(response, &result); err != nil {
		return nil, fmt.Errorf("failed to parse timeline response: %w", err)
	}

	return &models.TimelineSignal{
		PostedDate:      postedDate,
		LikelyEventYear: result.LikelyEventYear,
		TimeRelation:    result.TimeRelation,
		RiskScore:       clamp100(result.RiskScore),
		Why:             result.Why,
		Correct:         result.Correct,
	}, nil
}

type aiJudgmentResult struct {
	IsAI       bool    `json:"is_ai"`
	TrustScore float64 `json:"trust_score"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note"`
}

const aiJudgmentSystemPrompt = `You are a misinformation detection expert judging whether video content is AI-generated or deepfaked.

Tasks:
1. Cross-reference visual and audio elements described in the context for consistency
2. Look for visual-audio inconsistency (e.g. environment does not match claims)
3. Detect signs of AI generation or deepfake manipulation
4. Consider whether the container metadata looks like a real recording device

Respond with a JSON object:
{ "is_ai": false, "trust_score": 0-100, "confidence": 0-100, "note": "" }

Only respond with the JSON object, no other text.`

// AIJudgment asks the model for an AI-generation trust assessment of the
// video, given its metadata and any understanding context.
func (e *Engine) AIJudgment(ctx context.Context, meta *models.VideoMetadata, videoContext string) (*models.ModelTrustSignal, error) {
	metaJSON := "{}"
	if meta != nil {
		if raw, err := json.Marshal(meta); err == nil {
			metaJSON = string(raw)
		}
	}
	if len(videoContext) > 2000 {
		videoContext = videoContext[:2000]
	}

	userPrompt := fmt.Sprintf("METADATA: %s\n\nVideo Analysis Context:\n%s", metaJSON, videoContext)

	opts := llm.DefaultCompletionOptions()
	response, err := e.provider.CompleteWithSystem(ctx, aiJudgmentSystemPrompt, userPrompt, opts)
	if err != nil {
		return nil, fmt.Errorf("AI judgment failed: %w", err)
	}

	var result aiJudgmentResult
	if err := decodeModelJSON(response, &result); err != nil {
		return nil, fmt.Errorf("failed to parse AI judgment response: %w", err)
	}

	return &models.ModelTrustSignal{
		IsAIGenerated: result.IsAI,
		TrustScore:    clamp100(result.TrustScore),
		Confidence:    clamp100(result.Confidence),
		Note:          result.Note,
	}, nil
}

func buildVideoText(und *models.Understanding) string {
	var b strings.Builder
	b.WriteString("TRANSCRIPT:\n")
	b.WriteString(und.Transcript)
	if und.OnScreenText != "" {
		b.WriteString("\n\nVISIBLE_TEXT:\n")
		b.WriteString(und.OnScreenText)
	}
	if len(und.Scenes) > 0 {
		b.WriteString("\n\nSCENE_SUMMARY:\n")
		for _, s := range und.Scenes {
			fmt.Fprintf(&b, "[%.0fs-%.0fs] %s\n", s.StartSeconds, s.EndSeconds, s.Summary)
		}
	}
	return b.String()
}
