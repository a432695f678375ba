// Package models defines the core data structures used throughout the application.
package models

import (
	"encoding/json"
	"time"
)

// Track selects which analysis pipeline an uploaded video runs through.
type Track string

const (
	TrackFactCheck   Track = "factcheck"
	TrackAIDetection Track = "ai-detection"
)

// Verdict is the overall fact-check outcome for a video.
type Verdict string

const (
	VerdictReal       Verdict = "REAL"
	VerdictMisleading Verdict = "MISLEADING"
	VerdictFake       Verdict = "FAKE"
)

// AnalysisJob tracks one pipeline run. It is owned by the orchestrator for
// its lifetime and discarded once the report is returned.
type AnalysisJob struct {
	ID         string    `json:"id"`
	Track      Track     `json:"track"`
	Caption    string    `json:"caption,omitempty"`
	PostedDate string    `json:"posted_date,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Deadline   time.Time `json:"deadline"`
}

// VideoMetadata is the container-level metadata of an uploaded video.
// Fields are empty/nil when the probe could not determine them. Immutable
// once fetched.
type VideoMetadata struct {
	Format          string          `json:"format,omitempty"`
	DurationSeconds *float64        `json:"duration_seconds,omitempty"`
	Encoder         string          `json:"encoder,omitempty"`
	CreationTime    string          `json:"creation_time,omitempty"`
	Device          string          `json:"device,omitempty"`
	RawManifest     json.RawMessage `json:"provenance_manifest,omitempty"`
}

// Scene is one segment of the video as described by the understanding service.
type Scene struct {
	Index        int     `json:"index"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Summary      string  `json:"summary"`
}

// Understanding is the transcript-level view of a video returned by the
// video understanding service.
type Understanding struct {
	Transcript   string  `json:"transcript"`
	OnScreenText string  `json:"on_screen_text,omitempty"`
	Scenes       []Scene `json:"scenes,omitempty"`
}

// Evidence is a snippet grounding a claim or citing a fact-check verdict.
// For claims it comes from the video/caption itself; for citations it comes
// from web search.
type Evidence struct {
	ID          string    `json:"id,omitempty"`
	Source      string    `json:"source"`
	SourceURL   string    `json:"source_url,omitempty"`
	Text        string    `json:"text"`
	RetrievedAt time.Time `json:"retrieved_at,omitempty"`
}

// Claim is a discrete checkable assertion extracted from the video. Claims
// are produced once per job and never mutated; each one maps to at most one
// FactCheckResult, matched by index.
type Claim struct {
	Text       string     `json:"claim"`
	Source     string     `json:"claim_source"` // video, caption, or both
	Type       string     `json:"claim_type,omitempty"`
	Confidence float64    `json:"confidence"`   // 0-100, assigned at extraction
	Evidence   []Evidence `json:"evidence,omitempty"`
}

// FactCheckResult is the verdict for a single claim. The verdict label is
// free-form and passed through verbatim; classification for scoring happens
// in the fusion package. A zero Confidence means "not computed".
type FactCheckResult struct {
	Claim       string     `json:"claim"`
	Verdict     string     `json:"verdict"`
	Confidence  float64    `json:"confidence"`
	Explanation string     `json:"explanation,omitempty"`
	Correction  string     `json:"correct_information,omitempty"`
	VerifyNote  string     `json:"verify_manually,omitempty"`
	Citations   []Evidence `json:"citations,omitempty"`
}

// SpliceSignal is the context-shift analysis finding. A nil *SpliceSignal
// means the analysis failed or was skipped, which is distinct from a
// populated signal carrying a zero score.
type SpliceSignal struct {
	HasSuddenShifts bool    `json:"has_sudden_shifts"`
	RiskScore       float64 `json:"splice_risk_score"` // 0-100
	Summary         string  `json:"summary,omitempty"`
}

// TimelineSignal is the posted-date vs. event-date consistency finding.
type TimelineSignal struct {
	PostedDate      string  `json:"posted_date,omitempty"`
	LikelyEventYear *int    `json:"likely_event_year,omitempty"`
	TimeRelation    string  `json:"time_relation,omitempty"`      // same_year, past_years, future, unclear
	RiskScore       float64 `json:"timeline_mismatch_risk_score"` // 0-100
	Why             string  `json:"why,omitempty"`
	Correct         string  `json:"what_is_correct,omitempty"`
}

// ProvenanceSignal reports embedded content-credential markers.
type ProvenanceSignal struct {
	MarkersPresent bool            `json:"markers_present"`
	Manifest       json.RawMessage `json:"manifest,omitempty"`
}

// ModelTrustSignal is the model-based AI-generation judgment, shared by
// both tracks.
type ModelTrustSignal struct {
	IsAIGenerated bool    `json:"is_ai"`
	TrustScore    float64 `json:"trust_score"` // 0-100
	Confidence    float64 `json:"confidence"`  // 0-100
	Note          string  `json:"note,omitempty"`
}

// FinalVerdict is the fused outcome block for the fact-check track.
type FinalVerdict struct {
	Verdict                   Verdict `json:"verdict"`
	ConfidencePercent         int     `json:"confidence_percent"`
	OneLineLabel              string  `json:"one_line_label"`
	MisinformationRiskScore   float64 `json:"misinformation_risk_score"`
	SpliceRiskScore           float64 `json:"splice_risk_score"`
	TimelineMismatchRiskScore float64 `json:"timeline_mismatch_risk_score"`
	AvgFactCheckConfidence    float64 `json:"avg_factcheck_confidence"`
	FalseOrMixedClaims        int     `json:"false_or_mixed_claims"`
	UnclearClaims             int     `json:"unclear_claims"`
}

// DetectionVerdict is the fused outcome block for the AI-detection track.
type DetectionVerdict struct {
	IsAIGenerated bool    `json:"is_ai_generated"`
	TrustScore    float64 `json:"trust_score"`
	Confidence    float64 `json:"confidence"`
	Note          string  `json:"note,omitempty"`
}

// Correction pairs a claim judged false or mixed with the corrected
// information found during fact-checking.
type Correction struct {
	IncorrectClaim string     `json:"incorrect_claim"`
	Correct        string     `json:"correct_information,omitempty"`
	Confidence     float64    `json:"confidence"`
	Explanation    string     `json:"explanation,omitempty"`
	Citations      []Evidence `json:"citations,omitempty"`
}

// Warning represents a non-fatal issue during processing.
type Warning struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// FinalReport is the terminal artifact of a pipeline run. Created once at
// the end of the pipeline, never mutated after return.
//
// Nil signal pointers mean the corresponding phase produced no data, which
// callers must treat differently from a populated signal with a zero score.
// FactCheck is index-aligned with Claims: a nil entry marks a claim whose
// check failed.
type FinalReport struct {
	ID        string    `json:"id"`
	Track     Track     `json:"track"`
	CreatedAt time.Time `json:"created_at"`

	Metadata *VideoMetadata `json:"metadata,omitempty"`

	// Fact-check track.
	Final       *FinalVerdict      `json:"final,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	Claims      []Claim            `json:"claims,omitempty"`
	FactCheck   []*FactCheckResult `json:"factcheck,omitempty"`
	Corrections []Correction       `json:"corrections,omitempty"`
	TopReasons  []string           `json:"top_reasons,omitempty"`
	Splice      *SpliceSignal      `json:"splice,omitempty"`
	Timeline    *TimelineSignal    `json:"timing,omitempty"`
	Warnings    []Warning          `json:"warnings,omitempty"`

	// AI-detection track and shared signals.
	Detection  *DetectionVerdict `json:"detection,omitempty"`
	Provenance *ProvenanceSignal `json:"provenance,omitempty"`
	ModelTrust *ModelTrustSignal `json:"model_trust,omitempty"`
}

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID                string    `json:"id"`
	Track             Track     `json:"track"`
	Verdict           string    `json:"verdict"`
	ConfidencePercent int       `json:"confidence_percent"`
	RiskScore         float64   `json:"risk_score"`
	CreatedAt         time.Time `json:"created_at"`
}

// APIKey represents an API key for authentication.
type APIKey struct {
	ID                string     `json:"id"`
	KeyHash           string     `json:"-"` // Never expose
	Name              string     `json:"name"`
	RequestsPerMinute int        `json:"requests_per_minute"`
	CreatedAt         time.Time  `json:"created_at"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
}

// AuditLog represents an API request audit entry.
type AuditLog struct {
	ID           string    `json:"id"`
	APIKeyID     string    `json:"api_key_id"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	RequestSize  int64     `json:"request_size"`
	ResponseCode int       `json:"response_code"`
	DurationMs   int64     `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}
