package api

import (
	"encoding/json"
	"time"

	"github.com/videoforensics/veriscope/internal/models"
)

// detectionResponse is the wire shape of an AI-detection report. The model
// trust judgment appears both as the legacy top-level "synthid" block and
// under detection_methods.synthid_analysis; both are rendered here from the
// single ModelTrustSignal the pipeline produces.
type detectionResponse struct {
	ID            string  `json:"id"`
	CreatedAt     string  `json:"created_at"`
	IsAIGenerated bool    `json:"is_ai_generated"`
	TrustScore    float64 `json:"trust_score"`
	Confidence    float64 `json:"confidence"`
	Note          string  `json:"note,omitempty"`

	SynthID          *models.ModelTrustSignal `json:"synthid,omitempty"`
	DetectionMethods detectionMethods         `json:"detection_methods"`
	Metadata         *metadataSummary         `json:"metadata,omitempty"`
	Warnings         []models.Warning         `json:"warnings,omitempty"`
}

type detectionMethods struct {
	C2PAMetadata    c2paMethod               `json:"c2pa_metadata"`
	SynthIDAnalysis *models.ModelTrustSignal `json:"synthid_analysis,omitempty"`
}

type c2paMethod struct {
	Detected bool            `json:"detected"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type metadataSummary struct {
	Format       string   `json:"format,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	Encoder      string   `json:"encoder,omitempty"`
	Device       string   `json:"device,omitempty"`
	CreationTime string   `json:"creation_time,omitempty"`
}

// renderDetection builds the AI-detection wire shape from a report.
func renderDetection(report *models.FinalReport) *detectionResponse {
	resp := &detectionResponse{
		ID:        report.ID,
		CreatedAt: report.CreatedAt.Format(time.RFC3339),
		Warnings:  report.Warnings,
	}

	if det := report.Detection; det != nil {
		resp.IsAIGenerated = det.IsAIGenerated
		resp.TrustScore = det.TrustScore
		resp.Confidence = det.Confidence
		resp.Note = det.Note
	}

	resp.SynthID = report.ModelTrust
	resp.DetectionMethods.SynthIDAnalysis = report.ModelTrust

	if prov := report.Provenance; prov != nil {
		resp.DetectionMethods.C2PAMetadata = c2paMethod{
			Detected: prov.MarkersPresent,
			Data:     prov.Manifest,
		}
	}

	if meta := report.Metadata; meta != nil {
		resp.Metadata = &metadataSummary{
			Format:       meta.Format,
			Duration:     meta.DurationSeconds,
			Encoder:      meta.Encoder,
			Device:       meta.Device,
			CreationTime: meta.CreationTime,
		}
	}

	return resp
}
