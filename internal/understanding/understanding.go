// Package understanding talks to an external video understanding service
// that can index uploaded videos and answer free-form prompts about them.
package understanding

import (
	"context"
	"errors"

	"github.com/videoforensics/veriscope/internal/models"
)

// ErrProcessingFailed is returned when the remote service reports that
// indexing or analysis of an uploaded video failed permanently.
var ErrProcessingFailed = errors.New("video processing failed")

// Service is the video understanding collaborator. Upload returns an opaque
// video ID that the analysis calls operate on; a single upload serves any
// number of subsequent analyses.
type Service interface {
	// Upload sends the video bytes for indexing and blocks until the video
	// is ready for analysis.
	Upload(ctx context.Context, video []byte) (string, error)

	// Understand returns the transcript-level view of an indexed video.
	Understand(ctx context.Context, videoID string) (*models.Understanding, error)

	// SpliceAnalysis asks the service whether the indexed video contains
	// sudden context shifts consistent with spliced or repurposed footage.
	SpliceAnalysis(ctx context.Context, videoID string) (*models.SpliceSignal, error)

	// AIJudgment asks the service whether the indexed video looks
	// AI-generated or deepfaked, cross-referencing its visual and audio
	// content with the container metadata.
	AIJudgment(ctx context.Context, videoID string, meta *models.VideoMetadata) (*models.ModelTrustSignal, error)

	// Name identifies the backing service for health reporting.
	Name() string
}
