package fusion

import "github.com/videoforensics/veriscope/internal/models"

const maxCorrections = 5

// BuildReasons summarizes the dominant signals as short human-readable
// bullet points for the report.
func BuildReasons(fv *models.FinalVerdict, prov *models.ProvenanceSignal, trust *models.ModelTrustSignal, spliceComputed, timelineComputed bool) []string {
	var reasons []string

	if prov != nil && prov.MarkersPresent {
		reasons = append(reasons, "Embedded provenance metadata indicates AI-generated content.")
	}
	if trust != nil && trust.IsAIGenerated {
		reasons = append(reasons, "Model analysis detected AI-generation patterns.")
	}

	switch {
	case !spliceComputed:
		reasons = append(reasons, "Splice analysis was not available for this video.")
	case fv.SpliceRiskScore >= 30:
		reasons = append(reasons, "Abrupt context shifts detected between segments.")
	default:
		reasons = append(reasons, "Little to no abrupt editing detected.")
	}

	switch {
	case !timelineComputed:
		reasons = append(reasons, "Timeline analysis was not available for this video.")
	case fv.TimelineMismatchRiskScore >= 60:
		reasons = append(reasons, "Posted date and event timing look inconsistent.")
	case fv.TimelineMismatchRiskScore >= 30:
		reasons = append(reasons, "Some timeline uncertainty.")
	default:
		reasons = append(reasons, "Timeline looks consistent with posted date.")
	}

	switch {
	case fv.FalseOrMixedClaims > 0:
		reasons = append(reasons, "One or more claims appear false or misleading based on web sources.")
	case fv.UnclearClaims > 0:
		reasons = append(reasons, "Some claims could not be confirmed from web sources.")
	default:
		reasons = append(reasons, "Key claims look consistent with web sources.")
	}

	if len(reasons) > 5 {
		reasons = reasons[:5]
	}
	return reasons
}

// BuildCorrections extracts correction entries from results whose verdict
// classifies as negative or ambiguous with a correction attached.
func BuildCorrections(results []*models.FactCheckResult) []models.Correction {
	var corrections []models.Correction
	for _, r := range results {
		if r == nil {
			continue
		}
		class := ClassifyVerdictLabel(r.Verdict)
		if class == ClassPositive {
			continue
		}
		if class == ClassAmbiguous && r.Correction == "" {
			continue
		}
		corrections = append(corrections, models.Correction{
			IncorrectClaim: r.Claim,
			Correct:        r.Correction,
			Confidence:     clamp(r.Confidence, 0, 100),
			Explanation:    r.Explanation,
			Citations:      r.Citations,
		})
		if len(corrections) >= maxCorrections {
			break
		}
	}
	return corrections
}
