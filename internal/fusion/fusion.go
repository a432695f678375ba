package fusion

import (
	"fmt"
	"math"

	"github.com/videoforensics/veriscope/internal/models"
)

// Thresholds are the tunable verdict policy knobs. The structural rules
// (monotonicity, absent-signal neutrality, FAKE requiring corroboration)
// do not depend on the exact values.
type Thresholds struct {
	ModerateRisk        float64 // any risk dimension at/above this forces MISLEADING
	HighRisk            float64 // misinformation and splice both at/above this forces FAKE
	HighConfidenceFalse float64 // one false claim at/above this confidence forces FAKE
}

// DefaultThresholds returns the stock policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ModerateRisk:        50,
		HighRisk:            70,
		HighConfidenceFalse: 80,
	}
}

// Scorer fuses heterogeneous, possibly missing signals into a final verdict.
type Scorer struct {
	th Thresholds
}

// NewScorer creates a scorer with the given thresholds.
func NewScorer(th Thresholds) *Scorer {
	return &Scorer{th: th}
}

// Weight given to a negative-classified result whose confidence was not
// computed; a confirmed false claim always moves the score even without a
// confidence attached.
const (
	negBaseWeight       = 0.5
	ambiguousWeight     = 0.25
	maxReportConfidence = 95
)

// Fuse combines the fact-check track signals into a FinalVerdict.
//
// results must be index-aligned with claims; nil entries mark claims whose
// check failed and contribute zero weight to every aggregate. Nil signal
// pointers mean "not computed" and contribute a neutral zero risk.
func (s *Scorer) Fuse(
	claims []models.Claim,
	results []*models.FactCheckResult,
	splice *models.SpliceSignal,
	timeline *models.TimelineSignal,
	prov *models.ProvenanceSignal,
	trust *models.ModelTrustSignal,
) *models.FinalVerdict {
	var (
		produced   int
		negatives  int
		ambiguous  int
		weightSum  float64
		confSum    float64
		confCount  int
		maxNegConf float64
	)

	for _, r := range results {
		if r == nil {
			continue
		}
		produced++

		conf := clamp(r.Confidence, 0, 100)
		if conf > 0 {
			confSum += conf
			confCount++
		}

		switch ClassifyVerdictLabel(r.Verdict) {
		case ClassNegative:
			negatives++
			weightSum += negBaseWeight + conf/200
			if conf > maxNegConf {
				maxNegConf = conf
			}
		case ClassAmbiguous:
			ambiguous++
			weightSum += ambiguousWeight
		}
	}

	var avgConf float64
	if confCount > 0 {
		avgConf = confSum / float64(confCount)
	}

	var misinfoRisk float64
	if produced > 0 {
		misinfoRisk = clamp(100*weightSum/float64(produced), 0, 100)
	}

	var spliceScore float64
	if splice != nil {
		spliceScore = clamp(splice.RiskScore, 0, 100)
	}
	var timelineScore float64
	if timeline != nil {
		timelineScore = clamp(timeline.RiskScore, 0, 100)
	}

	aiSignal := (prov != nil && prov.MarkersPresent) || (trust != nil && trust.IsAIGenerated)

	verdict := s.verdict(misinfoRisk, spliceScore, timelineScore, negatives, maxNegConf, aiSignal)
	confidence := s.confidence(avgConf, produced > 0, splice != nil, timeline != nil, prov != nil, trust != nil)

	fv := &models.FinalVerdict{
		Verdict:                   verdict,
		ConfidencePercent:         confidence,
		MisinformationRiskScore:   round1(misinfoRisk),
		SpliceRiskScore:           spliceScore,
		TimelineMismatchRiskScore: timelineScore,
		AvgFactCheckConfidence:    round1(avgConf),
		FalseOrMixedClaims:        negatives,
		UnclearClaims:             ambiguous,
	}
	fv.OneLineLabel = oneLineLabel(fv, aiSignal)
	return fv
}

// FuseDetection combines provenance and model-trust signals for the
// AI-detection track. Provenance markers asserting AI authorship are
// authoritative: a disagreeing model never clears the flag, though its
// trust score and confidence still pass through.
func (s *Scorer) FuseDetection(prov *models.ProvenanceSignal, trust *models.ModelTrustSignal) *models.DetectionVerdict {
	d := &models.DetectionVerdict{}

	if prov != nil && prov.MarkersPresent {
		d.IsAIGenerated = true
		d.Note = "Embedded provenance manifest declares AI generation"
	}

	if trust != nil {
		d.IsAIGenerated = d.IsAIGenerated || trust.IsAIGenerated
		d.TrustScore = clamp(trust.TrustScore, 0, 100)
		d.Confidence = clamp(trust.Confidence, 0, 100)
		if trust.Note != "" {
			d.Note = trust.Note
		}
	}

	return d
}

func (s *Scorer) verdict(misinfoRisk, spliceScore, timelineScore float64, negatives int, maxNegConf float64, aiSignal bool) models.Verdict {
	// FAKE needs corroboration: two high risk dimensions, or one false
	// claim confirmed with high confidence.
	if misinfoRisk >= s.th.HighRisk && spliceScore >= s.th.HighRisk {
		return models.VerdictFake
	}
	if negatives > 0 && maxNegConf >= s.th.HighConfidenceFalse {
		return models.VerdictFake
	}

	if negatives > 0 ||
		misinfoRisk >= s.th.ModerateRisk ||
		spliceScore >= s.th.ModerateRisk ||
		timelineScore >= s.th.ModerateRisk ||
		aiSignal {
		return models.VerdictMisleading
	}

	return models.VerdictReal
}

// confidence is the fusion's self-reported confidence in its own verdict.
// It grows with average fact-check confidence and shrinks when phases are
// missing, so a degraded run can never report more confidence than a
// complete one with the same fact-check outcomes.
func (s *Scorer) confidence(avgConf float64, phases ...bool) int {
	completed := 0
	for _, ok := range phases {
		if ok {
			completed++
		}
	}
	completeness := float64(completed) / float64(len(phases))

	base := 50 + avgConf/2
	scaled := base * (0.6 + 0.4*completeness)
	return int(math.Round(clamp(scaled, 0, maxReportConfidence)))
}

func oneLineLabel(fv *models.FinalVerdict, aiSignal bool) string {
	label := fmt.Sprintf("%s - %d%% Confidence", fv.Verdict, fv.ConfidencePercent)
	if fv.Verdict == models.VerdictReal {
		return label
	}
	if d := dominantSignal(fv, aiSignal); d != "" {
		label += " (" + d + ")"
	}
	return label
}

// dominantSignal names the strongest contributor for the one-line label.
func dominantSignal(fv *models.FinalVerdict, aiSignal bool) string {
	name := "unverified claims"
	if fv.FalseOrMixedClaims > 0 {
		name = "false claims"
	}

	best, bestScore := name, fv.MisinformationRiskScore
	if fv.SpliceRiskScore > bestScore {
		best, bestScore = "splice indicators", fv.SpliceRiskScore
	}
	if fv.TimelineMismatchRiskScore > bestScore {
		best, bestScore = "timeline mismatch", fv.TimelineMismatchRiskScore
	}
	if aiSignal && bestScore < 80 {
		best = "AI-generation signals"
	}
	if bestScore == 0 && !aiSignal {
		return ""
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
