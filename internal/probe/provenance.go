package probe

import (
	"encoding/json"
	"strings"

	"github.com/videoforensics/veriscope/internal/models"
)

// Per the C2PA spec, a c2pa.created action whose digitalSourceType contains
// this token declares algorithmically generated media.
const trainedAlgorithmicMedia = "trainedAlgorithmicMedia"

type manifestStore struct {
	ActiveManifest string                    `json:"active_manifest"`
	Manifests      map[string]manifestRecord `json:"manifests"`
}

type manifestRecord struct {
	Assertions []manifestAssertion `json:"assertions"`
}

type manifestAssertion struct {
	Label string `json:"label"`
	Data  struct {
		Actions []manifestAction `json:"actions"`
	} `json:"data"`
}

type manifestAction struct {
	Action            string `json:"action"`
	DigitalSourceType string `json:"digitalSourceType"`
}

// ProvenanceFromMetadata derives the provenance signal from a probed
// manifest. Returns nil when no manifest was embedded: "no manifest" is a
// missing signal, not a negative finding.
func ProvenanceFromMetadata(meta *models.VideoMetadata) *models.ProvenanceSignal {
	if meta == nil || len(meta.RawManifest) == 0 {
		return nil
	}

	sig := &models.ProvenanceSignal{Manifest: meta.RawManifest}

	var store manifestStore
	if err := json.Unmarshal(meta.RawManifest, &store); err != nil {
		return sig
	}

	active, ok := store.Manifests[store.ActiveManifest]
	if !ok {
		return sig
	}

	for _, assertion := range active.Assertions {
		if assertion.Label != "c2pa.actions.v2" && assertion.Label != "c2pa.actions" {
			continue
		}
		for _, action := range assertion.Data.Actions {
			if action.Action != "c2pa.created" {
				continue
			}
			if strings.Contains(action.DigitalSourceType, trainedAlgorithmicMedia) {
				sig.MarkersPresent = true
				return sig
			}
		}
	}

	return sig
}
