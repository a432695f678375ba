package probe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videoforensics/veriscope/internal/models"
)

const aiManifest = `{
	"active_manifest": "urn:m1",
	"manifests": {
		"urn:m1": {
			"assertions": [
				{
					"label": "c2pa.actions.v2",
					"data": {
						"actions": [
							{"action": "c2pa.created", "digitalSourceType": "http://cv.iptc.org/newscodes/digitalsourcetype/trainedAlgorithmicMedia"}
						]
					}
				}
			]
		}
	}
}`

const cameraManifest = `{
	"active_manifest": "urn:m1",
	"manifests": {
		"urn:m1": {
			"assertions": [
				{
					"label": "c2pa.actions.v2",
					"data": {
						"actions": [
							{"action": "c2pa.created", "digitalSourceType": "http://cv.iptc.org/newscodes/digitalsourcetype/digitalCapture"}
						]
					}
				}
			]
		}
	}
}`

func TestProvenanceFromMetadata_AIMarkers(t *testing.T) {
	meta := &models.VideoMetadata{RawManifest: json.RawMessage(aiManifest)}

	sig := ProvenanceFromMetadata(meta)
	require.NotNil(t, sig)
	assert.True(t, sig.MarkersPresent)
	assert.NotEmpty(t, sig.Manifest)
}

func TestProvenanceFromMetadata_CameraCapture(t *testing.T) {
	meta := &models.VideoMetadata{RawManifest: json.RawMessage(cameraManifest)}

	sig := ProvenanceFromMetadata(meta)
	require.NotNil(t, sig)
	assert.False(t, sig.MarkersPresent)
}

func TestProvenanceFromMetadata_NoManifest(t *testing.T) {
	// Missing manifest means a missing signal, not "no AI found".
	assert.Nil(t, ProvenanceFromMetadata(&models.VideoMetadata{}))
	assert.Nil(t, ProvenanceFromMetadata(nil))
}

func TestProvenanceFromMetadata_MalformedManifest(t *testing.T) {
	meta := &models.VideoMetadata{RawManifest: json.RawMessage(`{"active_manifest": "missing"}`)}

	sig := ProvenanceFromMetadata(meta)
	require.NotNil(t, sig)
	assert.False(t, sig.MarkersPresent)
}
