// Package probe extracts container metadata and embedded provenance
// manifests from video bytes.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/videoforensics/veriscope/internal/models"
)

// ErrUnavailable is returned when no metadata could be obtained at all,
// e.g. ffprobe is not installed or the bytes are not a readable container.
var ErrUnavailable = errors.New("metadata probe unavailable")

// Prober reports container metadata for raw video bytes.
type Prober interface {
	Probe(ctx context.Context, video []byte) (*models.VideoMetadata, error)
}

// FFProbe implements Prober by shelling out to ffprobe.
//
// There is no maintained pure-Go reader for the long tail of container
// tag layouts ffprobe understands, so this package wraps the binary the
// same way the upstream system did.
type FFProbe struct {
	bin string
}

// NewFFProbe creates a prober using the given binary name, or "ffprobe"
// when empty.
func NewFFProbe(bin string) *FFProbe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFProbe{bin: bin}
}

type ffprobeOutput struct {
	Format struct {
		FormatName string            `json:"format_name"`
		Duration   string            `json:"duration"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
}

// Probe writes the bytes to a temp file, runs ffprobe, and maps the output
// into the strict metadata model. Unparsable fields become absent, not zero.
func (p *FFProbe) Probe(ctx context.Context, video []byte) (*models.VideoMetadata, error) {
	if len(video) == 0 {
		return nil, ErrUnavailable
	}
	if _, err := exec.LookPath(p.bin); err != nil {
		log.Warn().Str("bin", p.bin).Msg("ffprobe not found, metadata unavailable")
		return nil, ErrUnavailable
	}

	dir, err := os.MkdirTemp("", "veriscope-probe-")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "video")
	if err := os.WriteFile(path, video, 0600); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Warn().Err(err).Str("stderr", stderr.String()).Msg("ffprobe failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	meta := &models.VideoMetadata{
		Format: out.Format.FormatName,
	}

	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		meta.DurationSeconds = &d
	}

	tags := out.Format.Tags
	if enc := tags["encoder"]; enc != "" && enc != "unknown" {
		meta.Encoder = enc
	}
	meta.CreationTime = tags["creation_time"]
	meta.Device = tags["com.apple.quicktime.make"]

	if manifest := manifestFromTags(tags); manifest != nil {
		meta.RawManifest = manifest
	}

	return meta, nil
}

// manifestFromTags looks for an embedded content-credentials manifest in
// the container tags. Manifest JSON is passed through opaque.
func manifestFromTags(tags map[string]string) json.RawMessage {
	candidates := []string{"c2pa.manifest", "com.c2pa.manifest", "manifest", "content_credentials"}
	for _, key := range candidates {
		if raw, ok := tags[key]; ok && json.Valid([]byte(raw)) {
			return json.RawMessage(raw)
		}
	}
	return nil
}
