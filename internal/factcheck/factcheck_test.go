package factcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforensics/veriscope/internal/llm"
	"github.com/videoforensics/veriscope/internal/models"
	"github.com/videoforensics/veriscope/internal/search"
	"github.com/videoforensics/veriscope/internal/structuring"
)

type stubSearch struct {
	evidence []models.Evidence
	err      error
}

func (s *stubSearch) Search(ctx context.Context, query string, maxResults int) ([]models.Evidence, error) {
	return s.evidence, s.err
}

func (s *stubSearch) Name() string    { return "stub" }
func (s *stubSearch) Available() bool { return true }

// verdictProvider answers every fact-check prompt with a canned verdict,
// or an error when the claim text contains "explode".
type verdictProvider struct {
	verdict string
	calls   atomic.Int32
}

func (p *verdictProvider) Name() string { return "fake" }

func (p *verdictProvider) Complete(ctx context.Context, prompt string, opts llm.CompletionOptions) (string, error) {
	return p.CompleteWithSystem(ctx, "", prompt, opts)
}

func (p *verdictProvider) CompleteWithSystem(ctx context.Context, system, user string, opts llm.CompletionOptions) (string, error) {
	p.calls.Add(1)
	if strings.Contains(user, "explode") {
		return "", errors.New("model unavailable")
	}
	return fmt.Sprintf(`{"verdict": %q, "confidence": 80, "explanation": "checked"}`, p.verdict), nil
}

func newChecker(provider llm.Provider, src search.Client, concurrency int) *Checker {
	return NewChecker(
		search.NewAggregatedClient(src),
		structuring.NewEngine(provider),
		concurrency,
	)
}

func claimsOf(texts ...string) []models.Claim {
	claims := make([]models.Claim, len(texts))
	for i, t := range texts {
		claims[i] = models.Claim{Text: t, Source: "video", Confidence: 90}
	}
	return claims
}

func TestCheckAllIndexAligned(t *testing.T) {
	provider := &verdictProvider{verdict: "true"}
	src := &stubSearch{evidence: []models.Evidence{{Source: "stub", SourceURL: "https://example.com", Text: "supporting"}}}
	checker := newChecker(provider, src, 3)

	claims := claimsOf("the bridge opened in 1932", "the river froze in 2021", "the mayor attended")
	results, warnings := checker.CheckAll(context.Background(), claims)

	require.Len(t, results, 3)
	assert.Empty(t, warnings)
	for i, r := range results {
		require.NotNil(t, r, "result %d", i)
		assert.Equal(t, claims[i].Text, r.Claim)
		assert.Equal(t, "true", r.Verdict)
		assert.Equal(t, 80.0, r.Confidence)
	}
}

func TestCheckAllFailureLeavesNilSlot(t *testing.T) {
	provider := &verdictProvider{verdict: "true"}
	src := &stubSearch{evidence: []models.Evidence{{Source: "stub", Text: "x"}}}
	checker := newChecker(provider, src, 2)

	claims := claimsOf("fine claim", "this one will explode", "another fine claim")
	results, warnings := checker.CheckAll(context.Background(), claims)

	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])

	require.Len(t, warnings, 1)
	assert.Equal(t, "factcheck", warnings[0].Source)
	assert.Contains(t, warnings[0].Message, "explode")
}

func TestCheckAllNoEvidenceShortCircuits(t *testing.T) {
	provider := &verdictProvider{verdict: "true"}
	src := &stubSearch{} // no results
	checker := newChecker(provider, src, 2)

	results, _ := checker.CheckAll(context.Background(), claimsOf("unfindable claim"))

	require.Len(t, results, 1)
	require.NotNil(t, results[0])
	assert.Equal(t, "unclear", results[0].Verdict)
	assert.Equal(t, 0.0, results[0].Confidence)
	assert.Equal(t, int32(0), provider.calls.Load(), "no model call without evidence")
}

func TestCheckAllEmptyClaims(t *testing.T) {
	checker := newChecker(&verdictProvider{verdict: "true"}, &stubSearch{}, 2)

	results, warnings := checker.CheckAll(context.Background(), nil)
	assert.Empty(t, results)
	assert.Empty(t, warnings)
}
