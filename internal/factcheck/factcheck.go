// Package factcheck verifies extracted claims against web evidence. Each
// claim is checked independently; a failed check leaves a nil slot in the
// result slice rather than failing the job.
package factcheck

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/videoforensics/veriscope/internal/models"
	"github.com/videoforensics/veriscope/internal/search"
	"github.com/videoforensics/veriscope/internal/structuring"
)

const evidencePerClaim = 6

// Checker fans claim verification out over web search and the structuring
// engine's verdict call.
type Checker struct {
	searchClient *search.AggregatedClient
	engine       *structuring.Engine
	concurrency  int
}

// NewChecker creates a claim checker. concurrency bounds the number of
// claims verified at once; values below 1 fall back to 1.
func NewChecker(searchClient *search.AggregatedClient, engine *structuring.Engine, concurrency int) *Checker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Checker{
		searchClient: searchClient,
		engine:       engine,
		concurrency:  concurrency,
	}
}

// CheckAll verifies every claim concurrently. The returned slice is always
// exactly len(claims) long and index-aligned with the input; claims whose
// verification failed outright hold nil and contribute a warning.
func (c *Checker) CheckAll(ctx context.Context, claims []models.Claim) ([]*models.FactCheckResult, []models.Warning) {
	results := make([]*models.FactCheckResult, len(claims))
	var warnings []models.Warning
	var mu sync.Mutex
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, c.concurrency)

	for i := range claims {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			claim := claims[idx]

			evidence, searchWarnings := c.searchClient.Search(ctx, claim.Text, evidencePerClaim)

			mu.Lock()
			warnings = append(warnings, searchWarnings...)
			mu.Unlock()

			result, err := c.engine.FactCheck(ctx, claim, evidence)
			if err != nil {
				log.Error().Err(err).Str("claim", truncateClaim(claim.Text)).Msg("Claim verification failed")
				mu.Lock()
				warnings = append(warnings, models.Warning{
					Source:  "factcheck",
					Message: "verification failed for claim: " + truncateClaim(claim.Text),
				})
				mu.Unlock()
				return
			}

			results[idx] = result
		}(i)
	}

	wg.Wait()
	return results, warnings
}

func truncateClaim(text string) string {
	if len(text) <= 80 {
		return text
	}
	return text[:80] + "..."
}
