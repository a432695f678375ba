// Package search provides evidence search functionality from multiple sources.
package search

import (
	"context"
	"time"

	"github.com/videoforensics/veriscope/internal/models"
)

// Client defines the interface for search providers.
type Client interface {
	// Search searches for evidence related to the query.
	Search(ctx context.Context, query string, maxResults int) ([]models.Evidence, error)

	// Name returns the source name.
	Name() string

	// Available returns whether this client is properly configured.
	Available() bool
}

// AggregatedClient searches across multiple sources.
type AggregatedClient struct {
	clients []Client
}

// NewAggregatedClient creates a new aggregated search client.
func NewAggregatedClient(clients ...Client) *AggregatedClient {
	// Filter to only available clients
	available := make([]Client, 0, len(clients))
	for _, c := range clients {
		if c.Available() {
			available = append(available, c)
		}
	}
	return &AggregatedClient{clients: available}
}

type sourceResult struct {
	Source    string
	Evidences []models.Evidence
	Error     error
}

// Search searches all configured sources concurrently and merges results.
func (a *AggregatedClient) Search(ctx context.Context, query string, maxResultsPerSource int) ([]models.Evidence, []models.Warning) {
	if len(a.clients) == 0 {
		return nil, []models.Warning{{Source: "search", Message: "No search sources configured"}}
	}

	results := make(chan sourceResult, len(a.clients))

	for _, client := range a.clients {
		go func(c Client) {
			evidences, err := c.Search(ctx, query, maxResultsPerSource)
			results <- sourceResult{
				Source:    c.Name(),
				Evidences: evidences,
				Error:     err,
			}
		}(client)
	}

	var allEvidences []models.Evidence
	var warnings []models.Warning

	timeout := time.After(15 * time.Second)
	for i := 0; i < len(a.clients); i++ {
		select {
		case result := <-results:
			if result.Error != nil {
				warnings = append(warnings, models.Warning{
					Source:  result.Source,
					Message: result.Error.Error(),
				})
			} else {
				allEvidences = append(allEvidences, result.Evidences...)
			}
		case <-timeout:
			warnings = append(warnings, models.Warning{
				Source:  "search",
				Message: "Some sources timed out",
			})
			return allEvidences, warnings
		case <-ctx.Done():
			warnings = append(warnings, models.Warning{
				Source:  "search",
				Message: "Search cancelled",
			})
			return allEvidences, warnings
		}
	}

	return allEvidences, warnings
}

// HasClients returns whether any search clients are available.
func (a *AggregatedClient) HasClients() bool {
	return len(a.clients) > 0
}
