// Package search provides Wikipedia search implementation.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/videoforensics/veriscope/internal/models"
)

// WikipediaClient searches using the Wikipedia API.
type WikipediaClient struct {
	httpClient *http.Client
}

// NewWikipediaClient creates a new Wikipedia client.
func NewWikipediaClient() *WikipediaClient {
	return &WikipediaClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the source name.
func (c *WikipediaClient) Name() string {
	return "Wikipedia"
}

// Available returns true as Wikipedia requires no API key.
func (c *WikipediaClient) Available() bool {
	return true
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			PageID int    `json:"pageid"`
			Title  string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Search searches Wikipedia for evidence.
func (c *WikipediaClient) Search(ctx context.Context, query string, maxResults int) ([]models.Evidence, error) {
	keywords := extractKeywords(query)
	log.Debug().Str("original", query).Str("keywords", keywords).Msg("Wikipedia: Searching")

	baseURL := "https://en.wikipedia.org/w/api.php"

	searchURL := fmt.Sprintf("%s?action=query&list=search&srsearch=%s&format=json&srlimit=%d",
		baseURL, url.QueryEscape(keywords), maxResults)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Veriscope/1.0 (Video forensics tool)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Wikipedia search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Wikipedia returned status %d", resp.StatusCode)
	}

	var searchData wikiSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchData); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	if len(searchData.Query.Search) == 0 {
		return nil, nil
	}

	var pageIDs []string
	for _, result := range searchData.Query.Search {
		pageIDs = append(pageIDs, fmt.Sprintf("%d", result.PageID))
	}

	extractURL := fmt.Sprintf("%s?action=query&prop=extracts&exintro=true&explaintext=true&pageids=%s&format=json",
		baseURL, strings.Join(pageIDs, "|"))

	req, err = http.NewRequestWithContext(ctx, "GET", extractURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create extract request: %w", err)
	}
	req.Header.Set("User-Agent", "Veriscope/1.0 (Video forensics tool)")

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Wikipedia extract failed: %w", err)
	}
	defer resp.Body.Close()

	var extractData wikiExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&extractData); err != nil {
		return nil, fmt.Errorf("failed to decode extract response: %w", err)
	}

	now := time.Now()
	var evidences []models.Evidence

	for _, page := range extractData.Query.Pages {
		if page.Extract == "" {
			continue
		}

		snippet := page.Extract
		if len(snippet) > 600 {
			snippet = snippet[:600] + "..."
		}

		evidences = append(evidences, models.Evidence{
			ID:          uuid.New().String(),
			Source:      "Wikipedia",
			SourceURL:   fmt.Sprintf("https://en.wikipedia.org/wiki/%s", url.PathEscape(strings.ReplaceAll(page.Title, " ", "_"))),
			Text:        snippet,
			RetrievedAt: now,
		})
	}

	log.Debug().Int("count", len(evidences)).Msg("Wikipedia: Search completed")
	return evidences, nil
}
