// Package search provides DuckDuckGo search implementation.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/videoforensics/veriscope/internal/models"
)

// DuckDuckGoClient searches using DuckDuckGo and fetches page content.
type DuckDuckGoClient struct {
	httpClient *http.Client
}

// NewDuckDuckGoClient creates a new DuckDuckGo client.
func NewDuckDuckGoClient() *DuckDuckGoClient {
	return &DuckDuckGoClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns the source name.
func (c *DuckDuckGoClient) Name() string {
	return "DuckDuckGo"
}

// Available returns true as DuckDuckGo requires no API key.
func (c *DuckDuckGoClient) Available() bool {
	return true
}

type ddgResponse struct {
	Abstract      string `json:"Abstract"`
	AbstractURL   string `json:"AbstractURL"`
	Heading       string `json:"Heading"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

var stopWords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "were": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "and": true, "an": true, "has": true, "have": true,
	"it": true, "its": true, "this": true, "that": true, "with": true,
	"be": true, "been": true, "being": true, "by": true, "from": true,
	"or": true, "but": true, "not": true, "also": true,
}

// extractKeywords extracts key terms from a claim for better search results.
// Capitalized words are treated as likely proper nouns and kept first.
func extractKeywords(claim string) string {
	words := strings.Fields(claim)
	var keywords []string
	var priorityKeywords []string

	for _, word := range words {
		isProperNoun := len(word) > 0 && word[0] >= 'A' && word[0] <= 'Z'

		cleanWord := strings.Trim(word, ".,!?;:\"'()[]«»")
		lowerWord := strings.ToLower(cleanWord)

		if len(lowerWord) > 2 && !stopWords[lowerWord] {
			if isProperNoun && len(cleanWord) > 2 {
				priorityKeywords = append(priorityKeywords, cleanWord)
			} else {
				keywords = append(keywords, lowerWord)
			}
		}
	}

	allKeywords := append(priorityKeywords, keywords...)
	if len(allKeywords) > 12 {
		allKeywords = allKeywords[:12]
	}

	return strings.Join(allKeywords, " ")
}

// Search searches DuckDuckGo for evidence and fetches page content with retry logic.
func (c *DuckDuckGoClient) Search(ctx context.Context, query string, maxResults int) ([]models.Evidence, error) {
	keywords := extractKeywords(query)
	log.Debug().Str("original", query).Str("keywords", keywords).Msg("DuckDuckGo: Searching")

	var evidences []models.Evidence
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		instantEvidences, err := c.searchInstantAnswer(ctx, keywords, maxResults)
		if err == nil {
			evidences = append(evidences, instantEvidences...)
			break
		}
		lastErr = err
		if attempt < 1 {
			time.Sleep(500 * time.Millisecond)
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		htmlEvidences, err := c.searchHTMLWithContent(ctx, keywords, maxResults)
		if err == nil {
			evidences = append(evidences, htmlEvidences...)
			break
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("DuckDuckGo HTML search failed")
		if attempt < 1 {
			time.Sleep(500 * time.Millisecond)
		}
	}

	// Deduplicate by URL
	seen := make(map[string]bool)
	var unique []models.Evidence
	for _, e := range evidences {
		if !seen[e.SourceURL] && e.Text != "" {
			seen[e.SourceURL] = true
			unique = append(unique, e)
			if len(unique) >= maxResults {
				break
			}
		}
	}

	log.Debug().Int("count", len(unique)).Msg("DuckDuckGo: Search completed")

	if len(unique) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return unique, nil
}

// searchInstantAnswer uses the Instant Answer API.
func (c *DuckDuckGoClient) searchInstantAnswer(ctx context.Context, query string, maxResults int) ([]models.Evidence, error) {
	u := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1&skip_disambig=1",
		url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var data ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	var evidences []models.Evidence
	now := time.Now()

	if data.Abstract != "" {
		evidences = append(evidences, models.Evidence{
			ID:          uuid.New().String(),
			Source:      "DuckDuckGo",
			SourceURL:   data.AbstractURL,
			Text:        data.Abstract,
			RetrievedAt: now,
		})
	}

	for _, topic := range data.RelatedTopics {
		if len(evidences) >= maxResults {
			break
		}
		if topic.Text != "" {
			evidences = append(evidences, models.Evidence{
				ID:          uuid.New().String(),
				Source:      "DuckDuckGo",
				SourceURL:   topic.FirstURL,
				Text:        topic.Text,
				RetrievedAt: now,
			})
		}
	}

	return evidences, nil
}

// pageResult holds parsed search result data.
type pageResult struct {
	Title   string
	URL     string
	Snippet string
}

// searchHTMLWithContent searches and fetches actual page content.
func (c *DuckDuckGoClient) searchHTMLWithContent(ctx context.Context, query string, maxResults int) ([]models.Evidence, error) {
	results, err := c.getSearchResults(ctx, query, maxResults+2)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("results", len(results)).Msg("DuckDuckGo: Found search results")

	var evidences []models.Evidence
	var mu sync.Mutex
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, 3) // Limit concurrent fetches

	for _, result := range results {
		if len(evidences) >= maxResults {
			break
		}

		wg.Add(1)
		go func(r pageResult) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			content, err := c.fetchPageContent(ctx, r.URL)
			if err != nil {
				log.Debug().Str("url", r.URL).Err(err).Msg("Failed to fetch page")
				content = r.Snippet
			}

			if content == "" {
				content = r.Snippet
			}

			if len(content) > 1000 {
				content = content[:1000] + "..."
			}

			if content != "" {
				mu.Lock()
				evidences = append(evidences, models.Evidence{
					ID:          uuid.New().String(),
					Source:      extractDomain(r.URL),
					SourceURL:   r.URL,
					Text:        content,
					RetrievedAt: time.Now(),
				})
				mu.Unlock()
			}
		}(result)
	}

	wg.Wait()
	return evidences, nil
}

// getSearchResults parses DuckDuckGo HTML search results.
func (c *DuckDuckGoClient) getSearchResults(ctx context.Context, query string, maxResults int) ([]pageResult, error) {
	u := fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	htmlContent := string(body)
	var results []pageResult

	linkPattern := regexp.MustCompile(`<a[^>]*class="result__a"[^>]*href="([^"]*)"[^>]*>([^<]+)</a>`)
	linkMatches := linkPattern.FindAllStringSubmatch(htmlContent, -1)

	snippetPattern := regexp.MustCompile(`<a[^>]*class="result__snippet"[^>]*>([^<]+)</a>`)
	snippetMatches := snippetPattern.FindAllStringSubmatch(htmlContent, -1)

	for i, match := range linkMatches {
		if len(results) >= maxResults {
			break
		}
		if len(match) >= 3 {
			rawURL := match[1]
			title := strings.TrimSpace(html.UnescapeString(match[2]))

			actualURL := decodeRedirectURL(rawURL)
			if actualURL == "" || strings.HasPrefix(actualURL, "//duckduckgo.com") {
				continue
			}

			snippet := ""
			if i < len(snippetMatches) && len(snippetMatches[i]) >= 2 {
				snippet = strings.TrimSpace(html.UnescapeString(snippetMatches[i][1]))
			}

			results = append(results, pageResult{
				Title:   title,
				URL:     actualURL,
				Snippet: snippet,
			})
		}
	}

	return results, nil
}

// decodeRedirectURL extracts the actual URL from a DuckDuckGo redirect.
func decodeRedirectURL(rawURL string) string {
	if strings.Contains(rawURL, "uddg=") {
		decoded, err := url.QueryUnescape(rawURL)
		if err != nil {
			return rawURL
		}
		if idx := strings.Index(decoded, "uddg="); idx >= 0 {
			actualURL := decoded[idx+5:]
			if ampIdx := strings.Index(actualURL, "&"); ampIdx >= 0 {
				actualURL = actualURL[:ampIdx]
			}
			if decodedURL, err := url.QueryUnescape(actualURL); err == nil {
				return decodedURL
			}
			return actualURL
		}
	}
	return rawURL
}

// fetchPageContent fetches and extracts text content from a web page.
func (c *DuckDuckGoClient) fetchPageContent(ctx context.Context, pageURL string) (string, error) {
	// These domains block scraping
	skipDomains := []string{"facebook.com", "instagram.com", "twitter.com", "x.com", "linkedin.com"}
	for _, domain := range skipDomains {
		if strings.Contains(pageURL, domain) {
			return "", fmt.Errorf("skipped domain")
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 500*1024))
	if err != nil {
		return "", err
	}

	return extractTextFromHTML(string(body)), nil
}

// extractTextFromHTML extracts readable text from HTML content.
func extractTextFromHTML(htmlContent string) string {
	scriptPattern := regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	stylePattern := regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlContent = scriptPattern.ReplaceAllString(htmlContent, "")
	htmlContent = stylePattern.ReplaceAllString(htmlContent, "")

	commentPattern := regexp.MustCompile(`<!--[\s\S]*?-->`)
	htmlContent = commentPattern.ReplaceAllString(htmlContent, "")

	mainPatterns := []string{
		`(?is)<article[^>]*>(.*?)</article>`,
		`(?is)<main[^>]*>(.*?)</main>`,
		`(?is)<div[^>]*class="[^"]*content[^"]*"[^>]*>(.*?)</div>`,
		`(?is)<div[^>]*class="[^"]*post[^"]*"[^>]*>(.*?)</div>`,
		`(?is)<div[^>]*class="[^"]*article[^"]*"[^>]*>(.*?)</div>`,
	}

	var mainContent string
	for _, pattern := range mainPatterns {
		re := regexp.MustCompile(pattern)
		if matches := re.FindStringSubmatch(htmlContent); len(matches) > 1 {
			mainContent = matches[1]
			break
		}
	}

	if mainContent == "" {
		bodyPattern := regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)
		if matches := bodyPattern.FindStringSubmatch(htmlContent); len(matches) > 1 {
			mainContent = matches[1]
		} else {
			mainContent = htmlContent
		}
	}

	tagPattern := regexp.MustCompile(`<[^>]+>`)
	text := tagPattern.ReplaceAllString(mainContent, " ")

	text = html.UnescapeString(text)

	spacePattern := regexp.MustCompile(`\s+`)
	text = spacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if len(text) < 50 {
		return ""
	}

	return text
}

// extractDomain extracts domain name from URL for source attribution.
func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "Web"
	}
	host := parsed.Hostname()
	host = strings.TrimPrefix(host, "www.")
	return host
}
