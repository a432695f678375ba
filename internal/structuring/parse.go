package structuring

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// decodeModelJSON parses a JSON object out of a model response, tolerating
// markdown code fences and surrounding prose.
func decodeModelJSON(response string, v interface{}) error {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		if matches := fenceRe.FindStringSubmatch(response); len(matches) > 1 {
			response = matches[1]
		}
	}

	if err := json.Unmarshal([]byte(response), v); err != nil {
		// Try to find a JSON object in the response
		start := strings.Index(response, "{")
		end := strings.LastIndex(response, "}")
		if start >= 0 && end > start {
			if err := json.Unmarshal([]byte(response[start:end+1]), v); err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}
			return nil
		}
		return fmt.Errorf("no JSON found in response")
	}

	return nil
}

// clamp100 bounds external scores to the documented 0-100 range.
func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
