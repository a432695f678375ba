package understanding

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/videoforensics/veriscope/internal/models"
)

// decodeJSONReply parses a JSON object out of a model reply, tolerating
// markdown code fences and surrounding prose.
func decodeJSONReply(reply string, v interface{}) error {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	if err := json.Unmarshal([]byte(reply), v); err != nil {
		start := strings.Index(reply, "{")
		end := strings.LastIndex(reply, "}")
		if start >= 0 && end > start {
			return json.Unmarshal([]byte(reply[start:end+1]), v)
		}
		return fmt.Errorf("no JSON found in reply")
	}
	return nil
}

// parseUnderstanding splits a headed analysis reply into its sections. The
// service is prompted for TRANSCRIPT, VISIBLE_TEXT and SCENE_SUMMARY
// headings; anything before the first heading is ignored.
func parseUnderstanding(raw string) *models.Understanding {
	sections := map[string]*strings.Builder{
		"TRANSCRIPT":    {},
		"VISIBLE_TEXT":  {},
		"SCENE_SUMMARY": {},
	}

	var current *strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)

		matched := false
		for name, buf := range sections {
			if rest, ok := cutHeading(trimmed, name); ok {
				current = buf
				if rest != "" {
					buf.WriteString(rest)
					buf.WriteString("\n")
				}
				matched = true
				break
			}
		}
		if matched || current == nil {
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")
	}

	u := &models.Understanding{
		Transcript:   strings.TrimSpace(sections["TRANSCRIPT"].String()),
		OnScreenText: strings.TrimSpace(sections["VISIBLE_TEXT"].String()),
	}

	for _, line := range strings.Split(sections["SCENE_SUMMARY"].String(), "\n") {
		summary := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if summary == "" {
			continue
		}
		u.Scenes = append(u.Scenes, models.Scene{Index: len(u.Scenes), Summary: summary})
	}

	return u
}

// cutHeading matches a "NAME:" heading, tolerating markdown bold markers,
// and returns any text that follows on the same line.
func cutHeading(line, name string) (string, bool) {
	line = strings.Trim(line, "*# ")
	if !strings.HasPrefix(line, name) {
		return "", false
	}
	rest := strings.TrimPrefix(line, name)
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	return strings.TrimSpace(strings.Trim(rest[1:], "* ")), true
}
