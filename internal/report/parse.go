package report

import (
	"encoding/json"
	"regexp"
	"strings"

	"peerprep/interview/internal/models"
	"peerprep/interview/internal/utils"
)

const (
	maxBullets         = 6
	fallbackSummaryLen = 600
)

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-•*·]|\d+[.)])\s+`)

// decodeJSON tries the whole text first, then the outermost {...} block.
func decodeJSON(raw string, v interface{}) bool {
	text := utils.StripFences(raw)
	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(text[start:end+1]), v) == nil
}

// ParseSummary never fails: output that is not JSON is read as a heading line
// followed by bullet lines.
func ParseSummary(raw string) models.Summary {
	var out models.Summary
	if decodeJSON(raw, &out) && (strings.TrimSpace(out.Summary) != "" || len(out.Bullets) > 0) {
		out.Summary = strings.TrimSpace(out.Summary)
		out.Bullets = cleanList(out.Bullets, maxBullets)
		return out
	}

	var heading string
	bullets := []string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if bulletPrefix.MatchString(line) {
			if len(bullets) < maxBullets {
				bullets = append(bullets, strings.TrimSpace(bulletPrefix.ReplaceAllString(line, "")))
			}
			continue
		}
		if heading == "" {
			heading = line
		}
	}
	if heading == "" {
		heading = utils.Truncate(strings.TrimSpace(raw), fallbackSummaryLen)
	}
	return models.Summary{Summary: heading, Bullets: bullets}
}

// ParseReport never fails: unparseable output becomes the summary with empty
// lists.
func ParseReport(raw string) models.Report {
	var out models.Report
	if decodeJSON(raw, &out) && strings.TrimSpace(out.Summary) != "" {
		out.Summary = strings.TrimSpace(out.Summary)
		out.Strengths = cleanList(out.Strengths, 0)
		out.Improvements = cleanList(out.Improvements, 0)
		out.Recommendations = cleanList(out.Recommendations, 0)
		return out
	}
	return models.Report{
		Summary:         strings.TrimSpace(raw),
		Strengths:       []string{},
		Improvements:    []string{},
		Recommendations: []string{},
	}
}

func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
