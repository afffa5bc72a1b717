// Package enhance implements C8: wrapping keyword matches in Content with a
// neutral highlight marker to produce HighlightedContent, without ever
// mutating Content itself.
package enhance

import (
	"regexp"
	"sort"
	"strings"

	"pharmawatch/internal/core"
)

const (
	markerOpen  = "«" // «
	markerClose = "»" // »
)

// Enhance sets HighlightedContent on every article by wrapping each
// case-insensitive, whole-word match of a query keyword or a model-mentioned
// keyword. Always derives HighlightedContent from the unmodified Content, so
// running this twice on the same Article is automatically idempotent
// (spec.md §8 property 7) — there is no "already wrapped" state to detect.
func Enhance(articles []core.Article, q core.Query) []core.Article {
	out := make([]core.Article, len(articles))
	for i, art := range articles {
		out[i] = art
		keywords := mergeKeywords(q.AllKeywords(), art.MentionedKeywords)
		out[i].HighlightedContent = highlight(art.Content, keywords)
	}
	return out
}

func mergeKeywords(primary, mentioned []string) []string {
	seen := make(map[string]bool, len(primary)+len(mentioned))
	out := make([]string, 0, len(primary)+len(mentioned))
	for _, list := range [][]string{primary, mentioned} {
		for _, kw := range list {
			key := strings.ToLower(strings.TrimSpace(kw))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, kw)
		}
	}
	return out
}

func highlight(content string, keywords []string) string {
	if content == "" || len(keywords) == 0 {
		return content
	}

	// Longest keyword first, so "ozempic injection" wins over "ozempic"
	// when both would otherwise match the same span.
	sorted := make([]string, len(keywords))
	copy(sorted, keywords)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	pattern := buildPattern(sorted)
	if pattern == nil {
		return content
	}
	return pattern.ReplaceAllStringFunc(content, func(match string) string {
		return markerOpen + match + markerClose
	})
}

func buildPattern(keywords []string) *regexp.Regexp {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(kw))
	}
	if len(parts) == 0 {
		return nil
	}
	// \b works on word-character transitions; fine for whole-word matching
	// of both single words and multi-word phrases (spaces are non-word).
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}
