package relevance

import "pharmawatch/internal/core"

// DefaultMinScore is used when the caller passes a non-positive threshold.
const DefaultMinScore = 40

// Filter implements C7: keep articles at or above minScore, and return the
// score-band histogram over the full analyzed set.
func Filter(articles []core.Article, minScore int) ([]core.Article, map[core.ScoreBand]int) {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	bands := make(map[core.ScoreBand]int)
	kept := make([]core.Article, 0, len(articles))
	for _, a := range articles {
		bands[core.Band(a.RelevanceScore)]++
		if a.RelevanceScore >= minScore {
			kept = append(kept, a)
		}
	}
	return kept, bands
}
