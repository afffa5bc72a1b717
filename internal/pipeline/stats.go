package pipeline

import (
	"sort"
	"time"

	"pharmawatch/internal/core"
)

// buildProviderAggregates folds C2's strategy details and the final kept
// list into one ProviderAggregate per provider, for RunStats and C10.
func buildProviderAggregates(details []core.StrategyDetail, kept []core.Article) map[core.Source]*core.ProviderAggregate {
	agg := make(map[core.Source]*core.ProviderAggregate)

	for _, d := range details {
		a, ok := agg[d.Provider]
		if !ok {
			a = &core.ProviderAggregate{}
			agg[d.Provider] = a
		}
		a.Retrieved += d.Retrieved
		a.UniqueContribution += d.UniqueContribution
		a.Elapsed += d.Elapsed
	}

	scoreSum := make(map[core.Source]int)
	scoreCount := make(map[core.Source]int)
	for _, art := range kept {
		a, ok := agg[art.Source]
		if !ok {
			a = &core.ProviderAggregate{}
			agg[art.Source] = a
		}
		a.Kept++
		scoreSum[art.Source] += art.RelevanceScore
		scoreCount[art.Source]++
	}

	for source, a := range agg {
		if a.Retrieved > 0 {
			a.DuplicateRate = 1.0 - float64(a.UniqueContribution)/float64(a.Retrieved)
		}
		if scoreCount[source] > 0 {
			a.AvgScore = float64(scoreSum[source]) / float64(scoreCount[source])
		}
	}
	return agg
}

// sortFinal orders the display list by (relevance_score desc, resolved_date
// desc, source asc), per spec.md §5's final-merge ordering guarantee.
func sortFinal(articles []core.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if !a.ResolvedDate.Equal(b.ResolvedDate) {
			return a.ResolvedDate.After(b.ResolvedDate)
		}
		return a.Source < b.Source
	})
}

// scoreMinMaxAvg computes C7's score_min/score_max/score_avg over the
// analyzed set.
func scoreMinMaxAvg(articles []core.Article) (min, max int, avg float64) {
	if len(articles) == 0 {
		return 0, 0, 0
	}
	min, max = articles[0].RelevanceScore, articles[0].RelevanceScore
	sum := 0
	for _, a := range articles {
		if a.RelevanceScore < min {
			min = a.RelevanceScore
		}
		if a.RelevanceScore > max {
			max = a.RelevanceScore
		}
		sum += a.RelevanceScore
	}
	return min, max, float64(sum) / float64(len(articles))
}

// withinWindow reports whether d falls within [start, end] inclusive.
func withinWindow(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}
