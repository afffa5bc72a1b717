// Package dedup implements C3: near-duplicate title grouping and
// representative selection. The pass never fails — input errors simply
// don't exist at this stage, every Article is already well-formed.
package dedup

import (
	"strings"

	"pharmawatch/internal/core"
)

// DefaultThreshold is used when the caller passes a non-positive threshold.
const DefaultThreshold = 0.75

// Group is one cluster of near-duplicate articles plus the member chosen to
// represent it.
type Group struct {
	Representative core.Article
	Members        []core.Article
}

// Result is C3's output: the surviving (deduplicated, order-stable) article
// list and the groups that produced it, for C10's duplicate-rate reporting.
type Result struct {
	Kept              []core.Article
	Groups            []Group
	DuplicatesRemoved int
}

type groupState struct {
	members    []core.Article
	firstIndex int
}

// Dedup groups near-duplicate titles with a single forward pass: for each
// article, compare against the current representative of every existing
// group; attach to the most similar group at or above threshold, else start
// a new one. Empty titles bypass grouping. Identical URLs collapse
// regardless of title similarity. Output preserves input order among
// surviving items (spec.md §4.3).
func Dedup(articles []core.Article, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var groups []*groupState
	var passthrough []core.Article
	passthroughIndex := make(map[int]int) // index into passthrough -> original input index
	kept := make([]core.Article, 0, len(articles))

	for i, art := range articles {
		if art.Title == "" {
			passthrough = append(passthrough, art)
			passthroughIndex[len(passthrough)-1] = i
			continue
		}

		if art.URL != "" {
			if g := findGroupByURL(groups, art.URL); g != nil {
				g.members = append(g.members, art)
				continue
			}
		}

		best := -1
		bestSim := 0.0
		for gi, g := range groups {
			sim := similarity(representative(g.members).Title, art.Title)
			if sim > bestSim {
				bestSim = sim
				best = gi
			}
		}
		if best >= 0 && bestSim >= threshold {
			groups[best].members = append(groups[best].members, art)
			continue
		}

		groups = append(groups, &groupState{members: []core.Article{art}, firstIndex: i})
	}

	type ordered struct {
		art   core.Article
		index int
	}
	var all []ordered
	var outGroups []Group
	duplicatesRemoved := 0

	for _, g := range groups {
		rep := representative(g.members)
		outGroups = append(outGroups, Group{Representative: rep, Members: g.members})
		all = append(all, ordered{art: rep, index: g.firstIndex})
		duplicatesRemoved += len(g.members) - 1
	}
	for idx, art := range passthrough {
		all = append(all, ordered{art: art, index: passthroughIndex[idx]})
	}

	// stable sort by original index
	for i := 1; i < len(all); i++ {
		j := i
		for j > 0 && all[j-1].index > all[j].index {
			all[j-1], all[j] = all[j], all[j-1]
			j--
		}
	}
	for _, o := range all {
		kept = append(kept, o.art)
	}

	return Result{Kept: kept, Groups: outGroups, DuplicatesRemoved: duplicatesRemoved}
}

func findGroupByURL(groups []*groupState, url string) *groupState {
	for _, g := range groups {
		for _, m := range g.members {
			if m.URL == url {
				return g
			}
		}
	}
	return nil
}

// representative picks, per spec.md §4.3: (1) longest content, then (2) most
// author metadata, then (3) longest URL.
func representative(members []core.Article) core.Article {
	best := members[0]
	for _, m := range members[1:] {
		if len(m.Content) > len(best.Content) {
			best = m
			continue
		}
		if len(m.Content) < len(best.Content) {
			continue
		}
		if len(m.Authors) > len(best.Authors) {
			best = m
			continue
		}
		if len(m.Authors) < len(best.Authors) {
			continue
		}
		if len(m.URL) > len(best.URL) {
			best = m
		}
	}
	return best
}

// similarity is a longest-common-subsequence-based ratio over lowercased
// titles, in the same family as a standard sequence-matcher's ratio()
// (2 * matches / total length).
func similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" && b == "" {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	matches := lcsLength(ra, rb)
	return 2.0 * float64(matches) / float64(len(ra)+len(rb))
}

func lcsLength(a, b []rune) int {
	n, m := len(a), len(b)
	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = 0
		}
	}
	return prev[m]
}
