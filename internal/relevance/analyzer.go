// Package relevance implements C6 (the LLM relevance analyzer) and C7 (the
// score-threshold filter).
package relevance

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"pharmawatch/internal/core"
	"pharmawatch/internal/llm"
)

// relevanceClient is the subset of *llm.Client the analyzer needs, so tests
// can stub it without a real Gemini connection.
type relevanceClient interface {
	AnalyzeRelevance(ctx context.Context, prompt string) (llm.RelevanceVerdict, error)
}

// Analyzer runs C6: one LLM call per article, bounded by a semaphore of
// size M (default 5, spec.md §4.6).
type Analyzer struct {
	client      relevanceClient
	concurrency int
}

func NewAnalyzer(client relevanceClient, concurrency int) *Analyzer {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Analyzer{client: client, concurrency: concurrency}
}

// Analyze annotates every article with a relevance verdict. Any failure —
// network error, timeout, or unparseable model output — retains the article
// with a neutral score rather than dropping it; losing an article to a
// transient model problem is costlier than an occasional false positive.
func (a *Analyzer) Analyze(ctx context.Context, articles []core.Article, q core.Query) []core.Article {
	out := make([]core.Article, len(articles))
	copy(out, articles)

	sem := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup

	for i := range out {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			a.analyzeOne(ctx, &out[i], q)
		}(i)
	}
	wg.Wait()
	return out
}

func (a *Analyzer) analyzeOne(ctx context.Context, art *core.Article, q core.Query) {
	prompt := buildPrompt(*art, q)
	verdict, err := a.client.AnalyzeRelevance(ctx, prompt)
	if err != nil || isGenericFallback(verdict) {
		verdict = neutralVerdictFor(*art, q)
	}

	art.RelevanceScore = verdict.RelevanceScore
	art.RelevanceReason = verdict.RelevanceReason
	art.ArticleType = verdict.ArticleType
	art.MentionedKeywords = verdict.MentionedKeywords
	art.ClinicalSignificance = verdict.ClinicalSignificance
	art.RegulatoryImpact = verdict.RegulatoryImpact
	art.MarketImpact = verdict.MarketImpact
	art.Summary = verdict.Summary
}

// isGenericFallback reports whether llm.AnalyzeRelevance's own defensive
// cascade already gave up and returned its package-level NeutralVerdict —
// in which case this stage substitutes the spec's article-aware neutral
// record (mentioned_keywords/summary populated from the actual article)
// instead of the generic one.
func isGenericFallback(v llm.RelevanceVerdict) bool {
	return reflect.DeepEqual(v, llm.NeutralVerdict())
}

func neutralVerdictFor(art core.Article, q core.Query) llm.RelevanceVerdict {
	return llm.RelevanceVerdict{
		RelevanceScore:    50,
		RelevanceReason:   "parse failure; retained",
		ArticleType:       "unknown",
		MentionedKeywords: q.AllKeywords(),
		Summary:           truncate(art.Content, 200),
	}
}

// buildPrompt assembles C6's user payload: the six-criteria rubric over
// title/source/url/date/content, the search keywords, and the mode.
func buildPrompt(art core.Article, q core.Query) string {
	var sb strings.Builder
	sb.WriteString("You are an expert pharmaceutical research analyst. Return ONLY valid JSON.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", art.Title)
	fmt.Fprintf(&sb, "Source: %s\n", art.Source)
	fmt.Fprintf(&sb, "URL: %s\n", art.URL)
	if art.HasDate {
		fmt.Fprintf(&sb, "Date: %s\n", art.ResolvedDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, "Content: %s\n\n", truncate(art.Content, 3000))
	fmt.Fprintf(&sb, "Search keywords: %s\n", strings.Join(q.AllKeywords(), ", "))
	fmt.Fprintf(&sb, "Search mode: %s\n\n", q.Mode)
	sb.WriteString("Score 0-100 (80+ critical, 60-79 important, 40-59 moderate, <40 low) weighing:\n")
	sb.WriteString("1. keyword presence\n2. content quality\n3. clinical significance\n")
	sb.WriteString("4. regulatory relevance\n5. market impact\n6. source credibility\n")
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
