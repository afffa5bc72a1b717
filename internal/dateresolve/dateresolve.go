// Package dateresolve implements C4: the three-tier date extraction
// cascade (stored metadata -> model-assisted -> pattern-based), stopping at
// first success, run with bounded concurrency across articles.
package dateresolve

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"pharmawatch/internal/core"
	"pharmawatch/internal/logger"
)

// dateExtractor is the subset of *llm.Client the model tier needs; an
// interface so tests can stub it without a real Gemini connection.
type dateExtractor interface {
	ExtractDate(ctx context.Context, title, snippet string) (string, error)
}

// metadataFormats is the fixed ordered list the metadata tier tries, per
// spec.md §4.4: ISO, RFC-like, "Mon DD, YYYY", DD/MM/YYYY, MM/DD/YYYY,
// YYYYMMDD.
var metadataFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	time.RFC1123,
	time.RFC1123Z,
	"Jan 2, 2006",
	"January 2, 2006",
	"02/01/2006",
	"01/02/2006",
	"20060102",
}

var (
	isoDatePattern      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	slashDatePattern    = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)
	compactDatePattern  = regexp.MustCompile(`/(\d{8})/`)
	monthFirstPattern   = regexp.MustCompile(`(January|February|March|April|May|June|July|August|September|October|November|December) (\d{1,2}), (\d{4})`)
	dayFirstPattern     = regexp.MustCompile(`(\d{1,2}) (January|February|March|April|May|June|July|August|September|October|November|December) (\d{4})`)
)

// Resolver runs the three-tier cascade with a semaphore bounding concurrent
// model calls, per spec.md §4.4 ("up to P articles concurrently").
type Resolver struct {
	llmClient   dateExtractor
	concurrency int
}

func New(llmClient dateExtractor, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Resolver{llmClient: llmClient, concurrency: concurrency}
}

// Resolve returns a copy of articles with ResolvedDate/HasDate/DateOrigin
// set where any tier succeeded. Order is preserved (spec.md §5).
func (r *Resolver) Resolve(ctx context.Context, articles []core.Article) []core.Article {
	out := make([]core.Article, len(articles))
	copy(out, articles)

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for i := range out {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			r.resolveOne(ctx, &out[i])
		}(i)
	}
	wg.Wait()
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, art *core.Article) {
	if t, ok := parseMetadataDate(art.RawDate); ok {
		art.ResolvedDate = t
		art.HasDate = true
		art.DateOrigin = core.DateOriginMetadata
		return
	}

	if r.llmClient != nil {
		if t, ok := r.modelExtract(ctx, art); ok {
			art.ResolvedDate = t
			art.HasDate = true
			art.DateOrigin = core.DateOriginModel
			return
		}
	}

	if t, ok := patternExtract(art); ok {
		art.ResolvedDate = t
		art.HasDate = true
		art.DateOrigin = core.DateOriginRegex
		return
	}

	art.HasDate = false
	art.DateOrigin = core.DateOriginNone
}

func parseMetadataDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range metadataFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// modelExtract prompts the cheap model tier. A timeout or malformed
// response is a per-item failure per spec.md §5, never a pipeline error.
func (r *Resolver) modelExtract(ctx context.Context, art *core.Article) (time.Time, bool) {
	snippet := truncate(art.URL, 200) + " " + truncate(art.Content, 3000)
	raw, err := r.llmClient.ExtractDate(ctx, truncate(art.Title, 500), snippet)
	if err != nil {
		logger.Warn("date extraction call failed", "article_id", art.ID, "error", err)
		return time.Time{}, false
	}
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	earliest := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Now().AddDate(0, 0, 30)
	if t.Before(earliest) || t.After(latest) {
		return time.Time{}, false
	}
	return t, true
}

// patternExtract scans the URL and a 2000-character window of title+content
// for the five pattern families of spec.md §4.4, returning the first valid
// match.
func patternExtract(art *core.Article) (time.Time, bool) {
	window := truncate(art.Title+" "+art.Content, 2000)
	haystacks := []string{art.URL, window}

	for _, h := range haystacks {
		if m := slashDatePattern.FindStringSubmatch(h); m != nil {
			if t, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])); err == nil {
				return t, true
			}
		}
		if m := compactDatePattern.FindStringSubmatch(h); m != nil {
			if t, err := time.Parse("20060102", m[1]); err == nil {
				return t, true
			}
		}
		if m := isoDatePattern.FindString(h); m != "" {
			if t, err := time.Parse("2006-01-02", m); err == nil {
				return t, true
			}
		}
		if m := monthFirstPattern.FindStringSubmatch(h); m != nil {
			if t, err := time.Parse("January 2, 2006", fmt.Sprintf("%s %s, %s", m[1], m[2], m[3])); err == nil {
				return t, true
			}
		}
		if m := dayFirstPattern.FindStringSubmatch(h); m != nil {
			if t, err := time.Parse("2 January 2006", fmt.Sprintf("%s %s %s", m[1], m[2], m[3])); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
