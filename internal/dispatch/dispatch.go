// Package dispatch implements C2: for each enabled provider it runs that
// adapter's strategy variants and aggregates per-strategy attribution.
// Cross-provider fan-out is parallel; strategies within one provider run
// sequentially, following the semaphore+WaitGroup+Mutex fan-out pattern in
// the teacher's internal/sources/manager.go Aggregate.
package dispatch

import (
	"context"
	"sync"
	"time"

	"pharmawatch/internal/config"
	"pharmawatch/internal/core"
	"pharmawatch/internal/logger"
	"pharmawatch/internal/providers"
)

// Dispatcher owns the set of adapters available to a run; which ones fire
// is decided per-call from Query.EnabledProviders.
type Dispatcher struct {
	adapters []providers.Adapter
	pl       config.Pipeline
}

func New(adapters []providers.Adapter, pl config.Pipeline) *Dispatcher {
	return &Dispatcher{adapters: adapters, pl: pl}
}

// Result is C2's output: the merged raw articles plus one StrategyDetail row
// per strategy actually run, for C10.
type Result struct {
	Articles []core.Article
	Details  []core.StrategyDetail
}

// Run executes every enabled provider's strategies and merges the results.
// Cross-provider fan-out is unordered; within a provider, strategies run in
// declared order so rate discipline and deterministic tie-breaking hold.
func (d *Dispatcher) Run(ctx context.Context, q core.Query) Result {
	enabled := make(map[core.Source]bool, len(q.EnabledProviders))
	for _, s := range q.EnabledProviders {
		enabled[s] = true
	}

	concurrency := d.pl.ProviderConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	var allArticles []core.Article
	var allDetails []core.StrategyDetail
	seen := make(map[string]bool) // cross-strategy duplicate tie-break: first observed wins

	for _, adapter := range d.adapters {
		if len(enabled) > 0 && !enabled[adapter.Source()] {
			continue
		}

		select {
		case <-ctx.Done():
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(a providers.Adapter) {
			defer wg.Done()
			defer func() { <-sem }()

			articles, details := d.runProvider(ctx, a, q)

			mu.Lock()
			for i := range articles {
				art := articles[i]
				if seen[art.ID] {
					continue
				}
				seen[art.ID] = true
				allArticles = append(allArticles, art)
			}
			allDetails = append(allDetails, details...)
			mu.Unlock()
		}(adapter)
	}

	wg.Wait()
	return Result{Articles: allArticles, Details: allDetails}
}

// runProvider runs one adapter's strategies sequentially, tallying
// UniqueContribution against a per-provider seen-set (first strategy to
// surface an ID keeps it).
func (d *Dispatcher) runProvider(ctx context.Context, a providers.Adapter, q core.Query) ([]core.Article, []core.StrategyDetail) {
	var articles []core.Article
	var details []core.StrategyDetail
	seen := make(map[string]bool)

	for _, strat := range a.Strategies(q) {
		select {
		case <-ctx.Done():
			details = append(details, core.StrategyDetail{
				Provider: a.Source(),
				Strategy: strat.Name,
				Error:    ctx.Err().Error(),
			})
			continue
		default:
		}

		start := time.Now()
		result, err := a.Search(ctx, strat, q)
		elapsed := time.Since(start)

		detail := core.StrategyDetail{
			Provider:  a.Source(),
			Strategy:  strat.Name,
			Retrieved: len(result),
			Elapsed:   elapsed,
		}
		if err != nil {
			detail.Error = err.Error()
			logger.Warn("provider strategy failed", "provider", a.Source(), "strategy", strat.Name, "error", err)
			details = append(details, detail)
			continue
		}

		unique := 0
		for _, art := range result {
			if !seen[art.ID] {
				seen[art.ID] = true
				unique++
			}
			articles = append(articles, art)
		}
		detail.UniqueContribution = unique
		details = append(details, detail)

		logger.Info("provider strategy completed", "provider", a.Source(), "strategy", strat.Name, "retrieved", len(result), "elapsed_ms", elapsed.Milliseconds())
	}

	return articles, details
}
