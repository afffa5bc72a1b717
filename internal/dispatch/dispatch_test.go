package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharmawatch/internal/config"
	"pharmawatch/internal/core"
	"pharmawatch/internal/providers"
)

func testQuery(enabled ...core.Source) core.Query {
	return core.Query{
		PrimaryKeywords:  []string{"semaglutide"},
		StartDate:        time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC),
		EnabledProviders: enabled,
	}
}

func TestRunMergesAcrossProviders(t *testing.T) {
	pubmed := &providers.MockAdapter{
		SourceName:  core.SourcePubMed,
		StrategySet: []providers.Strategy{{Name: "primary"}},
		Results: map[string][]core.Article{
			"primary": {{ID: "p1", Title: "A"}, {ID: "p2", Title: "B"}},
		},
	}
	exa := &providers.MockAdapter{
		SourceName:  core.SourceExa,
		StrategySet: []providers.Strategy{{Name: "keyword_curated"}},
		Results: map[string][]core.Article{
			"keyword_curated": {{ID: "e1", Title: "C"}},
		},
	}

	d := New([]providers.Adapter{pubmed, exa}, config.Pipeline{ProviderConcurrency: 2})
	result := d.Run(context.Background(), testQuery(core.SourcePubMed, core.SourceExa))

	if len(result.Articles) != 3 {
		t.Fatalf("Articles = %d, want 3", len(result.Articles))
	}
	if len(result.Details) != 2 {
		t.Fatalf("Details = %d, want 2", len(result.Details))
	}
}

func TestRunSkipsDisabledProviders(t *testing.T) {
	pubmed := &providers.MockAdapter{
		SourceName:  core.SourcePubMed,
		StrategySet: []providers.Strategy{{Name: "primary"}},
		Results:     map[string][]core.Article{"primary": {{ID: "p1"}}},
	}
	tavily := &providers.MockAdapter{
		SourceName:  core.SourceTavily,
		StrategySet: []providers.Strategy{{Name: "pharma_domains"}},
		Results:     map[string][]core.Article{"pharma_domains": {{ID: "t1"}}},
	}

	d := New([]providers.Adapter{pubmed, tavily}, config.Pipeline{})
	result := d.Run(context.Background(), testQuery(core.SourcePubMed))

	if len(result.Articles) != 1 {
		t.Fatalf("Articles = %d, want 1 (tavily disabled)", len(result.Articles))
	}
	if len(tavily.Calls) != 0 {
		t.Error("disabled provider should never be called")
	}
}

func TestRunRecordsStrategyErrorWithoutAbortingOtherStrategies(t *testing.T) {
	flaky := &providers.MockAdapter{
		SourceName: core.SourceTavily,
		StrategySet: []providers.Strategy{
			{Name: "pharma_domains"},
			{Name: "mixed_broad"},
		},
		Errors: map[string]error{"pharma_domains": errors.New("HTTP 500")},
		Results: map[string][]core.Article{
			"mixed_broad": {{ID: "t1"}},
		},
	}

	d := New([]providers.Adapter{flaky}, config.Pipeline{})
	result := d.Run(context.Background(), testQuery(core.SourceTavily))

	if len(result.Articles) != 1 {
		t.Fatalf("Articles = %d, want 1 (second strategy still ran)", len(result.Articles))
	}
	if len(result.Details) != 2 {
		t.Fatalf("Details = %d, want 2", len(result.Details))
	}
	var sawError bool
	for _, det := range result.Details {
		if det.Strategy == "pharma_domains" && det.Error != "" {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected pharma_domains strategy detail to carry an error")
	}
}

func TestRunCrossStrategyDuplicateFirstObservedWins(t *testing.T) {
	provider := &providers.MockAdapter{
		SourceName: core.SourceNewsAPI,
		StrategySet: []providers.Strategy{
			{Name: "primary"},
			{Name: "expanded"},
		},
		Results: map[string][]core.Article{
			"primary":  {{ID: "dup1", Title: "First"}},
			"expanded": {{ID: "dup1", Title: "Second"}, {ID: "new1", Title: "Third"}},
		},
	}

	d := New([]providers.Adapter{provider}, config.Pipeline{})
	result := d.Run(context.Background(), testQuery(core.SourceNewsAPI))

	if len(result.Articles) != 2 {
		t.Fatalf("Articles = %d, want 2 (dup1 collapsed)", len(result.Articles))
	}
	for _, a := range result.Articles {
		if a.ID == "dup1" && a.Title != "First" {
			t.Errorf("first-observed-wins violated: dup1 title = %q", a.Title)
		}
	}

	for _, det := range result.Details {
		if det.Strategy == "expanded" && det.UniqueContribution != 1 {
			t.Errorf("expanded UniqueContribution = %d, want 1 (only new1 is unique to it)", det.UniqueContribution)
		}
	}
}

func TestRunEmptyQueryNoEnabledProvidersRunsAll(t *testing.T) {
	pubmed := &providers.MockAdapter{
		SourceName:  core.SourcePubMed,
		StrategySet: []providers.Strategy{{Name: "primary"}},
		Results:     map[string][]core.Article{"primary": {{ID: "p1"}}},
	}
	d := New([]providers.Adapter{pubmed}, config.Pipeline{})
	result := d.Run(context.Background(), testQuery())
	if len(result.Articles) != 1 {
		t.Errorf("with no EnabledProviders set, all adapters should run; got %d articles", len(result.Articles))
	}
}
