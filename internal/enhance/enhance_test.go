package enhance

import (
	"testing"

	"pharmawatch/internal/core"
)

func TestEnhanceWrapsKeywordMatch(t *testing.T) {
	q := core.Query{PrimaryKeywords: []string{"ozempic"}}
	articles := []core.Article{{ID: "1", Content: "Ozempic shows promise in trials."}}
	out := Enhance(articles, q)
	want := "«Ozempic» shows promise in trials."
	if out[0].HighlightedContent != want {
		t.Errorf("HighlightedContent = %q, want %q", out[0].HighlightedContent, want)
	}
}

func TestEnhancePreservesOriginalCasing(t *testing.T) {
	q := core.Query{PrimaryKeywords: []string{"OZEMPIC"}}
	articles := []core.Article{{ID: "1", Content: "ozempic is discussed here"}}
	out := Enhance(articles, q)
	if out[0].HighlightedContent != "«ozempic» is discussed here" {
		t.Errorf("got %q", out[0].HighlightedContent)
	}
}

func TestEnhanceDoesNotMutateContent(t *testing.T) {
	q := core.Query{PrimaryKeywords: []string{"ozempic"}}
	articles := []core.Article{{ID: "1", Content: "ozempic news"}}
	out := Enhance(articles, q)
	if out[0].Content != "ozempic news" {
		t.Errorf("Content mutated: %q", out[0].Content)
	}
}

func TestEnhanceWholeWordBoundary(t *testing.T) {
	q := core.Query{PrimaryKeywords: []string{"cancer"}}
	articles := []core.Article{{ID: "1", Content: "cancerous growths vs cancer diagnosis"}}
	out := Enhance(articles, q)
	want := "cancerous growths vs «cancer» diagnosis"
	if out[0].HighlightedContent != want {
		t.Errorf("got %q, want %q", out[0].HighlightedContent, want)
	}
}

func TestEnhanceIdempotent(t *testing.T) {
	q := core.Query{PrimaryKeywords: []string{"ozempic"}}
	articles := []core.Article{{ID: "1", Content: "ozempic trial results"}}
	first := Enhance(articles, q)
	second := Enhance(first, q)
	if first[0].HighlightedContent != second[0].HighlightedContent {
		t.Errorf("not idempotent: %q vs %q", first[0].HighlightedContent, second[0].HighlightedContent)
	}
}

func TestEnhanceMergesMentionedKeywords(t *testing.T) {
	q := core.Query{PrimaryKeywords: []string{"diabetes"}}
	articles := []core.Article{{
		ID:                "1",
		Content:           "semaglutide helps with diabetes management",
		MentionedKeywords: []string{"semaglutide"},
	}}
	out := Enhance(articles, q)
	want := "«semaglutide» helps with «diabetes» management"
	if out[0].HighlightedContent != want {
		t.Errorf("got %q, want %q", out[0].HighlightedContent, want)
	}
}

func TestEnhanceLongerPhraseTakesPriority(t *testing.T) {
	q := core.Query{PrimaryKeywords: []string{"ozempic", "ozempic injection"}}
	articles := []core.Article{{ID: "1", Content: "the ozempic injection was administered"}}
	out := Enhance(articles, q)
	want := "the «ozempic injection» was administered"
	if out[0].HighlightedContent != want {
		t.Errorf("got %q, want %q", out[0].HighlightedContent, want)
	}
}

func TestEnhanceEmptyContentUnchanged(t *testing.T) {
	q := core.Query{PrimaryKeywords: []string{"ozempic"}}
	articles := []core.Article{{ID: "1", Content: ""}}
	out := Enhance(articles, q)
	if out[0].HighlightedContent != "" {
		t.Errorf("HighlightedContent = %q, want empty", out[0].HighlightedContent)
	}
}
