package dedup

import (
	"testing"

	"pharmawatch/internal/core"
)

func TestSimilarityNearDuplicateTitles(t *testing.T) {
	sim := similarity("Biden receiving radiation therapy", "Biden receiving radiation therapy, aide says")
	if sim < 0.8 || sim > 0.95 {
		t.Errorf("similarity = %v, want roughly 0.87 per spec.md S5", sim)
	}
}

func TestSimilarityIdenticalTitles(t *testing.T) {
	if sim := similarity("Same Title", "Same Title"); sim != 1.0 {
		t.Errorf("similarity of identical titles = %v, want 1.0", sim)
	}
}

func TestDedupCollapsesNearDuplicatesKeepsLongerContent(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Biden receiving radiation therapy", Content: "short"},
		{ID: "2", Title: "Biden receiving radiation therapy, aide says", Content: "a much longer article body with detail"},
	}
	result := Dedup(articles, 0.75)
	if len(result.Kept) != 1 {
		t.Fatalf("Kept = %d, want 1", len(result.Kept))
	}
	if result.Kept[0].ID != "2" {
		t.Errorf("representative = %q, want the longer-content article", result.Kept[0].ID)
	}
	if result.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d, want 1", result.DuplicatesRemoved)
	}
}

func TestDedupEmptyTitleBypassesGrouping(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: ""},
		{ID: "2", Title: ""},
	}
	result := Dedup(articles, 0.75)
	if len(result.Kept) != 2 {
		t.Fatalf("Kept = %d, want 2 (empty titles never grouped)", len(result.Kept))
	}
}

func TestDedupIdenticalURLCollapsesRegardlessOfTitleSimilarity(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Completely Different Headline One", URL: "https://ex.com/a", Content: "x"},
		{ID: "2", Title: "Totally Unrelated Text Two", URL: "https://ex.com/a", Content: "xx"},
	}
	result := Dedup(articles, 0.75)
	if len(result.Kept) != 1 {
		t.Fatalf("Kept = %d, want 1 (identical URL collapses)", len(result.Kept))
	}
}

func TestDedupDistinctTitlesStayApart(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Ozempic trial results announced", Content: "a"},
		{ID: "2", Title: "FDA approves new cancer drug", Content: "b"},
	}
	result := Dedup(articles, 0.75)
	if len(result.Kept) != 2 {
		t.Fatalf("Kept = %d, want 2", len(result.Kept))
	}
}

func TestDedupOrderStable(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Alpha story", Content: "a"},
		{ID: "2", Title: "", Content: "b"},
		{ID: "3", Title: "Gamma story", Content: "c"},
	}
	result := Dedup(articles, 0.75)
	want := []string{"1", "2", "3"}
	for i, a := range result.Kept {
		if a.ID != want[i] {
			t.Errorf("Kept[%d].ID = %q, want %q", i, a.ID, want[i])
		}
	}
}

func TestDedupRepresentativeTiebreakByAuthorsThenURL(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Same headline text here", Content: "equal length!!", URL: "short"},
		{ID: "2", Title: "Same headline text here", Content: "equal length!!", Authors: []string{"A. Author"}, URL: "https://ex.com/longer-url"},
	}
	result := Dedup(articles, 0.75)
	if len(result.Kept) != 1 {
		t.Fatalf("Kept = %d, want 1", len(result.Kept))
	}
	if result.Kept[0].ID != "2" {
		t.Errorf("representative = %q, want article with author metadata", result.Kept[0].ID)
	}
}

func TestDedupSoundnessNoTwoKeptAboveThreshold(t *testing.T) {
	articles := []core.Article{
		{ID: "1", Title: "Drug A trial begins phase two", Content: "a"},
		{ID: "2", Title: "Drug B approval granted by regulator", Content: "b"},
		{ID: "3", Title: "Market reaction to drug B news", Content: "c"},
	}
	result := Dedup(articles, 0.75)
	for i := 0; i < len(result.Kept); i++ {
		for j := i + 1; j < len(result.Kept); j++ {
			a, b := result.Kept[i], result.Kept[j]
			if a.Title == "" || b.Title == "" {
				continue
			}
			if similarity(a.Title, b.Title) >= 0.75 {
				t.Errorf("kept articles %q and %q exceed threshold", a.Title, b.Title)
			}
		}
	}
}
