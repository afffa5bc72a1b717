package dateresolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharmawatch/internal/core"
)

type stubExtractor struct {
	result string
	err    error
}

func (s stubExtractor) ExtractDate(ctx context.Context, title, snippet string) (string, error) {
	return s.result, s.err
}

func TestResolveMetadataTierWins(t *testing.T) {
	r := New(stubExtractor{result: "2024-01-01"}, 2)
	articles := []core.Article{{ID: "1", RawDate: "2024-10-15"}}
	out := r.Resolve(context.Background(), articles)
	if out[0].DateOrigin != core.DateOriginMetadata {
		t.Errorf("DateOrigin = %q, want METADATA", out[0].DateOrigin)
	}
	if !out[0].ResolvedDate.Equal(time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ResolvedDate = %v", out[0].ResolvedDate)
	}
}

func TestResolveFallsBackToModelWhenNoMetadata(t *testing.T) {
	r := New(stubExtractor{result: "2024-10-15"}, 2)
	articles := []core.Article{{ID: "1", Title: "Some headline"}}
	out := r.Resolve(context.Background(), articles)
	if out[0].DateOrigin != core.DateOriginModel {
		t.Errorf("DateOrigin = %q, want MODEL", out[0].DateOrigin)
	}
}

func TestResolveModelNoneFallsBackToRegex(t *testing.T) {
	r := New(stubExtractor{result: ""}, 2)
	articles := []core.Article{{ID: "1", URL: "https://ex.com/2024/10/15/story"}}
	out := r.Resolve(context.Background(), articles)
	if out[0].DateOrigin != core.DateOriginRegex {
		t.Errorf("DateOrigin = %q, want REGEX", out[0].DateOrigin)
	}
	if !out[0].ResolvedDate.Equal(time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ResolvedDate = %v, want 2024-10-15", out[0].ResolvedDate)
	}
}

func TestResolveModelErrorFallsBackToRegex(t *testing.T) {
	r := New(stubExtractor{err: errors.New("timeout")}, 2)
	articles := []core.Article{{ID: "1", Content: "Published October 15, 2024 in the journal"}}
	out := r.Resolve(context.Background(), articles)
	if out[0].DateOrigin != core.DateOriginRegex {
		t.Errorf("DateOrigin = %q, want REGEX", out[0].DateOrigin)
	}
}

func TestResolveModelDateOutOfBoundsRejected(t *testing.T) {
	r := New(stubExtractor{result: "1899-01-01"}, 2)
	articles := []core.Article{{ID: "1", Title: "x"}}
	out := r.Resolve(context.Background(), articles)
	if out[0].DateOrigin == core.DateOriginModel {
		t.Error("an out-of-bounds model date should not be accepted")
	}
}

func TestResolveAllTiersFailYieldsNone(t *testing.T) {
	r := New(stubExtractor{result: ""}, 2)
	articles := []core.Article{{ID: "1", Title: "No date anywhere in this text"}}
	out := r.Resolve(context.Background(), articles)
	if out[0].DateOrigin != core.DateOriginNone {
		t.Errorf("DateOrigin = %q, want NONE", out[0].DateOrigin)
	}
	if out[0].HasDate {
		t.Error("HasDate should be false when all tiers fail")
	}
}

func TestResolvePreservesOrder(t *testing.T) {
	r := New(stubExtractor{result: ""}, 4)
	articles := []core.Article{
		{ID: "1", RawDate: "2024-01-01"},
		{ID: "2", RawDate: "2024-02-02"},
		{ID: "3", RawDate: "2024-03-03"},
	}
	out := r.Resolve(context.Background(), articles)
	for i, want := range []string{"1", "2", "3"} {
		if out[i].ID != want {
			t.Errorf("out[%d].ID = %q, want %q", i, out[i].ID, want)
		}
	}
}

func TestParseMetadataDateFormats(t *testing.T) {
	cases := []string{
		"2024-10-15",
		"Oct 15, 2024",
		"October 15, 2024",
		"15/10/2024",
		"20241015",
	}
	for _, raw := range cases {
		if _, ok := parseMetadataDate(raw); !ok {
			t.Errorf("parseMetadataDate(%q) failed to parse", raw)
		}
	}
}
