package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pharmawatch/internal/config"
	"pharmawatch/internal/core"
)

// PubMedAdapter talks to the NCBI Entrez E-utilities two-step protocol:
// esearch for an ID list, esummary for the detail records. Rate-gated by
// golang.org/x/time/rate in place of the teacher's hand-rolled
// time.Since/time.Sleep gate (internal/search/google.go), since PubMed's
// "honor a minimum inter-call interval" contract is exactly what a token
// bucket with burst 1 models.
type PubMedAdapter struct {
	cfg     config.PubMedConfig
	pl      config.Pipeline
	client  *http.Client
	limiter *rate.Limiter
}

func NewPubMedAdapter(cfg config.PubMedConfig, pl config.Pipeline) *PubMedAdapter {
	interval := cfg.MinCallInterval
	if interval <= 0 {
		interval = 350 * time.Millisecond
	}
	timeout := pl.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PubMedAdapter{
		cfg:     cfg,
		pl:      pl,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (a *PubMedAdapter) Source() core.Source { return core.SourcePubMed }

// Strategies: PubMed runs exactly one primary strategy (spec.md §4.2).
func (a *PubMedAdapter) Strategies(q core.Query) []Strategy {
	return []Strategy{{Name: "primary"}}
}

type pubmedESearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type pubmedSummary struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	PubDate string `json:"pubdate"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Source     string `json:"source"`
	ElocationID string `json:"elocationid"`
}

func (a *PubMedAdapter) Search(ctx context.Context, strat Strategy, q core.Query) ([]core.Article, error) {
	ids, err := a.searchIDs(ctx, q)
	if err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourcePubMed, Strategy: strat.Name, Cause: err}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	articles, err := a.fetchSummaries(ctx, ids, strat.Name)
	if err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourcePubMed, Strategy: strat.Name, Cause: err}
	}
	return articles, nil
}

func (a *PubMedAdapter) searchIDs(ctx context.Context, q core.Query) ([]string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	term := pubmedTerm(q)
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmode", "json")
	maxResults := a.cfg.MaxResultsPerCall
	if maxResults <= 0 {
		maxResults = 50
	}
	params.Set("retmax", fmt.Sprintf("%d", maxResults))
	if a.cfg.APIKey != "" {
		params.Set("api_key", a.cfg.APIKey)
	}

	reqURL := strings.TrimRight(a.cfg.BaseURL, "/") + "/esearch.fcgi?" + params.Encode()
	resp, err := withRetry(ctx, a.pl, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		return a.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pubmed esearch read: %w", err)
	}

	var parsed pubmedESearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("pubmed esearch decode: %w", err)
	}
	return parsed.ESearchResult.IDList, nil
}

func (a *PubMedAdapter) fetchSummaries(ctx context.Context, ids []string, strategy string) ([]core.Article, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "json")
	if a.cfg.APIKey != "" {
		params.Set("api_key", a.cfg.APIKey)
	}

	reqURL := strings.TrimRight(a.cfg.BaseURL, "/") + "/esummary.fcgi?" + params.Encode()
	resp, err := withRetry(ctx, a.pl, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		return a.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("pubmed esummary: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pubmed esummary read: %w", err)
	}

	var parsed pubmedESummaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("pubmed esummary decode: %w", err)
	}

	articles := make([]core.Article, 0, len(ids))
	for _, id := range ids {
		raw, ok := parsed.Result[id]
		if !ok {
			continue
		}
		var s pubmedSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		u := fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", id)
		authors := make([]string, 0, len(s.Authors))
		for _, auth := range s.Authors {
			authors = append(authors, auth.Name)
		}
		articles = append(articles, core.Article{
			ID:       fingerprint(u, s.Title, core.SourcePubMed),
			Title:    s.Title,
			Content:  s.Title,
			URL:      u,
			Source:   core.SourcePubMed,
			Strategy: strategy,
			RawDate:  s.PubDate,
			Authors:  authors,
		})
	}
	return articles, nil
}

// pubmedTerm builds the boolean query: keywords OR-joined as Title/Abstract
// phrases, ANDed with the date-range clause in PubMed's native syntax
// (spec.md §6: `YYYY/MM/DD:YYYY/MM/DD[dp]`).
func pubmedTerm(q core.Query) string {
	clauses := make([]string, 0, len(q.PrimaryKeywords))
	for _, kw := range q.PrimaryKeywords {
		clauses = append(clauses, fmt.Sprintf("%q[Title/Abstract]", kw))
	}
	keywordClause := strings.Join(clauses, " OR ")
	dateClause := fmt.Sprintf("%s:%s[dp]", q.StartDate.Format("2006/01/02"), q.EndDate.Format("2006/01/02"))
	if keywordClause == "" {
		return dateClause
	}
	return fmt.Sprintf("(%s) AND %s", keywordClause, dateClause)
}
