package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pharmawatch/internal/config"
	"pharmawatch/internal/core"
)

// ExaAdapter calls Exa's combined search-and-contents endpoint. Variants
// differ by mode (keyword vs neural) and domain filter, per spec.md §4.1.
type ExaAdapter struct {
	cfg    config.ExaConfig
	pl     config.Pipeline
	client *http.Client
}

func NewExaAdapter(cfg config.ExaConfig, pl config.Pipeline) *ExaAdapter {
	timeout := pl.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExaAdapter{cfg: cfg, pl: pl, client: &http.Client{Timeout: timeout}}
}

func (a *ExaAdapter) Source() core.Source { return core.SourceExa }

// Strategies: a domain-curated keyword pass and a broad neural pass — two
// named variants per the "differ by domain filter and keyword/neural mode"
// contract. Domain allow-lists are configuration (spec.md §9 Open
// Questions), never hard-coded.
func (a *ExaAdapter) Strategies(q core.Query) []Strategy {
	strategies := []Strategy{
		{Name: "keyword_curated", Params: map[string]string{"type": "keyword", "domains": "curated"}},
	}
	if q.Mode != core.ModeTitleOnly {
		strategies = append(strategies, Strategy{Name: "neural_broad", Params: map[string]string{"type": "neural", "domains": "none"}})
	}
	return strategies
}

type exaRequest struct {
	Query          string   `json:"query"`
	Type           string   `json:"type"`
	IncludeDomains []string `json:"includeDomains,omitempty"`
	NumResults     int      `json:"numResults"`
	Contents       struct {
		Text bool `json:"text"`
	} `json:"contents"`
	StartPublishedDate string `json:"startPublishedDate,omitempty"`
	EndPublishedDate   string `json:"endPublishedDate,omitempty"`
}

type exaResponse struct {
	Results []struct {
		URL           string `json:"url"`
		Title         string `json:"title"`
		PublishedDate string `json:"publishedDate"`
		Text          string `json:"text"`
		Author        string `json:"author"`
	} `json:"results"`
}

func (a *ExaAdapter) Search(ctx context.Context, strat Strategy, q core.Query) ([]core.Article, error) {
	body := exaRequest{
		Query:              strings.Join(q.AllKeywords(), " "),
		Type:               strat.Params["type"],
		NumResults:         a.defaultHits(),
		StartPublishedDate: q.StartDate.Format("2006-01-02"),
		EndPublishedDate:   q.EndDate.Format("2006-01-02"),
	}
	body.Contents.Text = true
	if strat.Params["domains"] == "curated" {
		body.IncludeDomains = a.cfg.DomainAllow
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourceExa, Strategy: strat.Name, Cause: err}
	}

	reqURL := strings.TrimRight(a.cfg.BaseURL, "/") + "/search"
	resp, err := withRetry(ctx, a.pl, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.cfg.APIKey)
		return a.client.Do(req)
	})
	if err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourceExa, Strategy: strat.Name, Cause: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourceExa, Strategy: strat.Name, Cause: err}
	}

	var parsed exaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourceExa, Strategy: strat.Name, Cause: fmt.Errorf("decode: %w", err)}
	}

	articles := make([]core.Article, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		authors := []string(nil)
		if r.Author != "" {
			authors = []string{r.Author}
		}
		articles = append(articles, core.Article{
			ID:       fingerprint(r.URL, r.Title, core.SourceExa),
			Title:    r.Title,
			Content:  r.Text,
			URL:      r.URL,
			Source:   core.SourceExa,
			Strategy: strat.Name,
			RawDate:  r.PublishedDate,
			Authors:  authors,
		})
	}
	return articles, nil
}

func (a *ExaAdapter) defaultHits() int {
	if a.cfg.DefaultMaxHits > 0 {
		return a.cfg.DefaultMaxHits
	}
	return 25
}
