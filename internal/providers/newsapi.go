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

	"pharmawatch/internal/config"
	"pharmawatch/internal/core"
)

// NewsAPIAdapter calls the "everything" endpoint. Per spec.md §9's Open
// Question decision (recorded in DESIGN.md), the "expanded keywords" variant
// is an always-run explicit second strategy, not a hidden zero-results
// fallback — dedup removes any overlap with the primary strategy.
type NewsAPIAdapter struct {
	cfg    config.NewsAPIConfig
	pl     config.Pipeline
	client *http.Client
}

func NewNewsAPIAdapter(cfg config.NewsAPIConfig, pl config.Pipeline) *NewsAPIAdapter {
	timeout := pl.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NewsAPIAdapter{cfg: cfg, pl: pl, client: &http.Client{Timeout: timeout}}
}

func (a *NewsAPIAdapter) Source() core.Source { return core.SourceNewsAPI }

func (a *NewsAPIAdapter) Strategies(q core.Query) []Strategy {
	return []Strategy{
		{Name: "primary", Params: map[string]string{"keywords": "primary"}},
		{Name: "expanded", Params: map[string]string{"keywords": "all"}},
	}
}

type newsAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Content     string `json:"content"`
		PublishedAt string `json:"publishedAt"`
		Author      string `json:"author"`
	} `json:"articles"`
}

func (a *NewsAPIAdapter) Search(ctx context.Context, strat Strategy, q core.Query) ([]core.Article, error) {
	keywords := q.PrimaryKeywords
	if strat.Params["keywords"] == "all" {
		keywords = q.AllKeywords()
	}

	from, to := a.clampWindow(q)
	params := url.Values{}
	params.Set("q", newsAPIQuery(keywords))
	params.Set("apiKey", a.cfg.APIKey)
	params.Set("language", a.language())
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", "100")
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	reqURL := strings.TrimRight(a.cfg.BaseURL, "/") + "/everything?" + params.Encode()
	resp, err := withRetry(ctx, a.pl, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		return a.client.Do(req)
	})
	if err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourceNewsAPI, Strategy: strat.Name, Cause: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourceNewsAPI, Strategy: strat.Name, Cause: err}
	}

	var parsed newsAPIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &core.ProviderFailedError{Provider: core.SourceNewsAPI, Strategy: strat.Name, Cause: fmt.Errorf("decode: %w", err)}
	}
	if parsed.Status != "" && parsed.Status != "ok" {
		return nil, &core.ProviderFailedError{Provider: core.SourceNewsAPI, Strategy: strat.Name, Cause: fmt.Errorf("newsapi error: %s", parsed.Message)}
	}

	articles := make([]core.Article, 0, len(parsed.Articles))
	for _, r := range parsed.Articles {
		content := r.Description
		if r.Content != "" {
			if content != "" {
				content += "\n\n"
			}
			content += r.Content
		}
		authors := []string(nil)
		if r.Author != "" {
			authors = []string{r.Author}
		}
		articles = append(articles, core.Article{
			ID:       fingerprint(r.URL, r.Title, core.SourceNewsAPI),
			Title:    r.Title,
			Content:  content,
			URL:      r.URL,
			Source:   core.SourceNewsAPI,
			Strategy: strat.Name,
			RawDate:  r.PublishedAt,
			Authors:  authors,
		})
	}
	return articles, nil
}

func (a *NewsAPIAdapter) language() string {
	if a.cfg.Language != "" {
		return a.cfg.Language
	}
	return "en"
}

// clampWindow bounds the requested window to the provider's maximum
// historical reach (spec.md §4.1: "clamped to the provider's maximum
// historical reach").
func (a *NewsAPIAdapter) clampWindow(q core.Query) (time.Time, time.Time) {
	maxReach := a.cfg.MaxReachDays
	if maxReach <= 0 {
		maxReach = 30
	}
	earliest := time.Now().AddDate(0, 0, -maxReach)
	from := q.StartDate
	if from.Before(earliest) {
		from = earliest
	}
	return from, q.EndDate
}

func newsAPIQuery(keywords []string) string {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		quoted = append(quoted, fmt.Sprintf("%q", kw))
	}
	return strings.Join(quoted, " OR ")
}
