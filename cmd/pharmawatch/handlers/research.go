package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pharmawatch/internal/config"
	"pharmawatch/internal/core"
	"pharmawatch/internal/dateresolve"
	"pharmawatch/internal/dispatch"
	"pharmawatch/internal/llm"
	"pharmawatch/internal/pipeline"
	"pharmawatch/internal/providers"
	"pharmawatch/internal/recorder"
	"pharmawatch/internal/relevance"
)

const dateLayout = "2006-01-02"

var researchFlags struct {
	keywords      string
	aliasKeywords string
	startDate     string
	endDate       string
	mode          string
	engines       string
	minScore      int
	alertName     string
	user          string
}

// Response is the JSON shape printed to stdout, per spec.md §6.
type Response struct {
	Results      []core.Article `json:"results"`
	WorkflowStats core.RunStats  `json:"workflow_stats"`
	SessionID    string          `json:"session_id"`
	Error        string          `json:"error,omitempty"`
}

func newResearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research",
		Short: "run one collect-dedup-score research pass and print the JSON report",
		RunE:  runResearch,
	}

	cmd.Flags().StringVar(&researchFlags.keywords, "keywords", "", "comma-separated primary keywords (required)")
	cmd.Flags().StringVar(&researchFlags.aliasKeywords, "alias-keywords", "", "comma-separated alias keywords")
	cmd.Flags().StringVar(&researchFlags.startDate, "start-date", "", "window start, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&researchFlags.endDate, "end-date", "", "window end, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&researchFlags.mode, "mode", "standard", "search mode: standard, title, cooccurrence")
	cmd.Flags().StringVar(&researchFlags.engines, "providers", "pubmed,exa,tavily,newsapi", "comma-separated provider subset")
	cmd.Flags().IntVar(&researchFlags.minScore, "min-score", 0, "minimum relevance score to keep (0 = use configured default)")
	cmd.Flags().StringVar(&researchFlags.alertName, "alert-name", "", "label grouping this run's record")
	cmd.Flags().StringVar(&researchFlags.user, "user", "", "requesting user")

	_ = cmd.MarkFlagRequired("keywords")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")

	return cmd
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	query, err := buildQuery()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Pipeline.SoftDeadline+30*time.Second)
	defer cancel()

	p, rec, llmClient, err := wirePipeline(ctx, cfg)
	if err != nil {
		return err
	}
	if llmClient != nil {
		defer func() { _ = llmClient.Close() }()
	}
	if rec != nil {
		defer func() { _ = rec.Close() }()
	}

	articles, stats, runErr := p.Run(ctx, query)

	resp := Response{
		Results:       articles,
		WorkflowStats: stats,
		SessionID:     stats.RunID,
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// buildQuery turns the research command's flags into a core.Query.
func buildQuery() (core.Query, error) {
	primary := splitCSV(researchFlags.keywords)
	if len(primary) == 0 {
		return core.Query{}, fmt.Errorf("--keywords must contain at least one keyword")
	}

	start, err := time.Parse(dateLayout, researchFlags.startDate)
	if err != nil {
		return core.Query{}, fmt.Errorf("invalid --start-date: %w", err)
	}
	end, err := time.Parse(dateLayout, researchFlags.endDate)
	if err != nil {
		return core.Query{}, fmt.Errorf("invalid --end-date: %w", err)
	}

	mode, err := parseMode(researchFlags.mode)
	if err != nil {
		return core.Query{}, err
	}

	return core.Query{
		PrimaryKeywords:  primary,
		AliasKeywords:    splitCSV(researchFlags.aliasKeywords),
		StartDate:        start,
		EndDate:          end,
		Mode:             mode,
		EnabledProviders: parseProviders(researchFlags.engines),
		MinScore:         researchFlags.minScore,
		AlertName:        researchFlags.alertName,
		User:             researchFlags.user,
	}, nil
}

func parseMode(raw string) (core.SearchMode, error) {
	switch core.SearchMode(raw) {
	case core.ModeStandard, core.ModeTitleOnly, core.ModeCooccurrence:
		return core.SearchMode(raw), nil
	default:
		return "", fmt.Errorf("invalid --mode %q: want standard, title, or cooccurrence", raw)
	}
}

func parseProviders(raw string) []core.Source {
	names := map[string]core.Source{
		"pubmed":  core.SourcePubMed,
		"exa":     core.SourceExa,
		"tavily":  core.SourceTavily,
		"newsapi": core.SourceNewsAPI,
	}
	var out []core.Source
	for _, tok := range splitCSV(raw) {
		if src, ok := names[strings.ToLower(tok)]; ok {
			out = append(out, src)
		}
	}
	return out
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// wirePipeline constructs every collaborator the pipeline needs: the four
// provider adapters, the two Gemini-backed call shapes, and the SQLite
// recorder. Callers must Close the returned llm.Client and recorder.
func wirePipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, *recorder.Recorder, *llm.Client, error) {
	adapters := []providers.Adapter{
		providers.NewPubMedAdapter(cfg.Providers.PubMed, cfg.Pipeline),
		providers.NewExaAdapter(cfg.Providers.Exa, cfg.Pipeline),
		providers.NewTavilyAdapter(cfg.Providers.Tavily, cfg.Pipeline),
		providers.NewNewsAPIAdapter(cfg.Providers.NewsAPI, cfg.Pipeline),
	}
	d := dispatch.New(adapters, cfg.Pipeline)

	dateCfg := llm.ModelConfig{
		Name:        cfg.AI.Gemini.DateModel,
		Temperature: cfg.AI.Gemini.DateTemperature,
		MaxTokens:   cfg.AI.Gemini.DateMaxTokens,
		Timeout:     cfg.AI.Gemini.DateTimeout,
	}
	relCfg := llm.ModelConfig{
		Name:        cfg.AI.Gemini.RelevanceModel,
		Temperature: cfg.AI.Gemini.RelevanceTemperature,
		MaxTokens:   cfg.AI.Gemini.RelevanceMaxTokens,
		Timeout:     cfg.AI.Gemini.RelevanceTimeout,
	}
	llmClient, err := llm.NewClient(ctx, cfg.AI.Gemini.APIKey, dateCfg, relCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	dr := dateresolve.New(llmClient, cfg.Pipeline.DateConcurrency)
	an := relevance.NewAnalyzer(llmClient, cfg.Pipeline.RelevanceConcurrency)

	rec, err := recorder.New(cfg.App.DataDir)
	if err != nil {
		_ = llmClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to open recorder: %w", err)
	}

	p := pipeline.New(d, dr, an, cfg.Pipeline.DedupThreshold, cfg.Pipeline.MinScore, cfg.Pipeline.SoftDeadline, pipeline.WithRecorder(rec))
	return p, rec, llmClient, nil
}
