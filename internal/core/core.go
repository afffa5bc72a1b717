// Package core holds the data model shared across every pipeline stage:
// the Article that flows from collection through enhancement, the Query a
// caller submits, and the RunStats/RunRecord that summarize a completed run.
package core

import (
	"fmt"
	"time"
)

// Source identifies which provider produced an article.
type Source string

const (
	SourcePubMed  Source = "PUBMED"
	SourceExa     Source = "EXA"
	SourceTavily  Source = "TAVILY"
	SourceNewsAPI Source = "NEWSAPI"
)

// DateOrigin records which tier of the date resolver (C4) set ResolvedDate.
type DateOrigin string

const (
	DateOriginMetadata DateOrigin = "METADATA"
	DateOriginModel    DateOrigin = "MODEL"
	DateOriginRegex    DateOrigin = "REGEX"
	DateOriginNone     DateOrigin = "NONE"
)

// SearchMode affects strategy generation in the dispatcher (C2).
type SearchMode string

const (
	ModeStandard     SearchMode = "standard"
	ModeTitleOnly    SearchMode = "title"
	ModeCooccurrence SearchMode = "cooccurrence"
)

// Article is mutable through the pipeline; each stage owns it exclusively
// for the duration of its pass and hands it to the next stage, or drops it.
type Article struct {
	ID      string `json:"id"` // stable fingerprint derived from URL, falls back to source+title hash
	Title   string `json:"title"`
	Content string `json:"content"`

	HighlightedContent string `json:"highlighted_content,omitempty"` // set by C8, empty until then

	URL      string `json:"url"`
	Source   Source `json:"source"`
	Strategy string `json:"strategy"` // query-variant tag that produced this article

	RawDate      string     `json:"raw_date,omitempty"`
	ResolvedDate time.Time  `json:"resolved_date,omitempty"`
	HasDate      bool       `json:"has_date"`
	DateOrigin   DateOrigin `json:"date_origin"`

	RelevanceScore       int      `json:"relevance_score"`
	RelevanceReason      string   `json:"relevance_reason,omitempty"`
	ArticleType          string   `json:"article_type,omitempty"`
	MentionedKeywords    []string `json:"mentioned_keywords,omitempty"`
	ClinicalSignificance string   `json:"clinical_significance,omitempty"`
	RegulatoryImpact     string   `json:"regulatory_impact,omitempty"`
	MarketImpact         string   `json:"market_impact,omitempty"`
	Summary              string   `json:"summary,omitempty"`

	Authors []string `json:"authors,omitempty"` // used by C3's representative-selection tiebreak
}

// Query is the caller-supplied request to the orchestrator (C9).
type Query struct {
	PrimaryKeywords []string
	AliasKeywords   []string

	StartDate time.Time
	EndDate   time.Time

	Mode SearchMode

	EnabledProviders []Source

	MinScore int // 0 means "use the configured default"

	AlertName string // opaque label used by C10 to group run records
	User      string
}

// AllKeywords returns the union of primary and alias keywords, order
// preserved, duplicates collapsed case-insensitively.
func (q Query) AllKeywords() []string {
	seen := make(map[string]bool, len(q.PrimaryKeywords)+len(q.AliasKeywords))
	out := make([]string, 0, len(q.PrimaryKeywords)+len(q.AliasKeywords))
	for _, list := range [][]string{q.PrimaryKeywords, q.AliasKeywords} {
		for _, kw := range list {
			key := normalizeKeyword(kw)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, kw)
		}
	}
	return out
}

func normalizeKeyword(kw string) string {
	out := make([]rune, 0, len(kw))
	for _, r := range kw {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	start, end := 0, len(out)
	for start < end && (out[start] == ' ' || out[start] == '\t') {
		start++
	}
	for end > start && (out[end-1] == ' ' || out[end-1] == '\t') {
		end--
	}
	return string(out[start:end])
}

// ScoreBand buckets relevance scores for RunStats histograms (C7).
type ScoreBand string

const (
	BandCritical  ScoreBand = "80+"
	BandImportant ScoreBand = "60-79"
	BandModerate  ScoreBand = "40-59"
	BandLow       ScoreBand = "<40"
)

// Band classifies a relevance score into one of the fixed bands.
func Band(score int) ScoreBand {
	switch {
	case score >= 80:
		return BandCritical
	case score >= 60:
		return BandImportant
	case score >= 40:
		return BandModerate
	default:
		return BandLow
	}
}

// StrategyDetail is one row of C2's per-strategy attribution, folded into
// RunStats and persisted in the eventual RunRecord (C10).
type StrategyDetail struct {
	Provider           Source
	Strategy           string
	Retrieved          int
	AfterDedup         int
	InRange            int
	ScoreBands         map[ScoreBand]int
	UniqueContribution int // articles only this strategy ever surfaced
	Elapsed            time.Duration
	Error              string
}

// ProviderAggregate summarizes one provider's contribution across all its
// strategies, for RunStats and the RunRecord.
type ProviderAggregate struct {
	Retrieved          int
	AfterDedup         int
	UniqueContribution int
	DuplicateRate      float64
	AvgScore           float64
	Kept               int
	Elapsed            time.Duration
}

// RunState is the orchestrator's pipeline state machine (C9).
type RunState string

const (
	StateInit            RunState = "INIT"
	StateCollecting      RunState = "COLLECTING"
	StateDeduping        RunState = "DEDUPING"
	StateResolvingDates  RunState = "RESOLVING_DATES"
	StateFilteringDates  RunState = "FILTERING_DATES"
	StateAnalyzing       RunState = "ANALYZING"
	StateFilteringScores RunState = "FILTERING_SCORES"
	StateEnhancing       RunState = "ENHANCING"
	StateDone            RunState = "DONE"
	StateCancelled       RunState = "CANCELLED"
	StateFailed          RunState = "FAILED"
)

// RunStats accumulates counters across every pipeline stage. The
// orchestrator (C9) is the sole mutator; every other component returns
// values C9 folds in, so no locking is needed on this struct itself.
type RunStats struct {
	RunID string

	Collected         int
	Unique            int
	DuplicatesRemoved int
	DuplicateGroups   int

	WithDates      int
	WithoutDates   int
	ModelExtracted int

	InRange      int
	OutOfRange   int
	ModelRescued int

	Analyzed int
	Kept     int
	Filtered int

	ScoreMin   int
	ScoreMax   int
	ScoreAvg   float64
	ScoreBands map[ScoreBand]int

	ByProvider map[Source]*ProviderAggregate
	Strategies []StrategyDetail

	PhaseTimings map[string]time.Duration

	State RunState
	Error string
}

// NewRunStats returns a zero-valued RunStats with its maps initialized.
func NewRunStats() RunStats {
	return RunStats{
		State:        StateInit,
		ByProvider:   make(map[Source]*ProviderAggregate),
		ScoreBands:   make(map[ScoreBand]int),
		PhaseTimings: make(map[string]time.Duration),
	}
}

// RunRecord is the single wide row appended to the metadata log (C10)
// after a pipeline run. Created once per invocation, written exactly once.
type RunRecord struct {
	ID        string
	Timestamp time.Time
	AlertName string
	User      string

	Keywords  []string
	StartDate time.Time
	EndDate   time.Time
	Mode      SearchMode

	Stats RunStats

	Success bool
	Error   string
}

// Error kinds for the taxonomy below. ProviderFailedError and
// ModelMalformedResponseError carry a Cause and expose it through Unwrap, so
// callers can still errors.Is/errors.As through to the root problem;
// ConfigurationMissingError and InvariantViolationError carry no cause.
type ConfigurationMissingError struct {
	Field string
}

func (e *ConfigurationMissingError) Error() string {
	return fmt.Sprintf("configuration missing: %s", e.Field)
}

type ProviderFailedError struct {
	Provider Source
	Strategy string
	Cause    error
}

func (e *ProviderFailedError) Error() string {
	return fmt.Sprintf("provider %s strategy %q failed: %v", e.Provider, e.Strategy, e.Cause)
}

func (e *ProviderFailedError) Unwrap() error { return e.Cause }

type ModelMalformedResponseError struct {
	Stage string // "date_extraction" or "relevance_analysis"
	Raw   string
	Cause error
}

func (e *ModelMalformedResponseError) Error() string {
	return fmt.Sprintf("model returned malformed response during %s: %v", e.Stage, e.Cause)
}

func (e *ModelMalformedResponseError) Unwrap() error { return e.Cause }

type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated (%s): %s", e.Invariant, e.Detail)
}
