// Package pipeline implements C9: the orchestrator that sequences C1
// through C8, accumulates RunStats, isolates per-component failures, and
// hands the finished run to C10.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pharmawatch/internal/core"
	"pharmawatch/internal/dateresolve"
	"pharmawatch/internal/dedup"
	"pharmawatch/internal/dispatch"
	"pharmawatch/internal/enhance"
	"pharmawatch/internal/logger"
	"pharmawatch/internal/relevance"
)

// Recorder is C10's write contract, as seen by the orchestrator. Run calls
// Record synchronously and waits for it to return before handing results
// back, so persistence is acknowledged first; recording does not run in the
// background.
type Recorder interface {
	Record(ctx context.Context, record core.RunRecord) error
}

// Pipeline wires together one instance of every stage. Adapters are
// supplied to the Dispatcher at construction; the Pipeline itself only
// drives the C2-C8 sequence.
type Pipeline struct {
	dispatcher     *dispatch.Dispatcher
	dateResolver   *dateresolve.Resolver
	analyzer       *relevance.Analyzer
	recorder       Recorder
	dedupThreshold float64
	minScore       int
	softDeadline   time.Duration
}

type Option func(*Pipeline)

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func New(d *dispatch.Dispatcher, dr *dateresolve.Resolver, an *relevance.Analyzer, dedupThreshold float64, minScore int, softDeadline time.Duration, opts ...Option) *Pipeline {
	p := &Pipeline{
		dispatcher:     d,
		dateResolver:   dr,
		analyzer:       an,
		dedupThreshold: dedupThreshold,
		minScore:       minScore,
		softDeadline:   softDeadline,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives C2 through C8 for one Query and returns the display article
// list alongside the accumulated RunStats. Any InvariantViolation aborts
// the run and returns a FAILED RunStats; provider/model failures never do
// — they're isolated per-item/per-strategy upstream of here.
func (p *Pipeline) Run(ctx context.Context, q core.Query) ([]core.Article, core.RunStats, error) {
	if p.softDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.softDeadline)
		defer cancel()
	}

	stats := core.NewRunStats()
	runID := newRunID()
	stats.RunID = runID
	start := time.Now()

	minScore := q.MinScore
	if minScore <= 0 {
		minScore = p.minScore
	}

	// C2 -> C1: collection.
	stats.State = core.StateCollecting
	phaseStart := time.Now()
	dispatchResult := p.dispatcher.Run(ctx, q)
	stats.PhaseTimings["collecting"] = time.Since(phaseStart)
	stats.Collected = len(dispatchResult.Articles)
	stats.Strategies = dispatchResult.Details

	if cancelled, rec, err := p.checkCancelled(ctx, &stats, q, runID, start, nil); cancelled {
		return rec, stats, err
	}

	// C3: dedup.
	stats.State = core.StateDeduping
	phaseStart = time.Now()
	dedupResult := dedup.Dedup(dispatchResult.Articles, p.dedupThreshold)
	stats.PhaseTimings["deduping"] = time.Since(phaseStart)
	stats.Unique = len(dedupResult.Kept)
	stats.DuplicatesRemoved = dedupResult.DuplicatesRemoved
	for _, g := range dedupResult.Groups {
		if len(g.Members) > 1 {
			stats.DuplicateGroups++
		}
	}
	if err := runGate("collected=unique+duplicates_removed", &stats); err != nil {
		p.record(ctx, core.RunRecord{ID: runID, Timestamp: start, AlertName: q.AlertName, User: q.User, Keywords: q.AllKeywords(), StartDate: q.StartDate, EndDate: q.EndDate, Mode: q.Mode, Stats: stats, Error: stats.Error})
		return nil, stats, err
	}

	if cancelled, rec, err := p.checkCancelled(ctx, &stats, q, runID, start, nil); cancelled {
		return rec, stats, err
	}

	// C4: date resolution.
	stats.State = core.StateResolvingDates
	phaseStart = time.Now()
	dated := p.dateResolver.Resolve(ctx, dedupResult.Kept)
	stats.PhaseTimings["resolving_dates"] = time.Since(phaseStart)
	for _, a := range dated {
		if a.HasDate {
			stats.WithDates++
		} else {
			stats.WithoutDates++
		}
		if a.DateOrigin == core.DateOriginModel {
			stats.ModelExtracted++
		}
	}

	if cancelled, rec, err := p.checkCancelled(ctx, &stats, q, runID, start, nil); cancelled {
		return rec, stats, err
	}

	// C5: date-window filter.
	stats.State = core.StateFilteringDates
	phaseStart = time.Now()
	inRange := make([]core.Article, 0, len(dated))
	for _, a := range dated {
		if !a.HasDate || !withinWindow(a.ResolvedDate, q.StartDate, q.EndDate) {
			stats.OutOfRange++
			continue
		}
		inRange = append(inRange, a)
		stats.InRange++
		if a.DateOrigin == core.DateOriginModel {
			stats.ModelRescued++
		}
	}
	stats.PhaseTimings["filtering_dates"] = time.Since(phaseStart)

	if cancelled, rec, err := p.checkCancelled(ctx, &stats, q, runID, start, nil); cancelled {
		return rec, stats, err
	}

	// C6: relevance analysis.
	stats.State = core.StateAnalyzing
	phaseStart = time.Now()
	analyzed := p.analyzer.Analyze(ctx, inRange, q)
	stats.PhaseTimings["analyzing"] = time.Since(phaseStart)
	stats.Analyzed = len(analyzed)
	stats.ScoreMin, stats.ScoreMax, stats.ScoreAvg = scoreMinMaxAvg(analyzed)

	if cancelled, rec, err := p.checkCancelled(ctx, &stats, q, runID, start, nil); cancelled {
		return rec, stats, err
	}

	// C7: relevance filter.
	stats.State = core.StateFilteringScores
	phaseStart = time.Now()
	kept, bands := relevance.Filter(analyzed, minScore)
	stats.PhaseTimings["filtering_scores"] = time.Since(phaseStart)
	stats.Kept = len(kept)
	stats.Filtered = stats.Analyzed - stats.Kept
	stats.ScoreBands = bands
	if err := runGate("analyzed=kept+filtered", &stats); err != nil {
		p.record(ctx, core.RunRecord{ID: runID, Timestamp: start, AlertName: q.AlertName, User: q.User, Keywords: q.AllKeywords(), StartDate: q.StartDate, EndDate: q.EndDate, Mode: q.Mode, Stats: stats, Error: stats.Error})
		return nil, stats, err
	}

	// C8: enhancement.
	stats.State = core.StateEnhancing
	phaseStart = time.Now()
	enhanced := enhance.Enhance(kept, q)
	sortFinal(enhanced)
	stats.PhaseTimings["enhancing"] = time.Since(phaseStart)

	stats.ByProvider = buildProviderAggregates(dispatchResult.Details, enhanced)
	stats.State = core.StateDone

	record := core.RunRecord{
		ID:        runID,
		Timestamp: start,
		AlertName: q.AlertName,
		User:      q.User,
		Keywords:  q.AllKeywords(),
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Mode:      q.Mode,
		Stats:     stats,
		Success:   true,
	}
	p.record(ctx, record)

	logger.Info("pipeline run complete", "run_id", runID, "collected", stats.Collected, "kept", stats.Kept, "elapsed_ms", time.Since(start).Milliseconds())
	return enhanced, stats, nil
}

// checkCancelled marks the run CANCELLED and builds its (still coherent,
// per spec.md §4.9) partial record if ctx has been cancelled. Returns
// (false, nil, nil) when the run should continue.
func (p *Pipeline) checkCancelled(ctx context.Context, stats *core.RunStats, q core.Query, runID string, start time.Time, partial []core.Article) (bool, []core.Article, error) {
	select {
	case <-ctx.Done():
		stats.State = core.StateCancelled
		stats.Error = ctx.Err().Error()
		record := core.RunRecord{
			ID:        runID,
			Timestamp: start,
			AlertName: q.AlertName,
			User:      q.User,
			Keywords:  q.AllKeywords(),
			StartDate: q.StartDate,
			EndDate:   q.EndDate,
			Mode:      q.Mode,
			Stats:     *stats,
			Success:   false,
			Error:     stats.Error,
		}
		p.record(context.Background(), record)
		return true, partial, ctx.Err()
	default:
		return false, nil, nil
	}
}

// record hands the run to C10 on the calling goroutine and waits for the
// acknowledgement, so Run's return is delayed until the recorder returns.
// A recorder error is logged, not returned.
func (p *Pipeline) record(ctx context.Context, record core.RunRecord) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, record); err != nil {
		logger.Error("failed to record run", err, "run_id", record.ID)
	}
}

func newRunID() string {
	return uuid.NewString()
}
