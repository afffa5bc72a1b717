package pipeline

import (
	"fmt"

	"pharmawatch/internal/core"
)

// invariantGate is a post-phase check. Unlike the teacher's blocking/
// non-blocking QualityGate (internal/pipeline/quality_gates.go), every
// invariant here is unconditionally fatal: spec.md §7 classifies
// InvariantViolation as an orchestrator bug that must surface as FAILED,
// never be silently swallowed.
type invariantGate struct {
	name  string
	check func(core.RunStats) error
}

var invariantGates = []invariantGate{
	{
		name: "collected=unique+duplicates_removed",
		check: func(s core.RunStats) error {
			if s.Collected != s.Unique+s.DuplicatesRemoved {
				return &core.InvariantViolationError{
					Invariant: "collected=unique+duplicates_removed",
					Detail:    fmt.Sprintf("%d != %d+%d", s.Collected, s.Unique, s.DuplicatesRemoved),
				}
			}
			return nil
		},
	},
	{
		name: "analyzed=kept+filtered",
		check: func(s core.RunStats) error {
			if s.Analyzed != s.Kept+s.Filtered {
				return &core.InvariantViolationError{
					Invariant: "analyzed=kept+filtered",
					Detail:    fmt.Sprintf("%d != %d+%d", s.Analyzed, s.Kept, s.Filtered),
				}
			}
			return nil
		},
	},
}

// runGate evaluates one named invariant against the accumulated stats,
// marking FAILED and returning the violation if it doesn't hold.
func runGate(name string, stats *core.RunStats) error {
	for _, g := range invariantGates {
		if g.name != name {
			continue
		}
		if err := g.check(*stats); err != nil {
			stats.State = core.StateFailed
			stats.Error = err.Error()
			return err
		}
		return nil
	}
	return nil
}
