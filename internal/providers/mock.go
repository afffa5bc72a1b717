package providers

import (
	"context"

	"pharmawatch/internal/core"
)

// MockAdapter is a test double standing in for a C1 adapter: dispatch (C2)
// and pipeline (C9) tests drive it with canned per-strategy results and
// errors instead of hitting real providers, mirroring the teacher's pattern
// of stubbing search.Provider in its own tests.
type MockAdapter struct {
	SourceName  core.Source
	StrategySet []Strategy
	Results     map[string][]core.Article
	Errors      map[string]error
	Calls       []string
}

func (m *MockAdapter) Source() core.Source { return m.SourceName }

func (m *MockAdapter) Strategies(q core.Query) []Strategy { return m.StrategySet }

func (m *MockAdapter) Search(ctx context.Context, strat Strategy, q core.Query) ([]core.Article, error) {
	m.Calls = append(m.Calls, strat.Name)
	if err, ok := m.Errors[strat.Name]; ok && err != nil {
		return nil, &core.ProviderFailedError{Provider: m.SourceName, Strategy: strat.Name, Cause: err}
	}
	return m.Results[strat.Name], nil
}
