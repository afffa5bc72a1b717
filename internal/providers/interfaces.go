// Package providers implements the C1 adapters: PubMed, Exa, Tavily, and
// NewsAPI. Each adapter normalizes its provider's native response shape onto
// core.Article and never raises to the dispatcher — failures come back as a
// core.ProviderFailedError value, never a panic.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"pharmawatch/internal/core"
)

// Strategy names one query variant an adapter can run. Params carries
// whatever the adapter needs to distinguish variants (domain sets, keyword
// subset, search mode) without the dispatcher needing to know adapter
// internals.
type Strategy struct {
	Name   string
	Params map[string]string
}

// Adapter is the C1 capability every provider implements: given a strategy
// and a query, run one request cycle and return normalized articles.
// Modeled on the teacher's search.Provider interface (Search/GetName), split
// so the dispatcher (C2) can ask for an adapter's strategy set before
// running any of them.
type Adapter interface {
	Source() core.Source
	Strategies(q core.Query) []Strategy
	Search(ctx context.Context, strat Strategy, q core.Query) ([]core.Article, error)
}

// fingerprint derives a stable article ID from its URL, falling back to a
// hash of source+title when the provider omitted a URL. Never random, so the
// same article collected twice (across strategies or runs) gets the same ID.
func fingerprint(url, title string, source core.Source) string {
	basis := url
	if basis == "" {
		basis = string(source) + "|" + title
	}
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])[:20]
}
