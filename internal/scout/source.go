// Package scout discovers candidate documents for a deal by walking an
// ordered cascade of sources, stopping at the first one that produces a
// usable candidate.
package scout

import (
	"context"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// PriorityKeywords are the sub-queries issued against a docket, ordered by
// specificity. Querying stops at the first keyword that matches.
var PriorityKeywords = []string{
	"first day declaration",
	"declaration in support of first day",
	"DIP motion",
	"debtor in possession financing",
	"cash collateral",
	"capital structure",
	"prepetition debt",
	"credit agreement",
}

// DiscoverySource is one strategy in the fallback cascade.
type DiscoverySource interface {
	// Name identifies the source in telemetry and cascade config.
	Name() model.CandidateSource
	// Discover returns candidates for the deal, most preferred first.
	// Transient failures should be returned as errors; the cascade treats
	// them as "this source found nothing" and moves on.
	Discover(ctx context.Context, deal model.Deal) ([]model.CandidateDocument, error)
}

// QueryObserver receives per-query telemetry from sources. Implemented by
// the telemetry logger; a nil observer is valid.
type QueryObserver interface {
	ScoutQuery(deal model.Deal, source model.CandidateSource, query string, resultsCount, apiCalls int)
}
