// Package pipeline sequences discovery, gating, and fetching for each deal
// and records exactly one terminal status per deal.
package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/budget"
	"github.com/sells-group/retrieval-cli/internal/dataset"
	"github.com/sells-group/retrieval-cli/internal/fetcher"
	"github.com/sells-group/retrieval-cli/internal/gatekeeper"
	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/internal/scout"
	"github.com/sells-group/retrieval-cli/internal/telemetry"
)

// maxGatekeeperCandidates caps how many candidates are scored per deal
// before the deal is skipped.
const maxGatekeeperCandidates = 3

// Orchestrator runs one deal through the state machine:
// exclusion check, scouting, gatekeeping, fetching, terminal.
type Orchestrator struct {
	exclusions *dataset.ExclusionList
	scout      *scout.Scout
	gate       *gatekeeper.Gatekeeper
	fetch      *fetcher.Fetcher
	tel        *telemetry.Logger
	tracker    *budget.Tracker

	// DryRun stops short of downloading: a DOWNLOAD verdict is recorded
	// without touching the wire.
	DryRun bool
}

// New wires an Orchestrator from its collaborators.
func New(
	exclusions *dataset.ExclusionList,
	sc *scout.Scout,
	gate *gatekeeper.Gatekeeper,
	fetch *fetcher.Fetcher,
	tel *telemetry.Logger,
	tracker *budget.Tracker,
) *Orchestrator {
	return &Orchestrator{
		exclusions: exclusions,
		scout:      sc,
		gate:       gate,
		fetch:      fetch,
		tel:        tel,
		tracker:    tracker,
	}
}

// DealResult is what one deal's processing produced.
type DealResult struct {
	Status         model.TerminalStatus
	APICalls       int
	LLMCalls       int
	DownloadedFile string
}

// ProcessDeal runs one deal to its terminal status. The returned error is
// non-nil only for budget exhaustion, which is fatal to the run; every
// other failure is contained and mapped to a terminal status. The deal's
// PIPELINE_TERMINAL event is always written, even on the fatal path.
func (o *Orchestrator) ProcessDeal(ctx context.Context, deal model.Deal) (DealResult, error) {
	o.tel.StartDeal(deal.DealID)

	// Exclusion check runs before anything that could touch the network.
	if match := o.exclusions.Check(deal); match.Matched {
		o.tel.ExclusionSkip(deal, match.Rule)
		res := DealResult{Status: model.StatusAlreadyProcessed}
		o.terminal(deal, res)
		return res, nil
	}

	usedBefore, _ := o.tracker.Used()
	res, err := o.processActive(ctx, deal)
	usedAfter, _ := o.tracker.Used()
	res.APICalls = usedAfter - usedBefore

	o.terminal(deal, res)

	if err != nil {
		// Budget exhaustion: the deal's partial state is already flushed.
		return res, err
	}
	return res, nil
}

// processActive covers SCOUTING through FETCHING. Unexpected errors and
// panics map to NOT_FOUND rather than aborting the run.
func (o *Orchestrator) processActive(ctx context.Context, deal model.Deal) (res DealResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("recovered panic while processing deal",
				zap.String("deal_id", deal.DealID),
				zap.Any("panic", r),
			)
			res = DealResult{Status: model.StatusNotFound}
			err = nil
		}
	}()

	candidates, err := o.scout.Discover(ctx, deal)
	if err != nil {
		if errors.Is(err, budget.ErrExhausted) {
			res.Status = model.StatusNotFound
			return res, err
		}
		zap.L().Error("discovery failed",
			zap.String("deal_id", deal.DealID),
			zap.Error(err),
		)
		res.Status = model.StatusNotFound
		return res, nil
	}
	if len(candidates) == 0 {
		res.Status = model.StatusNotFound
		return res, nil
	}

	var approved *model.CandidateDocument
	for i := range candidates {
		if i >= maxGatekeeperCandidates {
			break
		}
		candidate := candidates[i]

		verdict := o.gate.Evaluate(ctx, candidate)
		res.LLMCalls++
		o.tel.GatekeeperDecision(deal, candidate, verdict)

		if verdict.Verdict == model.VerdictDownload {
			approved = &candidate
			break
		}
	}
	if approved == nil {
		res.Status = model.StatusSkipped
		return res, nil
	}

	if o.DryRun {
		o.tel.FetchResult(deal, model.FetchResult{Success: true}, "dry-run")
		res.Status = model.StatusDownloaded
		return res, nil
	}

	fetchRes := o.fetch.Fetch(ctx, approved.ResolvedPDFURL, deal.DealID)
	o.tel.FetchResult(deal, fetchRes, string(approved.Source))
	if !fetchRes.Success {
		res.Status = model.StatusFetchFailed
		return res, nil
	}

	res.Status = model.StatusDownloaded
	res.DownloadedFile = fetchRes.LocalPath
	return res, nil
}

func (o *Orchestrator) terminal(deal model.Deal, res DealResult) {
	o.tel.PipelineTerminal(deal, res.Status, res.APICalls, res.LLMCalls, res.DownloadedFile)
}
