package pipeline

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/internal/scout"
	"github.com/sells-group/retrieval-cli/internal/store"
	"github.com/sells-group/retrieval-cli/internal/telemetry"
)

// RunnerOptions configures optional run behavior.
type RunnerOptions struct {
	// Store persists the run and its per-deal outcomes. Nil disables
	// persistence.
	Store store.Store

	// Session, when non-nil, gets one DealDone tick per deal and is
	// closed when the run ends.
	Session *scout.SessionKeeper

	// DelayMin/DelayMax bound the randomized pause between deals. Both
	// zero disables pausing.
	DelayMin time.Duration
	DelayMax time.Duration
}

// Runner drives a full run: deals are processed strictly one at a time,
// in input order.
type Runner struct {
	orch *Orchestrator
	tel  *telemetry.Logger
	opts RunnerOptions

	sleep func(ctx context.Context, d time.Duration)
	randn func(n int64) int64
}

// NewRunner creates a Runner over an already-wired Orchestrator.
func NewRunner(orch *Orchestrator, tel *telemetry.Logger, opts RunnerOptions) *Runner {
	return &Runner{
		orch:  orch,
		tel:   tel,
		opts:  opts,
		sleep: sleepCtx,
		randn: rand.Int63n,
	}
}

// Run processes every deal, finalizes the benchmark report, and persists
// the run record. Budget exhaustion aborts the remaining deals but still
// finalizes and persists what was processed.
func (r *Runner) Run(ctx context.Context, deals []model.Deal) (*telemetry.BenchmarkReport, error) {
	var run *model.Run
	if r.opts.Store != nil {
		created, err := r.opts.Store.CreateRun(ctx, len(deals))
		if err != nil {
			return nil, err
		}
		run = created
	}

	status := model.RunStatusComplete
	for i, deal := range deals {
		if err := ctx.Err(); err != nil {
			status = model.RunStatusAborted
			break
		}

		res, err := r.orch.ProcessDeal(ctx, deal)
		r.record(ctx, run, deal, res)

		if err != nil {
			zap.L().Error("run aborted",
				zap.String("deal_id", deal.DealID),
				zap.Int("deals_processed", i+1),
				zap.Int("deals_remaining", len(deals)-i-1),
				zap.Error(err),
			)
			status = model.RunStatusAborted
			break
		}

		if r.opts.Session != nil {
			r.opts.Session.DealDone(ctx)
		}
		if i < len(deals)-1 {
			r.pause(ctx)
		}
	}

	if r.opts.Session != nil {
		if err := r.opts.Session.Close(); err != nil {
			zap.L().Warn("session close failed", zap.Error(err))
		}
	}

	report, err := r.tel.Finalize()
	if err != nil {
		return nil, err
	}

	if run != nil {
		raw, merr := json.Marshal(report)
		if merr != nil {
			zap.L().Error("marshal run report", zap.Error(merr))
			raw = nil
		}
		if cerr := r.opts.Store.CompleteRun(ctx, run.ID, status, raw); cerr != nil {
			zap.L().Error("persist run completion", zap.String("run_id", run.ID), zap.Error(cerr))
		}
	}

	return report, nil
}

func (r *Runner) record(ctx context.Context, run *model.Run, deal model.Deal, res DealResult) {
	if run == nil {
		return
	}
	outcome := model.DealOutcome{
		RunID:          run.ID,
		DealID:         deal.DealID,
		CompanyName:    deal.CompanyName,
		Status:         res.Status,
		Outcome:        r.tel.Classify(deal.DealID, res.Status),
		APICalls:       res.APICalls,
		LLMCalls:       res.LLMCalls,
		DownloadedFile: res.DownloadedFile,
	}
	if err := r.opts.Store.RecordOutcome(ctx, outcome); err != nil {
		zap.L().Error("persist deal outcome",
			zap.String("deal_id", deal.DealID),
			zap.Error(err),
		)
	}
}

// pause sleeps a random duration within [DelayMin, DelayMax].
func (r *Runner) pause(ctx context.Context) {
	if r.opts.DelayMax <= 0 {
		return
	}
	d := r.opts.DelayMin
	if spread := r.opts.DelayMax - r.opts.DelayMin; spread > 0 {
		d += time.Duration(r.randn(int64(spread)))
	}
	r.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
