package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/budget"
	"github.com/sells-group/retrieval-cli/internal/dataset"
	"github.com/sells-group/retrieval-cli/internal/fetcher"
	"github.com/sells-group/retrieval-cli/internal/gatekeeper"
	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/internal/pipeline"
	"github.com/sells-group/retrieval-cli/internal/scout"
	"github.com/sells-group/retrieval-cli/internal/telemetry"
	"github.com/sells-group/retrieval-cli/pkg/courtlistener"
	"github.com/sells-group/retrieval-cli/pkg/llm"
)

var (
	runDealsPath       string
	runGroundTruthPath string
	runExclusionsPath  string
	runDealID          string
	runLimit           int
	runDryRun          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a deal list through the retrieval pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		deals, err := dataset.LoadDeals(runDealsPath)
		if err != nil {
			return eris.Wrap(err, "load deals")
		}
		deals = selectDeals(deals)
		if len(deals) == 0 {
			return eris.New("no deals selected")
		}

		var groundTruth model.GroundTruth
		if runGroundTruthPath != "" {
			groundTruth, err = dataset.LoadGroundTruth(runGroundTruthPath)
			if err != nil {
				return eris.Wrap(err, "load ground truth")
			}
		}

		exclusions := dataset.NewExclusionList()
		if runExclusionsPath != "" {
			exclusions, err = dataset.LoadExclusionList(runExclusionsPath)
			if err != nil {
				return eris.Wrap(err, "load exclusions")
			}
		}

		tel, err := telemetry.NewLogger(cfg.Telemetry.LogDir, groundTruth)
		if err != nil {
			return eris.Wrap(err, "init telemetry")
		}
		defer tel.Close()

		tracker, err := budget.NewTracker(cfg.Budget.StateFile, cfg.Budget.MaxCallsPerDay)
		if err != nil {
			return eris.Wrap(err, "init budget tracker")
		}
		tracker.OnWarning = tel.BudgetWarning

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		clClient := courtlistener.NewClient(cfg.CourtListener.Token, tracker,
			courtlistener.WithBaseURL(cfg.CourtListener.BaseURL),
			courtlistener.WithSearchURL(cfg.CourtListener.SearchURL),
			courtlistener.WithRequestsPerSecond(cfg.CourtListener.RequestsPerSecond),
		)

		gate := gatekeeper.New(llm.NewClient(cfg.Gatekeeper.Key), gatekeeper.Options{
			Model:          cfg.Gatekeeper.Model,
			ScoreThreshold: cfg.Gatekeeper.ScoreThreshold,
			MaxTokens:      int64(cfg.Gatekeeper.MaxTokens),
			Timeout:        time.Duration(cfg.Gatekeeper.TimeoutSecs) * time.Second,
		})

		fetch := fetcher.New(fetcher.Options{
			DownloadDir:      cfg.Fetcher.DownloadDir,
			MaxDocumentBytes: cfg.Fetcher.MaxDocumentBytes,
			StorageBaseURL:   cfg.Fetcher.StorageBaseURL,
			Timeout:          time.Duration(cfg.Fetcher.TimeoutSecs) * time.Second,
		})

		sc, keeper, err := initScout(clClient, tel)
		if err != nil {
			return err
		}

		orch := pipeline.New(exclusions, sc, gate, fetch, tel, tracker)
		orch.DryRun = runDryRun

		runner := pipeline.NewRunner(orch, tel, pipeline.RunnerOptions{
			Store:    st,
			Session:  keeper,
			DelayMin: time.Duration(cfg.Scout.InterDealDelayMinMS) * time.Millisecond,
			DelayMax: time.Duration(cfg.Scout.InterDealDelayMaxMS) * time.Millisecond,
		})

		zap.L().Info("run starting",
			zap.Int("deals", len(deals)),
			zap.Bool("dry_run", runDryRun),
			zap.Int("budget_remaining", tracker.Remaining()),
		)

		report, err := runner.Run(ctx, deals)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		report.PrintSummary(os.Stdout)

		if leaked := report.AlreadyProcessedIncorrectlyProcessed; leaked > 0 {
			return eris.Errorf("exclusion audit failed: %d pre-processed deals leaked through", leaked)
		}
		if !report.CountIntegrityOK {
			return eris.New("count integrity audit failed: classified deals do not sum to active deals")
		}
		return nil
	},
}

// selectDeals applies the --deal-id and --limit filters.
func selectDeals(deals []model.Deal) []model.Deal {
	if runDealID != "" {
		for _, d := range deals {
			if d.DealID == runDealID {
				return []model.Deal{d}
			}
		}
		return nil
	}
	if runLimit > 0 && runLimit < len(deals) {
		return deals[:runLimit]
	}
	return deals
}

// newBrowserSession is set by builds that ship a concrete claims-agent
// driver. When nil the cascade runs on the CourtListener sources alone.
var newBrowserSession func() (scout.BrowserSession, error)

// initScout builds the discovery cascade. The claims-agent browser source
// joins the cascade only when a session implementation is registered.
func initScout(client courtlistener.Client, tel *telemetry.Logger) (*scout.Scout, *scout.SessionKeeper, error) {
	guard, err := scout.NewURLGuard(cfg.Scout.AllowedDomainPatterns)
	if err != nil {
		return nil, nil, eris.Wrap(err, "compile domain patterns")
	}

	sources := []scout.DiscoverySource{
		scout.NewAPISource(client, cfg.Scout.MaxKeywordQueriesPerDeal, tel),
		scout.NewFulltextSource(client, cfg.Scout.MaxKeywordQueriesPerDeal, tel),
	}

	var keeper *scout.SessionKeeper
	if newBrowserSession != nil {
		session, err := newBrowserSession()
		if err != nil {
			return nil, nil, eris.Wrap(err, "start browser session")
		}
		sources = append(sources, scout.NewClaimsAgentSource(session, tel))
		keeper = scout.NewSessionKeeper(session, cfg.Scout.SessionCheckEvery, tel)
	}

	if cfg.Scout.CascadeFile != "" {
		order, err := scout.LoadCascadeOrder(cfg.Scout.CascadeFile)
		if err != nil {
			return nil, nil, eris.Wrap(err, "load cascade order")
		}
		sources = scout.OrderSources(sources, order)
		if len(sources) == 0 {
			return nil, nil, eris.New("cascade order leaves no usable sources")
		}
	}

	sc := scout.New(sources, guard, tel)
	sc.SetDateGuardDays(cfg.Scout.DateGuardDays)
	return sc, keeper, nil
}

func init() {
	runCmd.Flags().StringVar(&runDealsPath, "deals", "", "deal list file, .xlsx or .json (required)")
	runCmd.Flags().StringVar(&runGroundTruthPath, "ground-truth", "", "ground truth JSON for benchmark scoring")
	runCmd.Flags().StringVar(&runExclusionsPath, "exclusions", "", "exclusion list JSON, merged with built-in exclusions")
	runCmd.Flags().StringVar(&runDealID, "deal-id", "", "process a single deal by ID")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "process only the first N deals")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "stop short of downloading documents")
	_ = runCmd.MarkFlagRequired("deals")
	rootCmd.AddCommand(runCmd)
}
