package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// BenchmarkReport is computed once at run end and written once.
type BenchmarkReport struct {
	RunTimestampUTC string `json:"run_timestamp_utc"`

	DealsTotal            int `json:"deals_total"`
	DealsAlreadyProcessed int `json:"deals_already_processed"`
	DealsActive           int `json:"deals_active"`

	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
	Unclassified   int `json:"unclassified"`

	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F1Score         float64 `json:"f1_score"`
	Coverage        float64 `json:"coverage"`
	DecoyFilterRate float64 `json:"decoy_filter_rate"`
	APIEfficiency   float64 `json:"api_efficiency"`

	TotalAPICalls           int     `json:"total_api_calls"`
	TotalLLMGatekeeperCalls int     `json:"total_llm_gatekeeper_calls"`
	TotalRuntimeSeconds     float64 `json:"total_runtime_seconds"`

	AlreadyProcessedCorrectlyExcluded    int `json:"already_processed_correctly_excluded"`
	AlreadyProcessedIncorrectlyProcessed int `json:"already_processed_incorrectly_processed"`

	CountIntegrityOK bool `json:"count_integrity_ok"`
}

// Classify scores one terminal status against ground truth. A ground-truth
// already_processed mark wins over whatever the pipeline did.
func (l *Logger) Classify(dealID string, status model.TerminalStatus) model.Outcome {
	return classify(l.groundTruth, dealID, status)
}

func classify(groundTruth model.GroundTruth, dealID string, status model.TerminalStatus) model.Outcome {
	truth, ok := groundTruth[dealID]
	if !ok {
		zap.L().Warn("deal missing from ground truth", zap.String("deal_id", dealID))
		return model.OutcomeUnclassified
	}

	if truth.AlreadyProcessed {
		return model.OutcomeAlreadyProcessed
	}

	switch status {
	case model.StatusDownloaded:
		if truth.HasFinancialData {
			return model.OutcomeTruePositive
		}
		return model.OutcomeFalsePositive
	case model.StatusSkipped, model.StatusNotFound:
		if truth.HasFinancialData {
			return model.OutcomeFalseNegative
		}
		return model.OutcomeTrueNegative
	case model.StatusFetchFailed:
		// Discovery and gating approved it but the download failed. The
		// pipeline tried and was right to, so the miss counts against recall.
		if truth.HasFinancialData {
			return model.OutcomeFalseNegative
		}
		return model.OutcomeTrueNegative
	default:
		return model.OutcomeUnclassified
	}
}

// Finalize classifies every recorded outcome, computes metrics, and writes
// benchmark_report.json. Call once at the very end of a run.
func (l *Logger) Finalize() (*BenchmarkReport, error) {
	l.mu.Lock()
	outcomes := make(map[string]model.TerminalStatus, len(l.outcomes))
	for k, v := range l.outcomes {
		outcomes[k] = v
	}
	apiCalls := l.apiCallsTotal
	llmCalls := l.llmCallsTotal
	runStart := l.runStart
	l.mu.Unlock()

	report := computeReport(outcomes, l.groundTruth, apiCalls, llmCalls, l.nowFunc().Sub(runStart), l.nowFunc())

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: marshal report")
	}
	if err := os.WriteFile(l.reportPath, data, 0o644); err != nil {
		return nil, eris.Wrap(err, "telemetry: write report")
	}

	zap.L().Info("benchmark complete",
		zap.Float64("f1", report.F1Score),
		zap.Float64("precision", report.Precision),
		zap.Float64("recall", report.Recall),
		zap.Int("tp", report.TruePositives), zap.Int("fp", report.FalsePositives),
		zap.Int("fn", report.FalseNegatives), zap.Int("tn", report.TrueNegatives),
	)
	if report.AlreadyProcessedIncorrectlyProcessed > 0 {
		zap.L().Error("exclusion audit failure: already-processed deals leaked through the pipeline",
			zap.Int("leaked", report.AlreadyProcessedIncorrectlyProcessed),
		)
	}
	if !report.CountIntegrityOK {
		zap.L().Error("count integrity audit failure: classifications do not sum to deals processed")
	}

	return report, nil
}

// computeReport classifies outcomes and derives every benchmark metric.
// Shared by the live Finalize path and log replay.
func computeReport(
	outcomes map[string]model.TerminalStatus,
	groundTruth model.GroundTruth,
	apiCalls, llmCalls int,
	runtime time.Duration,
	now time.Time,
) *BenchmarkReport {
	var tp, fp, fn, tn, already, unclassified, leaked int
	for dealID, status := range outcomes {
		switch classify(groundTruth, dealID, status) {
		case model.OutcomeTruePositive:
			tp++
		case model.OutcomeFalsePositive:
			fp++
		case model.OutcomeFalseNegative:
			fn++
		case model.OutcomeTrueNegative:
			tn++
		case model.OutcomeAlreadyProcessed:
			already++
			if status != model.StatusAlreadyProcessed {
				leaked++
			}
		default:
			unclassified++
		}
	}

	report := &BenchmarkReport{
		RunTimestampUTC:       now.UTC().Format(time.RFC3339Nano),
		DealsTotal:            len(outcomes),
		DealsAlreadyProcessed: already,
		DealsActive:           tp + fp + fn + tn,
		TruePositives:         tp,
		FalsePositives:        fp,
		TrueNegatives:         tn,
		FalseNegatives:        fn,
		Unclassified:          unclassified,
		TotalAPICalls:         apiCalls,
		TotalRuntimeSeconds:   runtime.Seconds(),
	}
	report.TotalLLMGatekeeperCalls = llmCalls
	report.AlreadyProcessedCorrectlyExcluded = already - leaked
	report.AlreadyProcessedIncorrectlyProcessed = leaked

	if tp+fp > 0 {
		report.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		report.Recall = float64(tp) / float64(tp+fn)
	}
	if report.Precision+report.Recall > 0 {
		report.F1Score = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}
	if report.DealsActive > 0 {
		report.Coverage = float64(tp+fp) / float64(report.DealsActive)
	}
	if tn+fp > 0 {
		report.DecoyFilterRate = float64(tn) / float64(tn+fp)
	}
	if apiCalls > 0 {
		report.APIEfficiency = float64(tp) / float64(apiCalls)
	}

	report.CountIntegrityOK = tp+fp+fn+tn+already+unclassified == report.DealsTotal

	return report
}

// PrintSummary writes a human-readable report summary to w.
func (r *BenchmarkReport) PrintSummary(w io.Writer) {
	line := "============================================================"
	fmt.Fprintln(w)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "  BENCHMARK RESULTS")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "  F1 Score  : %.4f\n", r.F1Score)
	fmt.Fprintf(w, "  Precision : %.4f\n", r.Precision)
	fmt.Fprintf(w, "  Recall    : %.4f\n", r.Recall)
	fmt.Fprintf(w, "  TP / FP / FN / TN : %d / %d / %d / %d\n",
		r.TruePositives, r.FalsePositives, r.FalseNegatives, r.TrueNegatives)
	fmt.Fprintf(w, "  Coverage          : %.4f\n", r.Coverage)
	fmt.Fprintf(w, "  Decoy Filter Rate : %.4f\n", r.DecoyFilterRate)
	fmt.Fprintf(w, "  API Calls Total   : %d\n", r.TotalAPICalls)
	fmt.Fprintf(w, "  Runtime           : %.1fs\n", r.TotalRuntimeSeconds)

	exclusion := "PASS"
	if r.AlreadyProcessedIncorrectlyProcessed > 0 {
		exclusion = fmt.Sprintf("FAIL (%d leaked through)", r.AlreadyProcessedIncorrectlyProcessed)
	}
	fmt.Fprintf(w, "  Exclusion Audit   : %s  (%d correctly skipped)\n",
		exclusion, r.AlreadyProcessedCorrectlyExcluded)

	integrity := "PASS"
	if !r.CountIntegrityOK {
		integrity = "FAIL (classifications do not sum to total)"
	}
	fmt.Fprintf(w, "  Count Integrity   : %s\n", integrity)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
}
