package telemetry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retrieval-cli/internal/model"
)

func TestClassify_Table(t *testing.T) {
	gt := model.GroundTruth{
		"relevant":  {HasFinancialData: true},
		"decoy":     {HasFinancialData: false},
		"processed": {AlreadyProcessed: true, HasFinancialData: true},
	}
	l, _ := newTestLogger(t, gt)

	cases := []struct {
		name   string
		dealID string
		status model.TerminalStatus
		want   model.Outcome
	}{
		{"downloaded relevant", "relevant", model.StatusDownloaded, model.OutcomeTruePositive},
		{"downloaded decoy", "decoy", model.StatusDownloaded, model.OutcomeFalsePositive},
		{"skipped relevant", "relevant", model.StatusSkipped, model.OutcomeFalseNegative},
		{"skipped decoy", "decoy", model.StatusSkipped, model.OutcomeTrueNegative},
		{"not found relevant", "relevant", model.StatusNotFound, model.OutcomeFalseNegative},
		{"not found decoy", "decoy", model.StatusNotFound, model.OutcomeTrueNegative},
		{"fetch failed relevant", "relevant", model.StatusFetchFailed, model.OutcomeFalseNegative},
		{"fetch failed decoy", "decoy", model.StatusFetchFailed, model.OutcomeTrueNegative},
		{"ground truth already-processed wins", "processed", model.StatusDownloaded, model.OutcomeAlreadyProcessed},
		{"missing from ground truth", "unknown", model.StatusDownloaded, model.OutcomeUnclassified},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, l.Classify(tc.dealID, tc.status))
		})
	}
}

func TestFinalize_Metrics(t *testing.T) {
	gt := model.GroundTruth{
		"tp1":  {HasFinancialData: true},
		"tp2":  {HasFinancialData: true},
		"fp1":  {HasFinancialData: false},
		"fn1":  {HasFinancialData: true},
		"tn1":  {HasFinancialData: false},
		"tn2":  {HasFinancialData: false},
		"excl": {AlreadyProcessed: true},
	}
	l, dir := newTestLogger(t, gt)

	record := func(dealID string, status model.TerminalStatus) {
		l.PipelineTerminal(model.Deal{DealID: dealID, CompanyName: dealID}, status, 2, 1, "")
	}
	record("tp1", model.StatusDownloaded)
	record("tp2", model.StatusDownloaded)
	record("fp1", model.StatusDownloaded)
	record("fn1", model.StatusSkipped)
	record("tn1", model.StatusSkipped)
	record("tn2", model.StatusNotFound)
	record("excl", model.StatusAlreadyProcessed)

	report, err := l.Finalize()
	require.NoError(t, err)

	assert.Equal(t, 7, report.DealsTotal)
	assert.Equal(t, 1, report.DealsAlreadyProcessed)
	assert.Equal(t, 6, report.DealsActive)
	assert.Equal(t, 2, report.TruePositives)
	assert.Equal(t, 1, report.FalsePositives)
	assert.Equal(t, 1, report.FalseNegatives)
	assert.Equal(t, 2, report.TrueNegatives)

	assert.InDelta(t, 2.0/3.0, report.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.F1Score, 1e-9)
	// Coverage: 3 attempted of 6 active. Decoy filter: 2 of 3 decoys held.
	assert.InDelta(t, 0.5, report.Coverage, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.DecoyFilterRate, 1e-9)

	assert.Equal(t, 1, report.AlreadyProcessedCorrectlyExcluded)
	assert.Equal(t, 0, report.AlreadyProcessedIncorrectlyProcessed)
	assert.True(t, report.CountIntegrityOK)

	// The report was written to disk.
	data, err := os.ReadFile(filepath.Join(dir, "benchmark_report.json"))
	require.NoError(t, err)
	var onDisk BenchmarkReport
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, report.TruePositives, onDisk.TruePositives)
}

func TestFinalize_ZeroDenominators(t *testing.T) {
	l, _ := newTestLogger(t, model.GroundTruth{})

	report, err := l.Finalize()
	require.NoError(t, err)

	assert.Zero(t, report.Precision)
	assert.Zero(t, report.Recall)
	assert.Zero(t, report.F1Score)
	assert.Zero(t, report.Coverage)
	assert.True(t, report.CountIntegrityOK)
}

func TestFinalize_ExclusionLeakDetected(t *testing.T) {
	gt := model.GroundTruth{
		"leaky": {AlreadyProcessed: true, HasFinancialData: true},
	}
	l, _ := newTestLogger(t, gt)

	// The pipeline downloaded a deal ground truth says was already processed.
	l.PipelineTerminal(model.Deal{DealID: "leaky", CompanyName: "Leaky"}, model.StatusDownloaded, 2, 1, "/tmp/x.pdf")

	report, err := l.Finalize()
	require.NoError(t, err)

	assert.Equal(t, 1, report.DealsAlreadyProcessed)
	assert.Equal(t, 0, report.AlreadyProcessedCorrectlyExcluded)
	assert.Equal(t, 1, report.AlreadyProcessedIncorrectlyProcessed)
}

func TestFinalize_UnclassifiedCountsTowardIntegrity(t *testing.T) {
	l, _ := newTestLogger(t, model.GroundTruth{})

	l.PipelineTerminal(model.Deal{DealID: "mystery", CompanyName: "Mystery"}, model.StatusSkipped, 0, 0, "")

	report, err := l.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unclassified)
	assert.True(t, report.CountIntegrityOK)
}

func TestPrintSummary(t *testing.T) {
	report := &BenchmarkReport{
		F1Score:                              0.8571,
		Precision:                            0.75,
		Recall:                               1.0,
		TruePositives:                        3,
		FalsePositives:                       1,
		AlreadyProcessedCorrectlyExcluded:    5,
		AlreadyProcessedIncorrectlyProcessed: 0,
		CountIntegrityOK:                     true,
	}

	var buf bytes.Buffer
	report.PrintSummary(&buf)

	out := buf.String()
	assert.Contains(t, out, "BENCHMARK RESULTS")
	assert.Contains(t, out, "0.8571")
	assert.Contains(t, out, "Exclusion Audit   : PASS")
	assert.Contains(t, out, "Count Integrity   : PASS")

	report.AlreadyProcessedIncorrectlyProcessed = 2
	report.CountIntegrityOK = false
	buf.Reset()
	report.PrintSummary(&buf)
	assert.Contains(t, buf.String(), "FAIL (2 leaked through)")
	assert.Contains(t, buf.String(), "Count Integrity   : FAIL")
}
