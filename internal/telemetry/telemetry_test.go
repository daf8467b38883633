package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retrieval-cli/internal/model"
)

func newTestLogger(t *testing.T, gt model.GroundTruth) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := NewLogger(dir, gt)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	return l, dir
}

func readEvents(t *testing.T, dir string) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "execution_log.jsonl"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	var events []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func testDeal() model.Deal {
	return model.Deal{DealID: "acme-2024", CompanyName: "Acme Corp", FilingYear: 2024, Court: "S.D.N.Y."}
}

func TestLogger_EventShape(t *testing.T) {
	l, dir := newTestLogger(t, nil)

	l.StartDeal("acme-2024")
	l.ScoutQuery(testDeal(), model.SourceAPI, "docket lookup Acme Corp", 3, 1)

	events := readEvents(t, dir)
	require.Len(t, events, 1)
	ev := events[0]

	assert.Equal(t, "SCOUT_QUERY", ev["event_type"])
	assert.Equal(t, "acme-2024", ev["deal_id"])
	assert.Equal(t, "Acme Corp", ev["company_name"])
	assert.Equal(t, "api", ev["source"])
	assert.Equal(t, "docket lookup Acme Corp", ev["query"])
	assert.Equal(t, float64(3), ev["results_count"])
	assert.Equal(t, float64(1), ev["api_calls_consumed_this_query"])
	assert.Equal(t, float64(1), ev["api_calls_total"])

	ts, ok := ev["timestamp_utc"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, ts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ev["elapsed_seconds"].(float64), 0.0)
}

func TestLogger_APICallsAccumulate(t *testing.T) {
	l, _ := newTestLogger(t, nil)

	l.ScoutQuery(testDeal(), model.SourceAPI, "q1", 0, 1)
	l.ScoutQuery(testDeal(), model.SourceFulltext, "q2", 2, 1)

	assert.Equal(t, 2, l.TotalAPICalls())
}

func TestLogger_GatekeeperDecisionPayload(t *testing.T) {
	l, dir := newTestLogger(t, nil)

	candidate := model.CandidateDocument{
		DealID:                 "acme-2024",
		DocketTitle:            "First Day Declaration",
		AttachmentDescriptions: []string{"Exhibit A"},
	}
	result := model.GatekeeperResult{
		Verdict:    model.VerdictDownload,
		Score:      0.91,
		Reasoning:  "First day declaration.",
		TokenCount: 140,
		ModelUsed:  "claude-haiku-4-5-20251001",
	}
	l.GatekeeperDecision(testDeal(), candidate, result)

	events := readEvents(t, dir)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "GATEKEEPER_DECISION", ev["event_type"])
	assert.Equal(t, "First Day Declaration", ev["docket_title"])
	assert.Equal(t, "DOWNLOAD", ev["llm_verdict"])
	assert.Equal(t, 0.91, ev["llm_score"])
	assert.Equal(t, float64(140), ev["llm_tokens_used"])
}

func TestLogger_TerminalRecordsOutcomeOnce(t *testing.T) {
	l, dir := newTestLogger(t, nil)

	l.PipelineTerminal(testDeal(), model.StatusDownloaded, 4, 2, "/tmp/doc.pdf")

	events := readEvents(t, dir)
	require.Len(t, events, 1)
	assert.Equal(t, "PIPELINE_TERMINAL", events[0]["event_type"])
	assert.Equal(t, "DOWNLOADED", events[0]["pipeline_status"])
	assert.Equal(t, float64(4), events[0]["total_api_calls_this_deal"])
	assert.Equal(t, "/tmp/doc.pdf", events[0]["downloaded_file"])
}

func TestLogger_BudgetWarningPayload(t *testing.T) {
	l, dir := newTestLogger(t, nil)

	l.BudgetWarning(4320, 4800)

	events := readEvents(t, dir)
	require.Len(t, events, 1)
	assert.Equal(t, "BUDGET_WARNING", events[0]["event_type"])
	assert.Equal(t, float64(4320), events[0]["api_calls_used"])
	assert.Equal(t, float64(480), events[0]["remaining"])
}

func TestLogger_AppendsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	l1, err := NewLogger(dir, nil)
	require.NoError(t, err)
	l1.ExclusionSkip(testDeal(), "company_name")
	require.NoError(t, l1.Close())

	l2, err := NewLogger(dir, nil)
	require.NoError(t, err)
	l2.ExclusionSkip(testDeal(), "deal_id")
	require.NoError(t, l2.Close())

	events := readEvents(t, dir)
	assert.Len(t, events, 2)
}
