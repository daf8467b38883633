package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// ReplayLog rebuilds per-deal outcomes and call totals from an existing
// execution log and recomputes the benchmark report against groundTruth.
// The log is read only; nothing is appended and no report file is written.
func ReplayLog(logPath string, groundTruth model.GroundTruth) (*BenchmarkReport, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, eris.Wrapf(err, "telemetry: open log %s", logPath)
	}
	defer f.Close() //nolint:errcheck

	type terminalEvent struct {
		EventType      string `json:"event_type"`
		DealID         string `json:"deal_id"`
		TimestampUTC   string `json:"timestamp_utc"`
		PipelineStatus string `json:"pipeline_status"`
		APICalls       int    `json:"total_api_calls_this_deal"`
		LLMCalls       int    `json:"total_llm_calls_this_deal"`
	}

	outcomes := make(map[string]model.TerminalStatus)
	apiByDeal := make(map[string]int)
	llmByDeal := make(map[string]int)
	var lines int
	var first, last time.Time

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines++
		var ev terminalEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			zap.L().Warn("skipping malformed log line",
				zap.String("log", logPath),
				zap.Int("line", lines),
				zap.Error(err),
			)
			continue
		}

		if ts, err := time.Parse(time.RFC3339Nano, ev.TimestampUTC); err == nil {
			if first.IsZero() {
				first = ts
			}
			last = ts
		}

		if ev.EventType != EventPipelineTerminal {
			continue
		}
		// A later terminal for the same deal wins, matching a resumed run.
		// Call counts follow the winning terminal so totals stay aligned
		// with the deduplicated outcomes.
		outcomes[ev.DealID] = model.TerminalStatus(ev.PipelineStatus)
		apiByDeal[ev.DealID] = ev.APICalls
		llmByDeal[ev.DealID] = ev.LLMCalls
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "telemetry: read log %s", logPath)
	}
	if len(outcomes) == 0 {
		return nil, eris.Errorf("no terminal events found in %s", logPath)
	}

	var apiCalls, llmCalls int
	for _, n := range apiByDeal {
		apiCalls += n
	}
	for _, n := range llmByDeal {
		llmCalls += n
	}

	var runtime time.Duration
	if !first.IsZero() {
		runtime = last.Sub(first)
	}

	return computeReport(outcomes, groundTruth, apiCalls, llmCalls, runtime, time.Now()), nil
}
