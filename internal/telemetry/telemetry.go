// Package telemetry appends structured run events to an NDJSON log and
// scores pipeline outcomes against ground truth at run end.
package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// Event type names as written to the log.
const (
	EventExclusionSkip      = "EXCLUSION_SKIP"
	EventScoutQuery         = "SCOUT_QUERY"
	EventGatekeeperDecision = "GATEKEEPER_DECISION"
	EventFetchResult        = "FETCH_RESULT"
	EventPipelineTerminal   = "PIPELINE_TERMINAL"
	EventBudgetWarning      = "BUDGET_WARNING"
	EventSessionHealthCheck = "SESSION_HEALTH_CHECK"
	EventFallbackTriggered  = "FALLBACK_TRIGGERED"
	EventValidationFailure  = "VALIDATION_FAILURE"
)

// Logger records one run's events. The event log is append-only: one JSON
// object per line, never rewritten.
type Logger struct {
	mu         sync.Mutex
	logPath    string
	reportPath string
	file       *os.File

	groundTruth model.GroundTruth

	runStart   time.Time
	dealStarts map[string]time.Time

	apiCallsTotal int
	llmCallsTotal int
	outcomes      map[string]model.TerminalStatus
	dealOrder     []string

	nowFunc func() time.Time
}

// NewLogger opens (or creates) the event log under logDir. groundTruth may
// be nil when no benchmark is wanted; Finalize then reports zero metrics.
func NewLogger(logDir string, groundTruth model.GroundTruth) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "telemetry: create log dir")
	}

	logPath := filepath.Join(logDir, "execution_log.jsonl")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: open event log")
	}

	return &Logger{
		logPath:     logPath,
		reportPath:  filepath.Join(logDir, "benchmark_report.json"),
		file:        f,
		groundTruth: groundTruth,
		runStart:    time.Now(),
		dealStarts:  make(map[string]time.Time),
		outcomes:    make(map[string]model.TerminalStatus),
		nowFunc:     time.Now,
	}, nil
}

// Close closes the event log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// StartDeal marks the beginning of a deal's processing; elapsed_seconds on
// subsequent events for that deal is measured from here.
func (l *Logger) StartDeal(dealID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dealStarts[dealID] = l.nowFunc()
}

// ExclusionSkip records a zero-cost exclusion. It must be the only event
// for that deal besides its terminal record.
func (l *Logger) ExclusionSkip(deal model.Deal, rule string) {
	l.append(EventExclusionSkip, deal.DealID, deal.CompanyName, map[string]any{
		"reason":             rule,
		"api_calls_consumed": 0,
	})
}

// ScoutQuery records one discovery query and its cost.
func (l *Logger) ScoutQuery(deal model.Deal, source model.CandidateSource, query string, resultsCount, apiCalls int) {
	l.mu.Lock()
	l.apiCallsTotal += apiCalls
	total := l.apiCallsTotal
	l.mu.Unlock()

	l.append(EventScoutQuery, deal.DealID, deal.CompanyName, map[string]any{
		"source":                        string(source),
		"query":                         query,
		"results_count":                 resultsCount,
		"api_calls_consumed_this_query": apiCalls,
		"api_calls_total":               total,
	})
}

// GatekeeperDecision records one relevance verdict.
func (l *Logger) GatekeeperDecision(deal model.Deal, candidate model.CandidateDocument, result model.GatekeeperResult) {
	l.mu.Lock()
	l.llmCallsTotal++
	l.mu.Unlock()

	l.append(EventGatekeeperDecision, deal.DealID, deal.CompanyName, map[string]any{
		"docket_title":            candidate.DocketTitle,
		"attachment_descriptions": candidate.TruncatedAttachments(),
		"llm_model":               result.ModelUsed,
		"llm_verdict":             string(result.Verdict),
		"llm_score":               result.Score,
		"llm_reasoning":           result.Reasoning,
		"llm_tokens_used":         result.TokenCount,
		"llm_error":               result.Error,
	})
}

// FetchResult records one download attempt.
func (l *Logger) FetchResult(deal model.Deal, result model.FetchResult, method string) {
	l.append(EventFetchResult, deal.DealID, deal.CompanyName, map[string]any{
		"success":         result.Success,
		"local_file_path": result.LocalPath,
		"file_size_bytes": result.SizeBytes,
		"fetch_method":    method,
		"failure_reason":  result.FailureReason,
	})
}

// PipelineTerminal records a deal's final status. Must be called exactly
// once per deal, as the last event for that deal.
func (l *Logger) PipelineTerminal(deal model.Deal, status model.TerminalStatus, apiCalls, llmCalls int, downloadedFile string) {
	l.mu.Lock()
	if _, seen := l.outcomes[deal.DealID]; !seen {
		l.dealOrder = append(l.dealOrder, deal.DealID)
	}
	l.outcomes[deal.DealID] = status
	l.mu.Unlock()

	l.append(EventPipelineTerminal, deal.DealID, deal.CompanyName, map[string]any{
		"pipeline_status":           string(status),
		"total_api_calls_this_deal": apiCalls,
		"total_llm_calls_this_deal": llmCalls,
		"downloaded_file":           downloadedFile,
	})
}

// BudgetWarning records a run-level budget utilization warning.
func (l *Logger) BudgetWarning(used, ceiling int) {
	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	l.append(EventBudgetWarning, "", "", map[string]any{
		"api_calls_used": used,
		"remaining":      remaining,
	})
}

// Event records a named event outside the fixed helpers, e.g. session
// health checks or cascade fallbacks.
func (l *Logger) Event(eventType string, deal model.Deal, payload map[string]any) {
	l.append(eventType, deal.DealID, deal.CompanyName, payload)
}

// TotalAPICalls returns external calls recorded so far.
func (l *Logger) TotalAPICalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apiCallsTotal
}

func (l *Logger) append(eventType, dealID, companyName string, payload map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	start, ok := l.dealStarts[dealID]
	if !ok {
		start = l.runStart
	}

	record := map[string]any{
		"event_type":      eventType,
		"deal_id":         dealID,
		"company_name":    companyName,
		"timestamp_utc":   now.UTC().Format(time.RFC3339Nano),
		"elapsed_seconds": now.Sub(start).Seconds(),
	}
	for k, v := range payload {
		record[k] = v
	}

	line, err := json.Marshal(record)
	if err != nil {
		zap.L().Error("telemetry: marshal event", zap.Error(err))
		return
	}
	// One line per write keeps appends atomic enough for a single process.
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		zap.L().Error("telemetry: append event", zap.Error(err))
	}
}
