package model

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusAborted  RunStatus = "aborted" // budget exhaustion or fatal error
)

// Run is one pipeline execution over a deal list.
type Run struct {
	ID         string          `json:"id"`
	Status     RunStatus       `json:"status"`
	DealsTotal int             `json:"deals_total"`
	Report     json.RawMessage `json:"report,omitempty"` // benchmark report, set on completion
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DealOutcome is the persisted record of one deal's result within a run.
type DealOutcome struct {
	ID             string         `json:"id"`
	RunID          string         `json:"run_id"`
	DealID         string         `json:"deal_id"`
	CompanyName    string         `json:"company_name"`
	Status         TerminalStatus `json:"status"`
	Outcome        Outcome        `json:"outcome"`
	APICalls       int            `json:"api_calls"`
	LLMCalls       int            `json:"llm_calls"`
	DownloadedFile string         `json:"downloaded_file,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
