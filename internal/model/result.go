package model

// Verdict is the gatekeeper's decision for one candidate.
type Verdict string

const (
	VerdictDownload Verdict = "DOWNLOAD"
	VerdictSkip     Verdict = "SKIP"
)

// GatekeeperResult is the verdict produced for one CandidateDocument.
// The verdict is always derived from Score against the configured
// threshold; the backend's self-reported verdict is discarded.
type GatekeeperResult struct {
	Verdict    Verdict `json:"verdict"`
	Score      float64 `json:"score"` // clamped to [0, 1]
	Reasoning  string  `json:"reasoning"`
	TokenCount int     `json:"token_count"`
	ModelUsed  string  `json:"model_used"`
	LatencyMS  int64   `json:"latency_ms"`
	Error      string  `json:"error,omitempty"` // set when the call or parse failed
}

// FetchResult reports the outcome of one document download attempt.
type FetchResult struct {
	Success       bool   `json:"success"`
	LocalPath     string `json:"local_path,omitempty"`
	SizeBytes     int64  `json:"size_bytes"`
	FailureReason string `json:"failure_reason,omitempty"`
}
