package model

// TerminalStatus is the final, immutable outcome recorded for a deal.
// Exactly one terminal status is reached per deal.
type TerminalStatus string

const (
	StatusPending          TerminalStatus = "PENDING"
	StatusAlreadyProcessed TerminalStatus = "ALREADY_PROCESSED"
	StatusDownloaded       TerminalStatus = "DOWNLOADED"
	StatusSkipped          TerminalStatus = "SKIPPED"
	StatusNotFound         TerminalStatus = "NOT_FOUND"
	StatusFetchFailed      TerminalStatus = "FETCH_FAILED"
)

// Terminal reports whether the status is one of the five terminal states.
func (s TerminalStatus) Terminal() bool {
	switch s {
	case StatusAlreadyProcessed, StatusDownloaded, StatusSkipped, StatusNotFound, StatusFetchFailed:
		return true
	default:
		return false
	}
}

// Outcome is the benchmark classification of a terminal status against
// ground truth.
type Outcome string

const (
	OutcomeAlreadyProcessed Outcome = "ALREADY_PROCESSED"
	OutcomeTruePositive     Outcome = "TRUE_POSITIVE"
	OutcomeFalsePositive    Outcome = "FALSE_POSITIVE"
	OutcomeTrueNegative     Outcome = "TRUE_NEGATIVE"
	OutcomeFalseNegative    Outcome = "FALSE_NEGATIVE"
	OutcomeUnclassified     Outcome = "UNCLASSIFIED"
)
