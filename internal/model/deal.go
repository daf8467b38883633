package model

import "time"

// Deal is one bankruptcy case to process. Deals are immutable once
// loaded from the dataset and are passed by value into the pipeline.
type Deal struct {
	DealID           string `json:"deal_id"`
	CompanyName      string `json:"company_name"`
	FilingYear       int    `json:"filing_year"`
	Court            string `json:"court"`
	ClaimsAgent      string `json:"claims_agent,omitempty"`
	PetitionDate     string `json:"petition_date,omitempty"` // ISO date, optional
	AlreadyProcessed bool   `json:"already_processed"`
}

// PetitionTime parses the deal's petition date. Returns the zero time
// and false when the date is absent or unparseable.
func (d Deal) PetitionTime() (time.Time, bool) {
	if d.PetitionDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", d.PetitionDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// GroundTruthEntry is the answer key for one deal.
type GroundTruthEntry struct {
	AlreadyProcessed bool `json:"already_processed"`
	HasFinancialData bool `json:"has_financial_data"`
}

// GroundTruth maps deal IDs to their answer-key entries.
type GroundTruth map[string]GroundTruthEntry
