package dataset

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// Deals whose filings were already ingested by an earlier run of the
// extraction system. Matched case-insensitively against company names.
var defaultExcludedCompanies = []string{
	"Party City",
	"Diebold Nixdorf",
	"Incora",
	"Cano Health",
	"Envision Healthcare",
}

var defaultExcludedDealIDs = []string{
	"party-city-2023",
	"diebold-nixdorf-2023",
	"incora-2023",
	"cano-health-2024",
	"envision-healthcare-2023",
}

// ExclusionList screens deals out of the pipeline before any external call
// is made.
type ExclusionList struct {
	companies map[string]string // folded name -> original
	dealIDs   map[string]struct{}
	folder    cases.Caser
}

// ExclusionMatch explains why a deal was excluded.
type ExclusionMatch struct {
	Matched bool
	Rule    string // "company_name", "deal_id", or "already_processed_flag"
	Value   string
}

// NewExclusionList builds the default exclusion list.
func NewExclusionList() *ExclusionList {
	return newExclusionList(defaultExcludedCompanies, defaultExcludedDealIDs)
}

// LoadExclusionList reads extra exclusions from a JSON file and merges them
// with the defaults. The file holds {"companies": [...], "deal_ids": [...]}.
func LoadExclusionList(path string) (*ExclusionList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read exclusions")
	}

	var extra struct {
		Companies []string `json:"companies"`
		DealIDs   []string `json:"deal_ids"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, eris.Wrap(err, "dataset: parse exclusions")
	}

	return newExclusionList(
		append(append([]string{}, defaultExcludedCompanies...), extra.Companies...),
		append(append([]string{}, defaultExcludedDealIDs...), extra.DealIDs...),
	), nil
}

func newExclusionList(companies, dealIDs []string) *ExclusionList {
	el := &ExclusionList{
		companies: make(map[string]string, len(companies)),
		dealIDs:   make(map[string]struct{}, len(dealIDs)),
		folder:    cases.Fold(),
	}
	for _, c := range companies {
		el.companies[el.folder.String(strings.TrimSpace(c))] = c
	}
	for _, id := range dealIDs {
		el.dealIDs[strings.TrimSpace(id)] = struct{}{}
	}
	return el
}

// Check reports whether deal must be excluded and which rule matched. The
// deal's own already-processed flag counts as an exclusion too.
func (el *ExclusionList) Check(deal model.Deal) ExclusionMatch {
	if original, ok := el.companies[el.folder.String(strings.TrimSpace(deal.CompanyName))]; ok {
		return ExclusionMatch{Matched: true, Rule: "company_name", Value: original}
	}
	if _, ok := el.dealIDs[deal.DealID]; ok {
		return ExclusionMatch{Matched: true, Rule: "deal_id", Value: deal.DealID}
	}
	if deal.AlreadyProcessed {
		return ExclusionMatch{Matched: true, Rule: "already_processed_flag", Value: deal.DealID}
	}
	return ExclusionMatch{}
}
