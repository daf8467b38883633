// Package dataset loads deal lists, ground truth, and the exclusion list
// that front the retrieval pipeline.
package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// LoadDeals reads a deal list from path. JSON files hold an array of deal
// objects; .xlsx files hold one deal per row with a header row.
func LoadDeals(path string) ([]model.Deal, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return loadDealsXLSX(path)
	default:
		return loadDealsJSON(path)
	}
}

func loadDealsJSON(path string) ([]model.Deal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read deals")
	}

	var deals []model.Deal
	if err := json.Unmarshal(data, &deals); err != nil {
		return nil, eris.Wrap(err, "dataset: parse deals")
	}

	return validate(deals)
}

// xlsx column order: deal_id, company_name, filing_year, court,
// claims_agent, petition_date, already_processed.
func loadDealsXLSX(path string) ([]model.Deal, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open deals workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("dataset: workbook %s has no sheets", path)
	}

	var deals []model.Deal
	for i, row := range f.Sheets[0].Rows {
		if i == 0 {
			continue // header
		}
		cells := make([]string, 7)
		for j := 0; j < len(cells) && j < len(row.Cells); j++ {
			cells[j] = strings.TrimSpace(row.Cells[j].String())
		}
		if cells[0] == "" {
			continue
		}

		year, err := strconv.Atoi(cells[2])
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: row %d: bad filing year %q", i+1, cells[2])
		}

		deals = append(deals, model.Deal{
			DealID:           cells[0],
			CompanyName:      cells[1],
			FilingYear:       year,
			Court:            cells[3],
			ClaimsAgent:      cells[4],
			PetitionDate:     cells[5],
			AlreadyProcessed: strings.EqualFold(cells[6], "true") || cells[6] == "1",
		})
	}

	return validate(deals)
}

func validate(deals []model.Deal) ([]model.Deal, error) {
	seen := make(map[string]struct{}, len(deals))
	for _, d := range deals {
		if d.DealID == "" {
			return nil, eris.Errorf("dataset: deal %q missing deal_id", d.CompanyName)
		}
		if d.CompanyName == "" {
			return nil, eris.Errorf("dataset: deal %s missing company name", d.DealID)
		}
		if _, dup := seen[d.DealID]; dup {
			return nil, eris.Errorf("dataset: duplicate deal_id %s", d.DealID)
		}
		seen[d.DealID] = struct{}{}
	}
	return deals, nil
}
