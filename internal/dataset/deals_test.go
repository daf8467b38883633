package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDeals_JSON(t *testing.T) {
	path := writeTempFile(t, "deals.json", `[
		{"deal_id": "acme-2024", "company_name": "Acme Corp", "filing_year": 2024,
		 "court": "S.D.N.Y.", "claims_agent": "Kroll", "petition_date": "2024-03-01"},
		{"deal_id": "globex-2023", "company_name": "Globex", "filing_year": 2023,
		 "court": "D. Del.", "already_processed": true}
	]`)

	deals, err := LoadDeals(path)
	require.NoError(t, err)
	require.Len(t, deals, 2)

	assert.Equal(t, "acme-2024", deals[0].DealID)
	assert.Equal(t, "Acme Corp", deals[0].CompanyName)
	assert.Equal(t, 2024, deals[0].FilingYear)
	assert.Equal(t, "Kroll", deals[0].ClaimsAgent)
	assert.False(t, deals[0].AlreadyProcessed)
	assert.True(t, deals[1].AlreadyProcessed)
}

func TestLoadDeals_JSONDuplicateID(t *testing.T) {
	path := writeTempFile(t, "deals.json", `[
		{"deal_id": "dup-1", "company_name": "A", "filing_year": 2024, "court": "D. Del."},
		{"deal_id": "dup-1", "company_name": "B", "filing_year": 2024, "court": "D. Del."}
	]`)

	_, err := LoadDeals(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate deal_id")
}

func TestLoadDeals_JSONMissingFields(t *testing.T) {
	path := writeTempFile(t, "deals.json", `[
		{"deal_id": "", "company_name": "No ID Inc", "filing_year": 2024, "court": "D. Del."}
	]`)

	_, err := LoadDeals(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing deal_id")
}

func writeTestWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Deals")
	require.NoError(t, err)

	for _, row := range rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}

	path := filepath.Join(t.TempDir(), "deals.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadDeals_XLSX(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{
		{"deal_id", "company_name", "filing_year", "court", "claims_agent", "petition_date", "already_processed"},
		{"acme-2024", "Acme Corp", "2024", "S.D.N.Y.", "Kroll", "2024-03-01", "false"},
		{"initech-2023", "Initech", "2023", "D. Del.", "", "", "TRUE"},
		{"", "", "", "", "", "", ""}, // trailing blank row is skipped
	})

	deals, err := LoadDeals(path)
	require.NoError(t, err)
	require.Len(t, deals, 2)

	assert.Equal(t, "acme-2024", deals[0].DealID)
	assert.Equal(t, 2024, deals[0].FilingYear)
	assert.Equal(t, "2024-03-01", deals[0].PetitionDate)
	assert.True(t, deals[1].AlreadyProcessed)
}

func TestLoadDeals_XLSXBadYear(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{
		{"deal_id", "company_name", "filing_year", "court", "claims_agent", "petition_date", "already_processed"},
		{"acme-2024", "Acme Corp", "not-a-year", "S.D.N.Y.", "", "", ""},
	})

	_, err := LoadDeals(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad filing year")
}

func TestLoadGroundTruth(t *testing.T) {
	path := writeTempFile(t, "gt.json", `{
		"acme-2024": {"already_processed": false, "has_financial_data": true},
		"globex-2023": {"already_processed": true, "has_financial_data": false}
	}`)

	gt, err := LoadGroundTruth(path)
	require.NoError(t, err)
	require.Len(t, gt, 2)
	assert.True(t, gt["acme-2024"].HasFinancialData)
	assert.True(t, gt["globex-2023"].AlreadyProcessed)
}
