package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retrieval-cli/internal/model"
)

func TestExclusionList_DefaultCompanies(t *testing.T) {
	el := NewExclusionList()

	match := el.Check(model.Deal{DealID: "x-2023", CompanyName: "Party City"})
	assert.True(t, match.Matched)
	assert.Equal(t, "company_name", match.Rule)
	assert.Equal(t, "Party City", match.Value)
}

func TestExclusionList_CompanyMatchIsCaseInsensitive(t *testing.T) {
	el := NewExclusionList()

	for _, name := range []string{"party city", "PARTY CITY", "  Party City  ", "envision healthcare"} {
		match := el.Check(model.Deal{DealID: "x", CompanyName: name})
		assert.True(t, match.Matched, "expected %q to match", name)
		assert.Equal(t, "company_name", match.Rule)
	}
}

func TestExclusionList_DefaultDealIDs(t *testing.T) {
	el := NewExclusionList()

	match := el.Check(model.Deal{DealID: "incora-2023", CompanyName: "Wesco Aircraft"})
	assert.True(t, match.Matched)
	assert.Equal(t, "deal_id", match.Rule)
	assert.Equal(t, "incora-2023", match.Value)
}

func TestExclusionList_AlreadyProcessedFlag(t *testing.T) {
	el := NewExclusionList()

	match := el.Check(model.Deal{DealID: "acme-2024", CompanyName: "Acme", AlreadyProcessed: true})
	assert.True(t, match.Matched)
	assert.Equal(t, "already_processed_flag", match.Rule)
}

func TestExclusionList_ActiveDealPasses(t *testing.T) {
	el := NewExclusionList()

	match := el.Check(model.Deal{DealID: "acme-2024", CompanyName: "Acme Corp"})
	assert.False(t, match.Matched)
	assert.Empty(t, match.Rule)
}

func TestLoadExclusionList_MergesWithDefaults(t *testing.T) {
	path := writeTempFile(t, "exclusions.json", `{
		"companies": ["Vandelay Industries"],
		"deal_ids": ["vandelay-2025"]
	}`)

	el, err := LoadExclusionList(path)
	require.NoError(t, err)

	// Extra rules apply.
	assert.True(t, el.Check(model.Deal{DealID: "x", CompanyName: "vandelay industries"}).Matched)
	assert.True(t, el.Check(model.Deal{DealID: "vandelay-2025", CompanyName: "Other"}).Matched)

	// Defaults survive the merge.
	assert.True(t, el.Check(model.Deal{DealID: "cano-health-2024", CompanyName: "Other"}).Matched)
	assert.True(t, el.Check(model.Deal{DealID: "x", CompanyName: "Diebold Nixdorf"}).Matched)
}
