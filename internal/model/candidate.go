package model

// CandidateSource identifies which discovery strategy produced a candidate.
type CandidateSource string

const (
	SourceAPI         CandidateSource = "api"
	SourceClaimsAgent CandidateSource = "claims-agent-browser"
	SourceFulltext    CandidateSource = "fulltext-search"
)

// MaxAttachmentDescriptions caps how many attachment descriptions a
// candidate may carry into the gatekeeper prompt.
const MaxAttachmentDescriptions = 5

// CandidateDocument is one discovered docket entry that might be the
// target filing. It carries docket metadata only, never document bytes
// or extracted text.
type CandidateDocument struct {
	DealID                 string          `json:"deal_id"`
	Source                 CandidateSource `json:"source"`
	DocketEntryID          string          `json:"docket_entry_id"`
	DocketTitle            string          `json:"docket_title"`
	FilingDate             string          `json:"filing_date,omitempty"` // ISO date, may be absent
	AttachmentDescriptions []string        `json:"attachment_descriptions,omitempty"`
	ResolvedPDFURL         string          `json:"resolved_pdf_url,omitempty"`
	APICallsConsumed       int             `json:"api_calls_consumed"`
}

// TruncatedAttachments returns at most MaxAttachmentDescriptions entries.
func (c CandidateDocument) TruncatedAttachments() []string {
	if len(c.AttachmentDescriptions) <= MaxAttachmentDescriptions {
		return c.AttachmentDescriptions
	}
	return c.AttachmentDescriptions[:MaxAttachmentDescriptions]
}
