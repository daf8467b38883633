package scout

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/pkg/courtlistener"
)

// APISource discovers candidates through the structured CourtListener
// search API: one docket lookup, then keyword sub-queries within it.
type APISource struct {
	client            courtlistener.Client
	maxKeywordQueries int
	observer          QueryObserver
}

// NewAPISource creates the structured-API discovery source.
func NewAPISource(client courtlistener.Client, maxKeywordQueries int, observer QueryObserver) *APISource {
	if maxKeywordQueries <= 0 {
		maxKeywordQueries = 6
	}
	return &APISource{
		client:            client,
		maxKeywordQueries: maxKeywordQueries,
		observer:          observer,
	}
}

func (s *APISource) Name() model.CandidateSource { return model.SourceAPI }

// Discover finds the deal's docket and then walks the priority keywords
// until one yields an entry with a resolvable document URL.
func (s *APISource) Discover(ctx context.Context, deal model.Deal) ([]model.CandidateDocument, error) {
	calls := 0

	docket, err := s.client.FindDocket(ctx, deal.CompanyName, deal.FilingYear, deal.Court)
	calls++
	s.observe(deal, fmt.Sprintf("docket lookup %q %d", deal.CompanyName, deal.FilingYear), boolToCount(docket != nil), 1)
	if err != nil {
		return nil, err
	}
	if docket == nil {
		zap.L().Info("no docket found",
			zap.String("deal_id", deal.DealID),
			zap.String("company", deal.CompanyName),
		)
		return nil, nil
	}

	docketID := docket.DocketID.String()
	for i, keyword := range PriorityKeywords {
		if i >= s.maxKeywordQueries {
			break
		}

		results, err := s.client.SearchEntries(ctx, docketID, keyword)
		calls++
		s.observe(deal, fmt.Sprintf("docket %s keyword %q", docketID, keyword), len(results), 1)
		if err != nil {
			return nil, err
		}

		candidates := s.toCandidates(deal, results, calls)
		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	return nil, nil
}

func (s *APISource) toCandidates(deal model.Deal, results []courtlistener.SearchResult, callsSoFar int) []model.CandidateDocument {
	var out []model.CandidateDocument
	for _, r := range results {
		docURL := r.FilepathLocal
		var attachments []string
		for _, doc := range r.RecapDocs {
			if doc.Description != "" {
				attachments = append(attachments, doc.Description)
			}
			if docURL == "" && doc.IsAvailable && doc.FilepathLocal != "" {
				docURL = doc.FilepathLocal
			}
		}
		if docURL == "" {
			continue
		}
		// RECAP stores paths relative to its storage host.
		if !strings.Contains(docURL, "://") && !strings.HasPrefix(docURL, "/") {
			docURL = "/" + docURL
		}

		out = append(out, model.CandidateDocument{
			DealID:                 deal.DealID,
			Source:                 model.SourceAPI,
			DocketEntryID:          r.ID.String(),
			DocketTitle:            firstNonEmpty(r.Description, r.CaseName),
			FilingDate:             r.DateFiled,
			AttachmentDescriptions: attachments,
			ResolvedPDFURL:         docURL,
			APICallsConsumed:       callsSoFar,
		})
	}
	return out
}

func (s *APISource) observe(deal model.Deal, query string, results, calls int) {
	if s.observer != nil {
		s.observer.ScoutQuery(deal, model.SourceAPI, query, results, calls)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
