package scout

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/pkg/courtlistener"
)

// FulltextSource is the last-resort fallback: free-text RECAP queries
// combining the company name with each priority keyword, without a docket
// anchor.
type FulltextSource struct {
	client            courtlistener.Client
	maxKeywordQueries int
	observer          QueryObserver
}

// NewFulltextSource creates the full-text search fallback source.
func NewFulltextSource(client courtlistener.Client, maxKeywordQueries int, observer QueryObserver) *FulltextSource {
	if maxKeywordQueries <= 0 {
		maxKeywordQueries = 6
	}
	return &FulltextSource{
		client:            client,
		maxKeywordQueries: maxKeywordQueries,
		observer:          observer,
	}
}

func (s *FulltextSource) Name() model.CandidateSource { return model.SourceFulltext }

func (s *FulltextSource) Discover(ctx context.Context, deal model.Deal) ([]model.CandidateDocument, error) {
	calls := 0
	for i, keyword := range PriorityKeywords {
		if i >= s.maxKeywordQueries {
			break
		}

		query := fmt.Sprintf("%q %q", deal.CompanyName, keyword)
		results, err := s.client.FulltextSearch(ctx, query, deal.Court)
		calls++
		if s.observer != nil {
			s.observer.ScoutQuery(deal, model.SourceFulltext, query, len(results), 1)
		}
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

func (s *FulltextSource) toCandidates(deal model.Deal, results []courtlistener.SearchResult, callsSoFar int) []model.CandidateDocument {
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
		if !strings.Contains(docURL, "://") && !strings.HasPrefix(docURL, "/") {
			docURL = "/" + docURL
		}

		out = append(out, model.CandidateDocument{
			DealID:                 deal.DealID,
			Source:                 model.SourceFulltext,
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
