package scout

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// ErrChallenge is returned by a BrowserSession when the site presents a
// bot challenge instead of results.
var ErrChallenge = eris.New("scout: bot challenge presented")

// AgentEntry is the minimal docket-entry shape a browser backend returns.
type AgentEntry struct {
	EntryID     string
	Title       string
	FilingDate  string // ISO date, may be empty
	DocumentURL string
	Attachments []string
}

// BrowserSession is the boundary to the browser-automation layer driving
// claims-agent sites (Kroll, Stretto, Epiq). The concrete scraping of any
// particular site lives behind this interface.
type BrowserSession interface {
	// SearchDocket searches the named claims agent's site for the deal's
	// docket and returns matching entries.
	SearchDocket(ctx context.Context, claimsAgent string, deal model.Deal) ([]AgentEntry, error)
	// HealthCheck navigates to a known-good page and verifies the session
	// still works.
	HealthCheck(ctx context.Context) error
	// Recycle relaunches the session and reloads persisted cookies.
	Recycle(ctx context.Context) error
	Close() error
}

// ClaimsAgentSource discovers candidates by driving a browser session
// against the deal's claims agent site. Deals without a claims agent are
// skipped by this source.
type ClaimsAgentSource struct {
	session  BrowserSession
	observer QueryObserver

	challengeWait func(ctx context.Context)
}

// NewClaimsAgentSource creates the browser-backed discovery source.
func NewClaimsAgentSource(session BrowserSession, observer QueryObserver) *ClaimsAgentSource {
	return &ClaimsAgentSource{
		session:       session,
		observer:      observer,
		challengeWait: defaultChallengeWait,
	}
}

func (s *ClaimsAgentSource) Name() model.CandidateSource { return model.SourceClaimsAgent }

func (s *ClaimsAgentSource) Discover(ctx context.Context, deal model.Deal) ([]model.CandidateDocument, error) {
	if deal.ClaimsAgent == "" {
		return nil, nil
	}

	entries, err := s.session.SearchDocket(ctx, deal.ClaimsAgent, deal)
	if errors.Is(err, ErrChallenge) {
		entries, err = s.retryAfterChallenge(ctx, deal)
	}
	if s.observer != nil {
		s.observer.ScoutQuery(deal, model.SourceClaimsAgent, "claims agent "+deal.ClaimsAgent, len(entries), 0)
	}
	if err != nil {
		return nil, err
	}

	var out []model.CandidateDocument
	for _, e := range entries {
		if e.DocumentURL == "" {
			continue
		}
		out = append(out, model.CandidateDocument{
			DealID:                 deal.DealID,
			Source:                 model.SourceClaimsAgent,
			DocketEntryID:          e.EntryID,
			DocketTitle:            e.Title,
			FilingDate:             e.FilingDate,
			AttachmentDescriptions: e.Attachments,
			ResolvedPDFURL:         e.DocumentURL,
		})
	}

	zap.L().Debug("claims agent discovery complete",
		zap.String("deal_id", deal.DealID),
		zap.String("agent", deal.ClaimsAgent),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

// retryAfterChallenge backs off, recycles the session, and retries the
// search once. A second challenge is returned to the cascade, which falls
// through to the next source.
func (s *ClaimsAgentSource) retryAfterChallenge(ctx context.Context, deal model.Deal) ([]AgentEntry, error) {
	zap.L().Warn("bot challenge on claims agent site, recycling session",
		zap.String("deal_id", deal.DealID),
		zap.String("agent", deal.ClaimsAgent),
	)
	s.challengeWait(ctx)
	if err := s.session.Recycle(ctx); err != nil {
		return nil, eris.Wrap(err, "scout: recycle after challenge")
	}
	return s.session.SearchDocket(ctx, deal.ClaimsAgent, deal)
}

// defaultChallengeWait pauses 5 to 15 seconds so the retry does not look
// like an immediate re-probe.
func defaultChallengeWait(ctx context.Context) {
	d := 5*time.Second + time.Duration(rand.Int63n(int64(10*time.Second)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
