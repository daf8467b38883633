package scout

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// DefaultDateGuardDays is how far after the petition date a filing may
// fall before it is dropped. First-day papers land within days of the
// petition; anything a month out is a different filing.
const DefaultDateGuardDays = 30

// URLGuard keeps only candidate URLs whose host matches an allow-listed
// domain pattern. Everything else is treated as hallucination or attack
// surface and dropped before it can reach the gatekeeper or fetcher.
type URLGuard struct {
	patterns []*regexp.Regexp
}

// DefaultDomainPatterns are the hosts documents legitimately live on.
var DefaultDomainPatterns = []string{
	`kroll\.com`,
	`cases\.stretto\.com`,
	`dm\.epiq11\.com`,
	`storage\.courtlistener\.com`,
	`ecf\.\w+\.uscourts\.gov`,
	`assets\.kroll\.com`,
}

// NewURLGuard compiles the given patterns into a guard.
func NewURLGuard(patterns []string) (*URLGuard, error) {
	if len(patterns) == 0 {
		patterns = DefaultDomainPatterns
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "scout: bad domain pattern %q", p)
		}
		compiled = append(compiled, re)
	}
	return &URLGuard{patterns: compiled}, nil
}

// Allow reports whether rawURL may be surfaced as a candidate. Relative
// paths are allowed; they resolve against the RECAP storage host later.
func (g *URLGuard) Allow(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if strings.HasPrefix(rawURL, "/") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	for _, re := range g.patterns {
		if re.MatchString(u.Host) {
			return true
		}
	}
	return false
}

// applyGuards filters candidates through the URL allow-list and the date
// guard. Entries without a parseable filing date pass the date guard.
func applyGuards(deal model.Deal, guard *URLGuard, window time.Duration, candidates []model.CandidateDocument) []model.CandidateDocument {
	petition, hasPetition := deal.PetitionTime()

	kept := candidates[:0]
	for _, c := range candidates {
		if !guard.Allow(c.ResolvedPDFURL) {
			zap.L().Warn("candidate URL rejected by domain allow-list",
				zap.String("deal_id", deal.DealID),
				zap.String("url", c.ResolvedPDFURL),
			)
			continue
		}
		if hasPetition && c.FilingDate != "" {
			filed, err := time.Parse("2006-01-02", c.FilingDate)
			if err == nil && filed.Sub(petition) > window {
				zap.L().Debug("candidate dropped by date guard",
					zap.String("deal_id", deal.DealID),
					zap.String("filing_date", c.FilingDate),
					zap.String("petition_date", deal.PetitionDate),
				)
				continue
			}
		}
		kept = append(kept, c)
	}
	return kept
}
