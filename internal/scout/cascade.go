package scout

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/retrieval-cli/internal/budget"
	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/internal/resilience"
)

// FallbackObserver is notified when the cascade moves past a source.
type FallbackObserver interface {
	Event(eventType string, deal model.Deal, payload map[string]any)
}

// Scout walks the discovery cascade for one deal at a time.
type Scout struct {
	sources  []DiscoverySource
	guard      *URLGuard
	dateWindow time.Duration
	breakers   *resilience.SourceBreakers
	observer   FallbackObserver
}

// New creates a Scout over the given sources, in cascade order.
func New(sources []DiscoverySource, guard *URLGuard, observer FallbackObserver) *Scout {
	return &Scout{
		sources:    sources,
		guard:      guard,
		dateWindow: DefaultDateGuardDays * 24 * time.Hour,
		breakers:   resilience.NewSourceBreakers(resilience.DefaultCircuitBreakerConfig()),
		observer:   observer,
	}
}

// SetDateGuardDays overrides how far past the petition date a candidate's
// filing date may fall. Non-positive values keep the default.
func (s *Scout) SetDateGuardDays(days int) {
	if days > 0 {
		s.dateWindow = time.Duration(days) * 24 * time.Hour
	}
}

// Discover tries each source in order and returns the first source's
// surviving candidates. Transient source failures mean "found nothing";
// budget exhaustion aborts the run and is returned as-is.
func (s *Scout) Discover(ctx context.Context, deal model.Deal) ([]model.CandidateDocument, error) {
	for _, source := range s.sources {
		name := string(source.Name())
		breaker := s.breakers.Get(name)

		candidates, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]model.CandidateDocument, error) {
			return source.Discover(ctx, deal)
		})
		if err != nil {
			if errors.Is(err, budget.ErrExhausted) {
				return nil, err
			}
			zap.L().Warn("discovery source failed, falling back",
				zap.String("deal_id", deal.DealID),
				zap.String("source", name),
				zap.Error(err),
			)
			s.fallback(deal, name, err.Error())
			continue
		}

		kept := applyGuards(deal, s.guard, s.dateWindow, candidates)
		if len(kept) > 0 {
			return kept, nil
		}
		if len(candidates) > 0 {
			// Everything this source found was rejected by a guard.
			s.fallback(deal, name, "all candidates rejected by guards")
		}
	}

	return nil, nil
}

// BreakerStates snapshots the cascade's per-source circuit states.
func (s *Scout) BreakerStates() map[string]resilience.CircuitState {
	return s.breakers.States()
}

func (s *Scout) fallback(deal model.Deal, source, reason string) {
	if s.observer != nil {
		s.observer.Event("FALLBACK_TRIGGERED", deal, map[string]any{
			"source": source,
			"reason": reason,
		})
	}
}

// cascadeFile is the YAML override shape for source ordering.
type cascadeFile struct {
	Sources []string `yaml:"sources"`
}

// LoadCascadeOrder reads a source-order override from a YAML file holding
// a "sources" list of source names. Unknown names are an error so typos
// don't silently drop a source.
func LoadCascadeOrder(path string) ([]model.CandidateSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "scout: read cascade file")
	}

	var cf cascadeFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, eris.Wrap(err, "scout: parse cascade file")
	}

	valid := map[string]model.CandidateSource{
		string(model.SourceAPI):         model.SourceAPI,
		string(model.SourceClaimsAgent): model.SourceClaimsAgent,
		string(model.SourceFulltext):    model.SourceFulltext,
	}

	var order []model.CandidateSource
	for _, name := range cf.Sources {
		src, ok := valid[name]
		if !ok {
			return nil, eris.Errorf("scout: unknown discovery source %q in cascade file", name)
		}
		order = append(order, src)
	}
	if len(order) == 0 {
		return nil, eris.New("scout: cascade file lists no sources")
	}
	return order, nil
}

// OrderSources arranges sources per the given cascade order, dropping
// sources not listed.
func OrderSources(sources []DiscoverySource, order []model.CandidateSource) []DiscoverySource {
	byName := make(map[model.CandidateSource]DiscoverySource, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	var out []DiscoverySource
	for _, name := range order {
		if s, ok := byName[name]; ok {
			out = append(out, s)
		}
	}
	return out
}
