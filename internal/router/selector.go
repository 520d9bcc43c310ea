package router

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-tracking/internal/provider"
)

// Tier identifies the caller's subscription level.
type Tier string

const (
	// TierFree callers are routed toward zero-cost providers.
	TierFree Tier = "free"
	// TierPremium callers are routed toward reliable providers.
	TierPremium Tier = "premium"
	// TierEnterprise callers are routed toward reliable providers.
	TierEnterprise Tier = "enterprise"
)

// Strategy labels the ordering policy chosen for a query. It is
// informational: the orchestrator fans out to every candidate regardless.
type Strategy string

const (
	StrategyFreeFirst        Strategy = "free_first"
	StrategyReliabilityFirst Strategy = "reliability_first"
	StrategyPaidFirst        Strategy = "paid_first"
)

// Context carries the optional routing preferences for one query, plus the
// providers that already failed on a prior attempt of the same query.
type Context struct {
	CostOptimize        bool
	ReliabilityOptimize bool
	UserTier            Tier
	PreviousFailures    []string
}

// Selection is the ordered dispatch plan for one query.
type Selection struct {
	Providers []string
	Strategy  Strategy
	Match     Match
}

const (
	failurePenaltyMax   = 30.0
	failurePenaltyDecay = 24 * time.Hour
)

// Selector scores and orders providers for a query. Given identical
// profiles, failure history and query it always produces the same plan.
type Selector struct {
	profiles []provider.Profile
	failures *FailureTracker
	rules    []Rule
	prefixes map[string]Match
	logger   zerolog.Logger
}

// NewSelector constructs a selector over the registered provider profiles.
// The profile slice keeps registration order, which downstream tie-breaks
// depend on.
func NewSelector(profiles []provider.Profile, failures *FailureTracker, logger zerolog.Logger) *Selector {
	if failures == nil {
		failures = NewFailureTracker(0)
	}
	return &Selector{
		profiles: profiles,
		failures: failures,
		rules:    DefaultRules(),
		prefixes: DefaultPrefixes(),
		logger:   logger,
	}
}

// WithRules overrides the detection rule table. Used by tests.
func (s *Selector) WithRules(rules []Rule, prefixes map[string]Match) *Selector {
	s.rules = rules
	s.prefixes = prefixes
	return s
}

// Failures exposes the tracker so the orchestrator can report outcomes.
func (s *Selector) Failures() *FailureTracker {
	return s.failures
}

// RecordSuccess feeds a provider success back into the failure history.
func (s *Selector) RecordSuccess(providerID string) {
	s.failures.RecordSuccess(providerID)
}

// RecordFailure feeds a provider failure back into the failure history.
func (s *Selector) RecordFailure(providerID string) {
	s.failures.RecordFailure(providerID)
}

// Select orders the providers able to answer the query by composite score.
// Providers that do not support the query's tracking type are excluded
// entirely, not merely deprioritized.
func (s *Selector) Select(q provider.Query, rctx Context) Selection {
	match := Detect(q.TrackingNumber, s.rules, s.prefixes)
	costOptimize, reliabilityOptimize := s.effectivePreferences(rctx)

	type scored struct {
		id    string
		score float64
	}
	candidates := make([]scored, 0, len(s.profiles))
	for _, profile := range s.profiles {
		if !profile.Supports(q.Type) {
			continue
		}
		score := s.score(profile, match, rctx, costOptimize)
		candidates = append(candidates, scored{id: profile.ID, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	ordered := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c.id)
	}

	strategy := s.strategy(rctx, costOptimize, reliabilityOptimize)
	s.logger.Debug().
		Str("tracking_number", q.TrackingNumber).
		Str("type", string(q.Type)).
		Str("detected", match.Provider).
		Float64("confidence", match.Confidence).
		Strs("order", ordered).
		Str("strategy", string(strategy)).
		Msg("provider_selection")

	return Selection{Providers: ordered, Strategy: strategy, Match: match}
}

// effectivePreferences resolves the tier/flag precedence: the tier wins.
// Free tier always cost-optimizes, premium and enterprise always optimize
// for reliability, and the flags only apply to untiered callers.
func (s *Selector) effectivePreferences(rctx Context) (costOptimize, reliabilityOptimize bool) {
	switch rctx.UserTier {
	case TierFree:
		return true, false
	case TierPremium, TierEnterprise:
		return false, true
	default:
		return rctx.CostOptimize, rctx.ReliabilityOptimize
	}
}

func (s *Selector) score(profile provider.Profile, match Match, rctx Context, costOptimize bool) float64 {
	score := 100 * profile.BaseReliability

	cost := float64(profile.CostUnits)
	if costOptimize {
		score += max(0, 200-2*cost)
	} else {
		score += max(0, 100-cost)
	}

	if match.Provider == profile.ID {
		score += match.Confidence * 50
	}

	switch rctx.UserTier {
	case TierFree:
		if profile.CostUnits == 0 {
			score += 100
		}
	case TierPremium, TierEnterprise:
		score += 20 * profile.BaseReliability
	}

	score -= s.failurePenalty(profile.ID, rctx.PreviousFailures)

	return max(0, score)
}

// failurePenalty applies only to providers that failed on a prior attempt of
// this query, decaying linearly to zero over 24 hours since the last
// recorded failure.
func (s *Selector) failurePenalty(providerID string, previousFailures []string) float64 {
	listed := false
	for _, id := range previousFailures {
		if id == providerID {
			listed = true
			break
		}
	}
	if !listed {
		return 0
	}
	_, lastAt := s.failures.Snapshot(providerID)
	age := time.Duration(0)
	if !lastAt.IsZero() {
		age = time.Since(lastAt)
	}
	if age >= failurePenaltyDecay {
		return 0
	}
	return failurePenaltyMax * (1 - float64(age)/float64(failurePenaltyDecay))
}

func (s *Selector) strategy(rctx Context, costOptimize, reliabilityOptimize bool) Strategy {
	switch {
	case costOptimize || rctx.UserTier == TierFree:
		return StrategyFreeFirst
	case reliabilityOptimize || rctx.UserTier == TierEnterprise:
		return StrategyReliabilityFirst
	default:
		return StrategyPaidFirst
	}
}
