package router

import (
	"regexp"
	"sort"
	"strings"
)

// Rule matches a tracking number format against the provider that owns it.
// Confidence expresses how specific the pattern is; Priority breaks ties
// between rules with equal confidence (lower wins).
type Rule struct {
	Provider   string
	Pattern    *regexp.Regexp
	Confidence float64
	Priority   int
}

// Match is the outcome of carrier-format detection.
type Match struct {
	Provider   string
	Confidence float64
}

// prefixConfidenceCap bounds what a prefix heuristic may claim: a three
// letter prefix is never as specific as a full format rule.
const prefixConfidenceCap = 0.60

// detectionThreshold is the minimum rule confidence before falling back to
// prefix heuristics.
const detectionThreshold = 0.5

// DefaultRules covers the ISO 6346 owner codes of the carriers the service
// integrates with, plus a low-confidence generic container-number fallback.
func DefaultRules() []Rule {
	return []Rule{
		{Provider: "maersk", Pattern: regexp.MustCompile(`^(MAEU|MRKU|MSKU)\d{7}$`), Confidence: 0.95, Priority: 1},
		{Provider: "msc", Pattern: regexp.MustCompile(`^(MSCU|MEDU)\d{7}$`), Confidence: 0.92, Priority: 1},
		{Provider: "cma-cgm", Pattern: regexp.MustCompile(`^(CMAU|CGMU)\d{7}$`), Confidence: 0.90, Priority: 2},
		{Provider: "hapag-lloyd", Pattern: regexp.MustCompile(`^(HLCU|HLXU)\d{7}$`), Confidence: 0.90, Priority: 2},
		{Provider: "one-line", Pattern: regexp.MustCompile(`^(ONEU|ONEY)\d{7}$`), Confidence: 0.88, Priority: 2},
		{Provider: "generic", Pattern: regexp.MustCompile(`^[A-Z]{4}\d{7}$`), Confidence: 0.30, Priority: 100},
	}
}

// DefaultPrefixes maps known three-letter carrier prefixes used by the
// heuristic fallback when no rule matches above the threshold.
func DefaultPrefixes() map[string]Match {
	return map[string]Match{
		"MAE": {Provider: "maersk", Confidence: 0.60},
		"MRK": {Provider: "maersk", Confidence: 0.55},
		"MSC": {Provider: "msc", Confidence: 0.60},
		"MED": {Provider: "msc", Confidence: 0.50},
		"CMA": {Provider: "cma-cgm", Confidence: 0.60},
		"CGM": {Provider: "cma-cgm", Confidence: 0.55},
		"HLC": {Provider: "hapag-lloyd", Confidence: 0.60},
		"HLX": {Provider: "hapag-lloyd", Confidence: 0.55},
		"ONE": {Provider: "one-line", Confidence: 0.60},
	}
}

// Detect runs carrier-format detection for a tracking number: format rules
// first, ordered by confidence then priority, then prefix heuristics when no
// rule clears the threshold. The zero Match means nothing was detected.
func Detect(trackingNumber string, rules []Rule, prefixes map[string]Match) Match {
	number := strings.ToUpper(strings.TrimSpace(trackingNumber))
	if number == "" {
		return Match{}
	}

	matched := make([]Rule, 0, 2)
	for _, rule := range rules {
		if rule.Pattern != nil && rule.Pattern.MatchString(number) {
			matched = append(matched, rule)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Confidence != matched[j].Confidence {
			return matched[i].Confidence > matched[j].Confidence
		}
		return matched[i].Priority < matched[j].Priority
	})
	if len(matched) > 0 && matched[0].Confidence > detectionThreshold {
		return Match{Provider: matched[0].Provider, Confidence: matched[0].Confidence}
	}

	if len(number) >= 3 {
		if hint, ok := prefixes[number[:3]]; ok {
			confidence := hint.Confidence
			if confidence > prefixConfidenceCap {
				confidence = prefixConfidenceCap
			}
			return Match{Provider: hint.Provider, Confidence: confidence}
		}
	}

	if len(matched) > 0 {
		return Match{Provider: matched[0].Provider, Confidence: matched[0].Confidence}
	}
	return Match{}
}
