package cache

import (
	"strings"
	"time"
)

// TTLPolicy maps a merged shipment status onto a cache TTL. Terminal
// shipments barely change, so they keep long TTLs; shipments in active
// transit refresh on short ones; anything unrecognized gets the minimal
// default. The TTL is computed once at insertion and never re-evaluated.
type TTLPolicy struct {
	Terminal time.Duration
	Transit  time.Duration
	Default  time.Duration
}

// DefaultTTLPolicy provides sensible defaults.
var DefaultTTLPolicy = TTLPolicy{
	Terminal: 6 * time.Hour,
	Transit:  10 * time.Minute,
	Default:  3 * time.Minute,
}

var transitStatuses = map[string]struct{}{
	"in transit":       {},
	"in-transit":       {},
	"transit":          {},
	"shipped":          {},
	"loaded":           {},
	"discharged":       {},
	"departed":         {},
	"arrived":          {},
	"gate in":          {},
	"gate out":         {},
	"out for delivery": {},
}

// ForStatus returns the TTL for a merged status string.
func (p TTLPolicy) ForStatus(status string) time.Duration {
	normalized := strings.ToLower(strings.TrimSpace(status))
	switch normalized {
	case "delivered", "cancelled", "canceled":
		return p.orDefaults().Terminal
	}
	if _, ok := transitStatuses[normalized]; ok || strings.Contains(normalized, "transit") {
		return p.orDefaults().Transit
	}
	return p.orDefaults().Default
}

func (p TTLPolicy) orDefaults() TTLPolicy {
	if p.Terminal <= 0 {
		p.Terminal = DefaultTTLPolicy.Terminal
	}
	if p.Transit <= 0 {
		p.Transit = DefaultTTLPolicy.Transit
	}
	if p.Default <= 0 {
		p.Default = DefaultTTLPolicy.Default
	}
	return p
}
