package provider

import "time"

// TrackingType identifies the kind of reference number a query carries.
type TrackingType string

const (
	// TypeContainer tracks a single container (ISO 6346 number).
	TypeContainer TrackingType = "container"
	// TypeBooking tracks a carrier booking reference.
	TypeBooking TrackingType = "booking"
	// TypeBOL tracks a bill of lading.
	TypeBOL TrackingType = "bol"
)

// ParseTrackingType maps an external label onto a TrackingType. Unknown or
// empty labels default to container tracking.
func ParseTrackingType(value string) TrackingType {
	switch TrackingType(value) {
	case TypeBooking:
		return TypeBooking
	case TypeBOL:
		return TypeBOL
	default:
		return TypeContainer
	}
}

// Query describes one tracking lookup. It is immutable and constructed per
// request.
type Query struct {
	TrackingNumber string
	Type           TrackingType
	ForceRefresh   bool
}

// Tier groups providers by how aggressively they are retried.
type Tier string

const (
	// TierPrimary marks first-party carrier APIs.
	TierPrimary Tier = "primary"
	// TierAggregator marks low-cost multi-carrier aggregators.
	TierAggregator Tier = "aggregator"
)

// Profile is the static metadata a provider declares once at startup.
type Profile struct {
	ID              string
	CostUnits       int
	BaseReliability float64
	SupportedTypes  []TrackingType
	Tier            Tier
	Timeout         time.Duration
}

// Supports reports whether the provider can answer queries of the given type.
func (p Profile) Supports(t TrackingType) bool {
	for _, supported := range p.SupportedTypes {
		if supported == t {
			return true
		}
	}
	return false
}

// Coordinates is an optional event position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is a single entry in a shipment's tracking timeline.
type Event struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Status      string       `json:"status"`
	Location    string       `json:"location"`
	Completed   bool         `json:"completed"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Container describes one container attached to a shipment.
type Container struct {
	Number string `json:"number"`
	Size   string `json:"size,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Vessel describes the vessel currently carrying the shipment.
type Vessel struct {
	Name    string `json:"name"`
	IMO     string `json:"imo,omitempty"`
	Flag    string `json:"flag,omitempty"`
	Voyage  string `json:"voyage,omitempty"`
}

// Route describes origin, destination and intermediate ports.
type Route struct {
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	Intermediate []string `json:"intermediate,omitempty"`
}

// Canonical is the provider-agnostic answer shape every adapter must produce.
type Canonical struct {
	Carrier    string      `json:"carrier"`
	Service    string      `json:"service,omitempty"`
	Status     string      `json:"status"`
	Timeline   []Event     `json:"timeline"`
	Containers []Container `json:"containers,omitempty"`
	Vessel     *Vessel     `json:"vessel,omitempty"`
	Route      *Route      `json:"route,omitempty"`
}

// RawResult is one provider's raw answer to one query attempt. It is consumed
// immediately by the merge engine and never persisted.
type RawResult struct {
	ProviderID     string
	TrackingNumber string
	Payload        *Canonical
	FetchedAt      time.Time
	Reliability    float64
	Err            *Error
}

// OK reports whether the result carries usable payload data.
func (r RawResult) OK() bool {
	return r.Err == nil && r.Payload != nil
}
