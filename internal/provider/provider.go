package provider

import (
	"context"
	"errors"
	"strings"
)

// Provider models a tracking data source capable of answering one query.
// Implementations must return either a RawResult with payload data or an
// error normalizable into the *Error taxonomy; they never both fail and
// return data.
type Provider interface {
	Fetch(ctx context.Context, q Query) (RawResult, error)
	Describe() Profile
}

// Registry holds the configured providers in registration order. The order
// is significant: the merge engine breaks reliability ties in favour of the
// first-registered provider.
type Registry struct {
	order []string
	byID  map[string]Provider
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Provider)}
}

// Register adds a provider. Registering a duplicate or empty id is an error.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("provider: nil provider")
	}
	id := strings.TrimSpace(p.Describe().ID)
	if id == "" {
		return errors.New("provider: profile id is required")
	}
	if _, exists := r.byID[id]; exists {
		return errors.New("provider: duplicate provider id " + id)
	}
	r.byID[id] = p
	r.order = append(r.order, id)
	return nil
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// IDs returns provider ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Profiles returns the declared profiles in registration order.
func (r *Registry) Profiles() []Profile {
	profiles := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		profiles = append(profiles, r.byID[id].Describe())
	}
	return profiles
}

// Len reports the number of registered providers.
func (r *Registry) Len() int {
	return len(r.order)
}
