package chain

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/omniwallet/omniwallet/internal/domain"
	"github.com/omniwallet/omniwallet/internal/models"
)

// Registry holds one adapter per supported backend. Registration happens once
// at process start from static configuration; no mutation afterward.
type Registry struct {
	adapters map[string]Adapter
	backends map[string]models.Backend
}

// NewRegistry builds a registry from backend descriptors and their adapters.
// Every descriptor must have a matching adapter.
func NewRegistry(backends []models.Backend, adapters []Adapter) (*Registry, error) {
	byID := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		if _, dup := byID[a.BackendID()]; dup {
			return nil, fmt.Errorf("duplicate adapter for backend %q", a.BackendID())
		}
		byID[a.BackendID()] = a
	}

	descriptors := make(map[string]models.Backend, len(backends))
	for _, b := range backends {
		if _, ok := byID[b.ID]; !ok {
			return nil, fmt.Errorf("no adapter registered for backend %q", b.ID)
		}
		descriptors[b.ID] = b
	}

	return &Registry{adapters: byID, backends: descriptors}, nil
}

// Resolve returns the adapter for a backend id. Fails with
// domain.ErrUnknownBackend if the backend is not registered or not enabled.
func (r *Registry) Resolve(backendID string) (Adapter, error) {
	b, ok := r.backends[backendID]
	if !ok || !b.Enabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, backendID)
	}
	return r.adapters[backendID], nil
}

// Backend returns the descriptor for a backend id, enabled or not.
func (r *Registry) Backend(backendID string) (models.Backend, error) {
	b, ok := r.backends[backendID]
	if !ok {
		return models.Backend{}, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, backendID)
	}
	return b, nil
}

// ListEnabled returns the backends available to an avatar, sorted by id.
// Per-avatar allow-lists are resolved by the session service; the registry
// only filters globally disabled backends.
func (r *Registry) ListEnabled(avatarID uuid.UUID) []models.Backend {
	out := make([]models.Backend, 0, len(r.backends))
	for _, b := range r.backends {
		if b.Enabled {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
