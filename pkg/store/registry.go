package store

import (
	"sort"

	"github.com/ajitpratap0/coltable/pkg/errors"
)

// FactoryRegistry maps persisted factory identifiers to factories. It is
// built once and never modified.
type FactoryRegistry struct {
	factories map[string]Factory
}

// NewFactoryRegistry builds a registry. Duplicate identifiers are a config
// error.
func NewFactoryRegistry(factories ...Factory) (*FactoryRegistry, error) {
	r := &FactoryRegistry{factories: make(map[string]Factory, len(factories))}
	for _, f := range factories {
		if _, dup := r.factories[f.ID()]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate store factory %q", f.ID())
		}
		r.factories[f.ID()] = f
	}
	return r, nil
}

// Lookup returns the factory for id.
func (r *FactoryRegistry) Lookup(id string) (Factory, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown store factory %q", id).
			WithDetail("known", r.IDs())
	}
	return f, nil
}

// IDs returns the registered identifiers, sorted.
func (r *FactoryRegistry) IDs() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
