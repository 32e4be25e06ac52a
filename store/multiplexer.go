package store

import (
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/model"
)

// Multiplexer chains identifiable providers into one: lookups try each in
// order and return the first hit. It lets references resolve across several
// stores, in-memory and persistent alike.
type Multiplexer struct {
	providers []model.IdentifiableProvider
}

var _ model.IdentifiableProvider = (*Multiplexer)(nil)

// NewMultiplexer chains the given providers. Order is lookup order.
func NewMultiplexer(providers ...model.IdentifiableProvider) *Multiplexer {
	return &Multiplexer{providers: providers}
}

// Append adds another provider at the end of the lookup order.
func (m *Multiplexer) Append(p model.IdentifiableProvider) {
	m.providers = append(m.providers, p)
}

// GetIdentifiable returns the first provider's object stored under id.
// Not-found misses move on to the next provider; any other failure stops the
// lookup. With no provider holding id, the error names how many were tried.
func (m *Multiplexer) GetIdentifiable(id string) (model.Identifiable, error) {
	for _, p := range m.providers {
		x, err := p.GetIdentifiable(id)
		if err == nil {
			return x, nil
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, errors.NewNotFound("identifier %q not found in any of %d providers", id, len(m.providers))
}
