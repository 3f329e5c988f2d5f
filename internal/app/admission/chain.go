package admission

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates an empty filter chain.
func NewChain() *Chain {
	return &Chain{filters: make([]Filter, 0)}
}

// NewChainFromConfig builds a chain with every enabled, configured filter.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	chain := NewChain()

	for name, factory := range GetRegistered() {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f := factory()
		if err := f.ValidateConfig(cfg.FilterSettings(name)); err != nil {
			return nil, errors.Wrapf(err, "invalid config for filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("registered admission filter: name=%s", name)
	}

	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the request.
// Filters are only applied if they declare they apply to the track's origin.
func (c *Chain) Execute(req Request) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(req.Track.Origin) {
			continue
		}

		result := f.Check(req)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
