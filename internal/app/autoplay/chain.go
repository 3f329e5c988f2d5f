package autoplay

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Chain tries providers in order until one returns a query.
type Chain struct {
	providers []Provider
}

// NewChain creates a provider chain.
func NewChain(providers []Provider) *Chain {
	return &Chain{providers: providers}
}

// Next implements Provider. Provider failures are logged and the next
// provider is tried; an error is returned only when all providers fail.
func (c *Chain) Next(ctx context.Context, seeds []string, exclude map[string]bool) (string, error) {
	if len(c.providers) == 0 {
		return "", errors.New("no autoplay providers configured")
	}

	for i, p := range c.providers {
		query, err := p.Next(ctx, seeds, exclude)
		if err != nil {
			zlog.Warn().Msgf("autoplay: provider failed, trying next: index=%d provider=%s error=%v", i+1, p.Name(), err)
			continue
		}
		if query == "" {
			continue
		}
		zlog.Debug().Msgf("autoplay: provider selected query: provider=%s query=%s", p.Name(), query)
		return query, nil
	}

	return "", errors.New("all autoplay providers failed")
}

// Name implements Provider.
func (c *Chain) Name() string {
	return "chain"
}
