package autoplay

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/infra/config"
)

// NewChainFromConfig creates a provider chain from configuration.
// An empty provider list is allowed: autoplay then simply never selects
// anything and engines fall back to the idle policy.
func NewChainFromConfig(cfg *config.Config, related RelatedClient) (*Chain, error) {
	var providers []Provider

	for i, pcfg := range cfg.Autoplay.Providers {
		var provider Provider
		var err error

		switch pcfg.Type {
		case "static":
			provider, err = NewStaticProvider(pcfg.Settings)

		case "related":
			provider, err = NewRelatedProvider(related, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, provider)
		zlog.Info().Msgf("registered autoplay provider: index=%d type=%s", i+1, pcfg.Type)
	}

	return NewChain(providers), nil
}
