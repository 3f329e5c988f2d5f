package autoplay

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// RelatedProviderConfig holds settings for the related provider.
type RelatedProviderConfig struct {
	SeedCount      int `yaml:"seed_count" mapstructure:"seed_count" default:"3" validate:"gte=1"`
	CandidateCount int `yaml:"candidate_count" mapstructure:"candidate_count" default:"5" validate:"gte=1"`
}

// RelatedProvider asks the resolution backend for queries related to
// recently played tracks.
type RelatedProvider struct {
	client RelatedClient
	config *RelatedProviderConfig
}

// NewRelatedProvider creates a related provider from its settings block.
func NewRelatedProvider(client RelatedClient, settings map[string]any) (*RelatedProvider, error) {
	var config RelatedProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &RelatedProvider{client: client, config: &config}, nil
}

// Next implements Provider.
func (p *RelatedProvider) Next(ctx context.Context, seeds []string, exclude map[string]bool) (string, error) {
	if len(seeds) == 0 {
		return "", errors.New("no seed tracks available")
	}
	if len(seeds) > p.config.SeedCount {
		seeds = seeds[:p.config.SeedCount]
	}

	queries, err := p.client.Related(ctx, seeds, p.config.CandidateCount)
	if err != nil {
		return "", errors.Wrap(err, "related lookup failed")
	}

	available := make([]string, 0, len(queries))
	for _, q := range queries {
		if !exclude[q] {
			available = append(available, q)
		}
	}
	if len(available) == 0 {
		zlog.Debug().Msgf("autoplay: all %d related queries excluded", len(queries))
		return "", errors.New("no usable related queries")
	}
	return available[rand.Intn(len(available))], nil
}

// Name implements Provider.
func (p *RelatedProvider) Name() string {
	return "related"
}
