package autoplay

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// StaticProviderConfig holds settings for the static provider.
type StaticProviderConfig struct {
	Candidates []string `yaml:"candidates" mapstructure:"candidates" validate:"required,min=1"`
}

// StaticProvider picks uniformly from a fixed candidate query set.
type StaticProvider struct {
	config *StaticProviderConfig
}

// NewStaticProvider creates a static provider from its settings block.
func NewStaticProvider(settings map[string]any) (*StaticProvider, error) {
	var config StaticProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &StaticProvider{config: &config}, nil
}

// Next implements Provider. Candidates excluded for variety are skipped when
// possible; with every candidate excluded the pick is uniform over all.
func (p *StaticProvider) Next(ctx context.Context, seeds []string, exclude map[string]bool) (string, error) {
	available := make([]string, 0, len(p.config.Candidates))
	for _, c := range p.config.Candidates {
		if !exclude[c] {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		available = p.config.Candidates
	}
	return available[rand.Intn(len(available))], nil
}

// Name implements Provider.
func (p *StaticProvider) Name() string {
	return "static"
}
