package admission

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/domain/track"
)

// SourceConfig represents the configuration for SourceFilter.
type SourceConfig struct {
	Schemes []string `yaml:"schemes" mapstructure:"schemes" default:"[\"http\",\"https\"]" validate:"min=1"`
}

// SourceFilter rejects direct URLs with a disallowed scheme.
// Free-text search queries always pass.
type SourceFilter struct {
	config *SourceConfig
}

// NewSourceFilter creates a new source filter.
func NewSourceFilter() *SourceFilter {
	return &SourceFilter{}
}

func (f *SourceFilter) Name() string {
	return "source"
}

func (f *SourceFilter) Description() string {
	return "Checks that direct URLs use an allowed scheme"
}

func (f *SourceFilter) ReturnCodes() []string {
	return []string{"source_not_allowed"}
}

func (f *SourceFilter) ValidateConfig(settings map[string]any) error {
	var config SourceConfig

	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	f.config = &config
	zlog.Info().Msgf("source filter config: %+v", config)
	return nil
}

func (f *SourceFilter) AppliesTo(origin track.Origin) bool {
	return origin == track.OriginUser
}

func (f *SourceFilter) Check(req Request) Result {
	if f.config == nil || !req.Track.IsDirectURL() {
		return Accept()
	}

	u, err := url.Parse(req.Track.Source)
	if err != nil {
		return Reject("source_not_allowed")
	}
	for _, s := range f.config.Schemes {
		if strings.EqualFold(u.Scheme, s) {
			return Accept()
		}
	}
	return Reject("source_not_allowed")
}

func init() {
	Register("source", func() Filter {
		return &SourceFilter{}
	})
}
