package admission

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/domain/track"
)

// VolumeRangeConfig represents the configuration for VolumeRangeFilter.
type VolumeRangeConfig struct {
	Min float64 `yaml:"min" mapstructure:"min" validate:"gte=0"`
	Max float64 `yaml:"max" mapstructure:"max" default:"2.0" validate:"gt=0"`
}

// VolumeRangeFilter rejects requests whose volume multiplier is out of range.
type VolumeRangeFilter struct {
	config *VolumeRangeConfig
}

// NewVolumeRangeFilter creates a new volume range filter.
func NewVolumeRangeFilter() *VolumeRangeFilter {
	return &VolumeRangeFilter{}
}

func (f *VolumeRangeFilter) Name() string {
	return "volume_range"
}

func (f *VolumeRangeFilter) Description() string {
	return "Checks that the requested volume multiplier is within the allowed range"
}

func (f *VolumeRangeFilter) ReturnCodes() []string {
	return []string{"volume_out_of_range"}
}

func (f *VolumeRangeFilter) ValidateConfig(settings map[string]any) error {
	var config VolumeRangeConfig

	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	if config.Min > config.Max {
		return errors.New("min cannot be greater than max")
	}

	f.config = &config
	zlog.Info().Msgf("volume range filter config: %+v", config)
	return nil
}

func (f *VolumeRangeFilter) AppliesTo(origin track.Origin) bool {
	// Volume on any externally supplied request is checked.
	return origin == track.OriginUser || origin == track.OriginSpeech
}

func (f *VolumeRangeFilter) Check(req Request) Result {
	if f.config == nil {
		return Accept()
	}
	v := req.Track.Volume
	if v < f.config.Min || v > f.config.Max {
		return Reject("volume_out_of_range")
	}
	return Accept()
}

func init() {
	Register("volume_range", func() Filter {
		return &VolumeRangeFilter{}
	})
}
