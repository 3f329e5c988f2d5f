package admission

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/domain/track"
)

// QueueLimitConfig represents the configuration for QueueLimitFilter.
type QueueLimitConfig struct {
	MaxLength int `yaml:"max_length" mapstructure:"max_length" default:"100" validate:"gte=1"`
}

// QueueLimitFilter rejects requests once a guild's pending queue is full.
type QueueLimitFilter struct {
	config *QueueLimitConfig
}

// NewQueueLimitFilter creates a new queue limit filter.
func NewQueueLimitFilter() *QueueLimitFilter {
	return &QueueLimitFilter{}
}

func (f *QueueLimitFilter) Name() string {
	return "queue_limit"
}

func (f *QueueLimitFilter) Description() string {
	return "Checks that the guild's pending queue has not reached its maximum length"
}

func (f *QueueLimitFilter) ReturnCodes() []string {
	return []string{"queue_full"}
}

func (f *QueueLimitFilter) ValidateConfig(settings map[string]any) error {
	var config QueueLimitConfig

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
	zlog.Info().Msgf("queue limit filter config: %+v", config)
	return nil
}

func (f *QueueLimitFilter) AppliesTo(origin track.Origin) bool {
	// Autoplay fillers never enter the queue, so only user requests count.
	return origin == track.OriginUser
}

func (f *QueueLimitFilter) Check(req Request) Result {
	if f.config == nil {
		return Accept()
	}
	if req.QueueLength >= f.config.MaxLength {
		return Reject("queue_full")
	}
	return Accept()
}

func init() {
	Register("queue_limit", func() Filter {
		return &QueueLimitFilter{}
	})
}
