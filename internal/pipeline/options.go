package pipeline

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/planbiir/trackconv/internal/track"
)

// Grouping decides what a multi-file run writes.
type Grouping string

const (
	// GroupMerge merges every input into the single output file.
	GroupMerge Grouping = "merge"
	// GroupPerFile converts each input separately into the output directory.
	GroupPerFile Grouping = "per-file"
)

// Options configures one pipeline. The zero value is not valid; start from
// DefaultOptions.
type Options struct {
	MinDistanceMeters int      `mapstructure:"min_distance" yaml:"min_distance" validate:"gte=1"`
	ExtractWaypoints  bool     `mapstructure:"waypoints" yaml:"waypoints"`
	IncludeElevation  bool     `mapstructure:"elevation" yaml:"elevation"`
	Grouping          Grouping `mapstructure:"grouping" yaml:"grouping" validate:"oneof=merge per-file"`
	// TargetFormat is only read in per-file mode; empty converts each file
	// to the other format.
	TargetFormat string `mapstructure:"target_format" yaml:"target_format" validate:"omitempty,oneof=gpx kml"`
	// Workers bounds parallel file processing, runtime.NumCPU() when 0.
	Workers int `mapstructure:"workers" yaml:"workers" validate:"gte=0,lte=256"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MinDistanceMeters: 20,
		ExtractWaypoints:  true,
		IncludeElevation:  true,
		Grouping:          GroupMerge,
	}
}

var validate = validator.New()

// Validate reports every out-of-range field as one ErrInvalidParameter.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %s", track.ErrInvalidParameter, describe(err))
	}
	return nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}
