package elevation

import (
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/planbiir/trackconv/internal/geo"
	"github.com/planbiir/trackconv/internal/track"
)

// DefaultTableRadius is used when a table file does not set radius_m.
const DefaultTableRadius = 250.0

// Sample is one surveyed height.
type Sample struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
	Ele float64 `yaml:"ele"`
}

// Table answers lookups from a fixed list of samples: the nearest sample
// within RadiusMeters wins.
//
//	radius_m: 250
//	samples:
//	  - {lat: 46.0, lon: 7.0, ele: 1200}
type Table struct {
	RadiusMeters float64  `yaml:"radius_m"`
	Samples      []Sample `yaml:"samples"`
}

// LoadTable reads a YAML sample table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read elevation table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML sample table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: elevation table: %v", track.ErrInvalidParameter, err)
	}
	if t.RadiusMeters == 0 {
		t.RadiusMeters = DefaultTableRadius
	}
	if t.RadiusMeters < 0 {
		return nil, fmt.Errorf("%w: elevation table radius_m must be positive", track.ErrInvalidParameter)
	}
	for i, s := range t.Samples {
		if _, err := track.NewPoint(s.Lat, s.Lon); err != nil {
			return nil, fmt.Errorf("elevation table sample %d: %w", i, err)
		}
	}
	return &t, nil
}

// Lookup implements Source.
func (t *Table) Lookup(ctx context.Context, lat, lon float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", track.ErrElevationUnavailable, err)
	}

	best := math.Inf(1)
	var ele float64
	for _, s := range t.Samples {
		if d := geo.Haversine(lat, lon, s.Lat, s.Lon); d < best {
			best = d
			ele = s.Ele
		}
	}
	if best > t.RadiusMeters {
		return 0, fmt.Errorf("%w: no sample within %.0f m", track.ErrElevationUnavailable, t.RadiusMeters)
	}
	return ele, nil
}
