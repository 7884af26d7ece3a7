package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/region"
)

// RegionQuery is a region query stored in TOML:
//
//	attribute = "health"
//	timeout = "10s"
//
//	[[regions."minecraft:overworld"]]
//	x1 = -100
//	y1 = 0
//	z1 = -100
//	x2 = 100
//	y2 = 320
//	z2 = 100
type RegionQuery struct {
	Attribute string      `toml:"attribute" json:"attribute"`
	Timeout   string      `toml:"timeout,omitempty" json:"timeout,omitempty"`
	Regions   region.Spec `toml:"regions" json:"regions"`
}

// Validate checks the spec, the attribute and the timeout.
func (q RegionQuery) Validate() error {
	if err := q.Regions.Validate(); err != nil {
		return err
	}
	if err := region.ValidateAttribute(q.Attribute); err != nil {
		return err
	}
	_, err := q.TimeoutDuration()
	return err
}

// TimeoutDuration parses Timeout. An empty Timeout yields 0 (use the default).
func (q RegionQuery) TimeoutDuration() (time.Duration, error) {
	if q.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(q.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", q.Timeout, err)
	}
	return d, nil
}

// LoadRegionQuery reads and validates a single region query file.
func LoadRegionQuery(path string) (RegionQuery, error) {
	var q RegionQuery
	data, err := os.ReadFile(path)
	if err != nil {
		return q, fmt.Errorf("failed to read region file: %w", err)
	}
	if err := toml.Unmarshal(data, &q); err != nil {
		return q, fmt.Errorf("failed to parse region file: %w", err)
	}
	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

// LoadRegionPresets reads named region queries from a [presets.<name>] file.
// A missing file yields no presets.
func LoadRegionPresets(path string) (map[string]RegionQuery, error) {
	presets := make(map[string]RegionQuery)
	if path == "" {
		return presets, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return presets, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read presets: %w", err)
	}

	var file struct {
		Presets map[string]RegionQuery `toml:"presets"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	for name, q := range file.Presets {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		presets[name] = q
	}
	return presets, nil
}

// PresetStore holds the current region presets. Safe for concurrent use;
// Set replaces the whole set on reload.
type PresetStore struct {
	mu      sync.RWMutex
	presets map[string]RegionQuery
}

// NewPresetStore creates a store holding presets.
func NewPresetStore(presets map[string]RegionQuery) *PresetStore {
	s := &PresetStore{}
	s.Set(presets)
	return s
}

// Set replaces the stored presets.
func (s *PresetStore) Set(presets map[string]RegionQuery) {
	if presets == nil {
		presets = make(map[string]RegionQuery)
	}
	s.mu.Lock()
	s.presets = presets
	s.mu.Unlock()
}

// Preset returns the named preset.
func (s *PresetStore) Preset(name string) (RegionQuery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.presets[name]
	return q, ok
}

// Names returns the preset names in sorted order.
func (s *PresetStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.presets))
}
