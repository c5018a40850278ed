package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Rules is the editable data behind normalization and enrichment. Every
// slice is evaluated in order, first match wins.
type Rules struct {
	DefaultRegion string            `yaml:"defaultRegion"`
	Months        []string          `yaml:"months"`
	TextAliases   map[string]string `yaml:"textAliases"`
	BrandAliases  map[string]string `yaml:"brandAliases"`
	Regions       []RegionCoord     `yaml:"regions"`
	Locations     []LocationRule    `yaml:"locations"`
	Volumes       []VolumeRule      `yaml:"volumes"`
	Alcohol       []ABVRule         `yaml:"alcohol"`
}

// RegionCoord places a region tag on the map.
type RegionCoord struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// LocationRule maps any of its keywords, found as a substring of a place, to
// a region.
type LocationRule struct {
	Region   string   `yaml:"region"`
	Keywords []string `yaml:"keywords"`
}

// VolumeRule gives the serving size of a drink category. Places override
// Liters when one of their keywords is found in the place name.
type VolumeRule struct {
	Category string        `yaml:"category"`
	Keywords []string      `yaml:"keywords"`
	Liters   float64       `yaml:"liters"`
	Places   []PlaceVolume `yaml:"places"`
}

// PlaceVolume is a place-specific serving size.
type PlaceVolume struct {
	Keywords []string `yaml:"keywords"`
	Liters   float64  `yaml:"liters"`
}

// ABVRule gives the assumed alcohol-by-volume fraction of a drink category.
type ABVRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	ABV      float64  `yaml:"abv"`
}

// DefaultRules returns the embedded rule tables.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads the rule tables from path, or the embedded defaults when
// path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	rules, err := ParseRules(raw)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes and validates a YAML rule document. Keywords and alias
// keys are lowercased.
func ParseRules(raw []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	r.canonicalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Coordinates returns the region table keyed by region name.
func (r *Rules) Coordinates() map[string]RegionCoord {
	out := make(map[string]RegionCoord, len(r.Regions))
	for _, c := range r.Regions {
		out[c.Name] = c
	}
	return out
}

// Validate checks that the month table is complete and that every region a
// rule can produce has coordinates.
func (r *Rules) Validate() error {
	var errs []error

	if len(r.Months) != 12 {
		errs = append(errs, fmt.Errorf("months: want 12 entries, got %d", len(r.Months)))
	}
	for i, m := range r.Months {
		if len([]rune(m)) != 3 {
			errs = append(errs, fmt.Errorf("months[%d]: %q is not a 3-letter prefix", i, m))
		}
	}

	known := r.Coordinates()
	if len(known) == 0 {
		errs = append(errs, errors.New("regions: table is empty"))
	}
	if _, ok := known[r.DefaultRegion]; !ok {
		errs = append(errs, fmt.Errorf("defaultRegion: %q has no coordinates", r.DefaultRegion))
	}
	for i, l := range r.Locations {
		if _, ok := known[l.Region]; !ok {
			errs = append(errs, fmt.Errorf("locations[%d]: region %q has no coordinates", i, l.Region))
		}
		if len(l.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("locations[%d]: no keywords", i))
		}
	}

	for i, v := range r.Volumes {
		if v.Liters < 0 {
			errs = append(errs, fmt.Errorf("volumes[%d]: negative liters", i))
		}
		for j, p := range v.Places {
			if p.Liters < 0 {
				errs = append(errs, fmt.Errorf("volumes[%d].places[%d]: negative liters", i, j))
			}
		}
	}
	for i, a := range r.Alcohol {
		if a.ABV < 0 || a.ABV > 1 {
			errs = append(errs, fmt.Errorf("alcohol[%d]: abv %v outside [0, 1]", i, a.ABV))
		}
	}

	return errors.Join(errs...)
}

func (r *Rules) canonicalize() {
	r.DefaultRegion = strings.TrimSpace(r.DefaultRegion)
	for i := range r.Months {
		r.Months[i] = strings.ToLower(strings.TrimSpace(r.Months[i]))
	}
	r.TextAliases = lowerKeys(r.TextAliases)
	r.BrandAliases = lowerKeys(r.BrandAliases)
	for i := range r.Locations {
		lowerAll(r.Locations[i].Keywords)
	}
	for i := range r.Volumes {
		lowerAll(r.Volumes[i].Keywords)
		for j := range r.Volumes[i].Places {
			lowerAll(r.Volumes[i].Places[j].Keywords)
		}
	}
	for i := range r.Alcohol {
		lowerAll(r.Alcohol[i].Keywords)
	}
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func lowerAll(ss []string) {
	for i, s := range ss {
		ss[i] = strings.ToLower(strings.TrimSpace(s))
	}
}
