// Package catalog provides default FAO-56 crop profiles.
package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

//go:embed crops.yaml
var builtin []byte

const maxSuggestDistance = 3

type Catalog struct {
	crops map[string]entities.CropProfile
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(strings.NewReader(string(builtin)))
	if err != nil {
		panic("catalog: embedded crops.yaml: " + err.Error())
	}
	return c
}

// Load reads a catalog file; an empty path yields the built-in one.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crop catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Catalog, error) {
	var list []entities.CropProfile
	if err := yaml.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode crop catalog: %w", err)
	}
	c := &Catalog{crops: make(map[string]entities.CropProfile, len(list))}
	for _, p := range list {
		key := normalize(p.Name)
		if key == "" {
			return nil, fmt.Errorf("crop catalog: entry without name")
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("crop catalog: %s: %w", p.Name, err)
		}
		c.crops[key] = p
	}
	return c, nil
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// Names lists crop names in alphabetical order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.crops))
	for _, p := range c.crops {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

// Lookup finds a crop by case-insensitive name. Unknown names fail with a
// ValidationError that suggests the closest known crop when one is near.
func (c *Catalog) Lookup(name string) (entities.CropProfile, error) {
	key := normalize(name)
	if p, ok := c.crops[key]; ok {
		return p, nil
	}
	if s := c.Suggest(key); s != "" {
		return entities.CropProfile{}, simerr.Invalid("catalog", "crop", "unknown crop %q (did you mean %q?)", name, s)
	}
	return entities.CropProfile{}, simerr.Invalid("catalog", "crop", "unknown crop %q", name)
}

// Suggest returns the closest crop name within a small edit distance, or "".
func (c *Catalog) Suggest(name string) string {
	best, bestD := "", maxSuggestDistance+1
	for _, n := range c.Names() {
		if d := levenshtein.ComputeDistance(normalize(name), normalize(n)); d < bestD {
			best, bestD = n, d
		}
	}
	return best
}

// Override is a partial crop profile; set fields replace catalog values.
type Override struct {
	KcbIni *float64               `json:"kcb_ini,omitempty"`
	KcbMid *float64               `json:"kcb_mid,omitempty"`
	KcbEnd *float64               `json:"kcb_end,omitempty"`
	Stages *entities.StageLengths `json:"stages,omitempty"`
	HIni   *float64               `json:"h_ini,omitempty"`
	HMax   *float64               `json:"h_max,omitempty"`
	ZrIni  *float64               `json:"zr_ini,omitempty"`
	ZrMax  *float64               `json:"zr_max,omitempty"`
	P      *float64               `json:"p,omitempty"`
	CN2    *float64               `json:"cn2,omitempty"`
}

// Apply returns p with every set override field replaced.
func (o Override) Apply(p entities.CropProfile) entities.CropProfile {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.KcbIni, o.KcbIni)
	set(&p.KcbMid, o.KcbMid)
	set(&p.KcbEnd, o.KcbEnd)
	set(&p.HIni, o.HIni)
	set(&p.HMax, o.HMax)
	set(&p.ZrIni, o.ZrIni)
	set(&p.ZrMax, o.ZrMax)
	set(&p.P, o.P)
	set(&p.CN2, o.CN2)
	if o.Stages != nil {
		p.Stages = *o.Stages
	}
	return p
}
