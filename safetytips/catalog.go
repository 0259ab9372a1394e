package safetytips

import (
	"errors"
	"fmt"
	"regexp"
)

// Rule associates a category with a case-insensitive pattern of alternatives.
type Rule struct {
	Category Category
	Pattern  string
}

// TipSet holds the advisory strings for one category in presentation order.
type TipSet struct {
	Category Category
	Tips     []string
}

// Catalog is the static configuration behind the classifier: detection rules,
// per-category tips in presentation order and the fallback list used when
// nothing is detected.
type Catalog struct {
	Rules    []Rule
	Tips     []TipSet
	Fallback []string
}

var defaultRules = []Rule{
	{Category: Speed, Pattern: `speed|fast|slow|mph|acceleration`},
	{Category: Braking, Pattern: `brake|stop|sudden|emergency`},
	{Category: LaneChange, Pattern: `lane|merge|switch|changing lanes`},
	{Category: Distraction, Pattern: `distract|phone|text|attention`},
	{Category: Turning, Pattern: `turn|corner|intersection|curve`},
}

var defaultTips = []TipSet{
	{Category: Speed, Tips: []string{
		"Maintain a consistent speed within posted limits",
		"Reduce speed in adverse weather conditions",
		"Allow extra distance for stopping at higher speeds",
	}},
	{Category: Braking, Tips: []string{
		"Practice smooth, gradual braking",
		"Maintain a safe following distance (3-second rule)",
		"Anticipate stops to avoid sudden braking",
	}},
	{Category: LaneChange, Tips: []string{
		"Always use turn signals when changing lanes",
		"Check blind spots before lane changes",
		"Avoid weaving between lanes unnecessarily",
	}},
	{Category: Distraction, Tips: []string{
		"Keep your phone out of reach while driving",
		"Set up GPS and music before starting your journey",
		"Pull over if you need to handle any distractions",
	}},
	{Category: Turning, Tips: []string{
		"Slow down before entering turns",
		"Use appropriate turn signals in advance",
		"Check for pedestrians when turning",
	}},
}

var defaultFallback = []string{
	"Always wear your seatbelt",
	"Stay focused on the road",
	"Follow traffic rules and signs",
}

// DefaultCatalog returns a deep copy of the compiled-in tables.
func DefaultCatalog() Catalog {
	return Catalog{
		Rules:    append([]Rule(nil), defaultRules...),
		Tips:     cloneTipSets(defaultTips),
		Fallback: append([]string(nil), defaultFallback...),
	}
}

// Order returns the categories of the tip tables in declaration order.
func (c Catalog) Order() []Category {
	out := make([]Category, 0, len(c.Tips))
	for _, set := range c.Tips {
		out = append(out, set.Category)
	}
	return out
}

// TipsFor returns a copy of the tips declared for cat, or nil.
func (c Catalog) TipsFor(cat Category) []string {
	for _, set := range c.Tips {
		if set.Category == cat {
			return append([]string(nil), set.Tips...)
		}
	}
	return nil
}

// Validate checks the tables for integrity problems that would otherwise make a
// detected category silently contribute nothing.
func (c Catalog) Validate() error {
	var errs []error
	tipCats := make(map[Category]bool, len(c.Tips))
	for _, set := range c.Tips {
		if !set.Category.Valid() {
			errs = append(errs, fmt.Errorf("tips: unknown category %q", set.Category))
		}
		if tipCats[set.Category] {
			errs = append(errs, fmt.Errorf("tips: duplicate category %q", set.Category))
		}
		tipCats[set.Category] = true
		if len(set.Tips) == 0 {
			errs = append(errs, fmt.Errorf("tips: category %q has no tips", set.Category))
		}
	}
	ruleCats := make(map[Category]bool, len(c.Rules))
	for _, r := range c.Rules {
		if ruleCats[r.Category] {
			errs = append(errs, fmt.Errorf("rules: duplicate category %q", r.Category))
		}
		ruleCats[r.Category] = true
		if !tipCats[r.Category] {
			errs = append(errs, fmt.Errorf("rules: category %q missing from tip catalog", r.Category))
		}
		if r.Pattern == "" {
			errs = append(errs, fmt.Errorf("rules: category %q has empty pattern", r.Category))
			continue
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("rules: category %q: %w", r.Category, err))
		}
	}
	if len(c.Fallback) == 0 {
		errs = append(errs, errors.New("fallback: no tips"))
	}
	return errors.Join(errs...)
}

func cloneTipSets(in []TipSet) []TipSet {
	out := make([]TipSet, len(in))
	for i, set := range in {
		out[i] = TipSet{Category: set.Category, Tips: append([]string(nil), set.Tips...)}
	}
	return out
}
