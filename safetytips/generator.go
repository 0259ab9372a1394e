// Package safetytips turns free-text driving incident reports into a short,
// ordered list of canned safety advice.
package safetytips

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxTips is the cap used by callers that do not pick their own.
const DefaultMaxTips = 3

type compiledRule struct {
	category Category
	re       *regexp.Regexp
}

// Generator classifies reports against a fixed catalog. It holds no mutable
// state after construction and can be shared between goroutines.
type Generator struct {
	rules    []compiledRule
	order    []Category
	tips     map[Category][]string
	fallback []string
}

// New compiles the catalog's rules. Integrity of the tables is checked by
// Catalog.Validate, not here.
func New(c Catalog) (*Generator, error) {
	g := &Generator{
		rules:    make([]compiledRule, 0, len(c.Rules)),
		order:    c.Order(),
		tips:     make(map[Category][]string, len(c.Tips)),
		fallback: append([]string(nil), c.Fallback...),
	}
	for _, r := range c.Rules {
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", r.Category, err)
		}
		g.rules = append(g.rules, compiledRule{category: r.Category, re: re})
	}
	for _, set := range c.Tips {
		g.tips[set.Category] = append([]string(nil), set.Tips...)
	}
	return g, nil
}

var std = mustNew(DefaultCatalog())

func mustNew(c Catalog) *Generator {
	g, err := New(c)
	if err != nil {
		panic(err)
	}
	return g
}

// Default returns the generator built from the compiled-in catalog.
func Default() *Generator { return std }

// DetectCategories returns every category whose pattern matches somewhere in report.
func DetectCategories(report string) CategorySet { return std.DetectCategories(report) }

// GenerateTips returns up to maxTips tips for report using the default catalog.
func GenerateTips(report string, maxTips int) []string { return std.GenerateTips(report, maxTips) }

// DetectCategories returns every category whose pattern matches somewhere in report.
func (g *Generator) DetectCategories(report string) CategorySet {
	lowered := strings.ToLower(report)
	set := make(CategorySet, len(g.rules))
	for _, r := range g.rules {
		if r.re.MatchString(lowered) {
			set[r.category] = struct{}{}
		}
	}
	return set
}

// Order returns the catalog order used to rank detected categories.
func (g *Generator) Order() []Category {
	return append([]Category(nil), g.order...)
}

// GenerateTips collects the tips of every detected category in catalog order,
// or the fallback list when nothing is detected, and keeps the first maxTips
// distinct entries. A non-positive maxTips yields an empty list.
func (g *Generator) GenerateTips(report string, maxTips int) []string {
	tips, _ := g.generate(g.DetectCategories(report), maxTips)
	return tips
}

func (g *Generator) generate(detected CategorySet, maxTips int) ([]string, bool) {
	if maxTips <= 0 {
		return []string{}, detected.Len() == 0
	}
	if detected.Len() == 0 {
		return firstDistinct(g.fallback, maxTips), true
	}
	var candidates []string
	for _, cat := range g.order {
		if detected.Has(cat) {
			candidates = append(candidates, g.tips[cat]...)
		}
	}
	return firstDistinct(candidates, maxTips), false
}

func firstDistinct(candidates []string, limit int) []string {
	out := make([]string, 0, min(limit, len(candidates)))
	seen := make(map[string]struct{}, len(candidates))
	for _, tip := range candidates {
		if len(out) == limit {
			break
		}
		if _, dup := seen[tip]; dup {
			continue
		}
		seen[tip] = struct{}{}
		out = append(out, tip)
	}
	return out
}

// Advice is the full classification result for one report.
type Advice struct {
	Categories []Category `json:"categories"`
	Tips       []string   `json:"tips"`
	Fallback   bool       `json:"fallback"`
	Formatted  string     `json:"formatted"`
}

// Analyze classifies report and renders the resulting tips.
func (g *Generator) Analyze(report string, maxTips int) Advice {
	detected := g.DetectCategories(report)
	tips, fallback := g.generate(detected, maxTips)
	return Advice{
		Categories: detected.Ordered(g.order),
		Tips:       tips,
		Fallback:   fallback,
		Formatted:  FormatTips(tips),
	}
}

// Analyze classifies report with the default catalog.
func Analyze(report string, maxTips int) Advice { return std.Analyze(report, maxTips) }
