package safetytips

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileCatalog is the on-disk override shape. JSON is accepted as well because
// it is a subset of YAML 1.2.
type fileCatalog struct {
	Fallback   []string       `json:"fallback" yaml:"fallback"`
	Categories []fileCategory `json:"categories" yaml:"categories"`
}

type fileCategory struct {
	Name    string   `json:"name" yaml:"name"`
	Pattern string   `json:"pattern" yaml:"pattern"`
	Tips    []string `json:"tips" yaml:"tips"`
}

// LoadCatalog reads an override file and merges it over the compiled-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	base := DefaultCatalog()
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return base, errors.New("empty catalog file")
	}
	var parsed fileCatalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &parsed)
	default:
		err = yaml.Unmarshal(data, &parsed)
	}
	if err != nil {
		return base, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	merged, err := mergeCatalog(base, parsed)
	if err != nil {
		return base, fmt.Errorf("catalog %s: %w", path, err)
	}
	if err := merged.Validate(); err != nil {
		return base, fmt.Errorf("catalog %s: %w", path, err)
	}
	return merged, nil
}

// mergeCatalog overlays non-empty override fields onto base. Categories keep
// the declaration order of base.
func mergeCatalog(base Catalog, override fileCatalog) (Catalog, error) {
	out := Catalog{
		Rules:    append([]Rule(nil), base.Rules...),
		Tips:     cloneTipSets(base.Tips),
		Fallback: append([]string(nil), base.Fallback...),
	}
	if tips := trimAll(override.Fallback); len(tips) > 0 {
		out.Fallback = tips
	}
	for _, fc := range override.Categories {
		cat, ok := ParseCategory(fc.Name)
		if !ok {
			return base, fmt.Errorf("unknown category %q", fc.Name)
		}
		if pattern := strings.TrimSpace(fc.Pattern); pattern != "" {
			out.Rules = setRule(out.Rules, Rule{Category: cat, Pattern: pattern})
		}
		if tips := trimAll(fc.Tips); len(tips) > 0 {
			out.Tips = setTips(out.Tips, TipSet{Category: cat, Tips: tips})
		}
	}
	return out, nil
}

func setRule(rules []Rule, r Rule) []Rule {
	for i := range rules {
		if rules[i].Category == r.Category {
			rules[i] = r
			return rules
		}
	}
	return append(rules, r)
}

func setTips(sets []TipSet, s TipSet) []TipSet {
	for i := range sets {
		if sets[i].Category == s.Category {
			sets[i] = s
			return sets
		}
	}
	return append(sets, s)
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
