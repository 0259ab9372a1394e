package safetytips

import "strings"

// Category identifies a driving behaviour an incident report can be classified into.
type Category string

const (
	Speed       Category = "speed"
	Braking     Category = "braking"
	LaneChange  Category = "lane_change"
	Distraction Category = "distraction"
	Turning     Category = "turning"
)

var categoryOrder = []Category{Speed, Braking, LaneChange, Distraction, Turning}

// Categories returns the closed category set in declaration order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, known := range categoryOrder {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory maps a loosely formatted name ("Lane Change", "lane-change") onto a Category.
func ParseCategory(name string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = categorySeparator.Replace(normalized)
	c := Category(normalized)
	return c, c.Valid()
}

var categorySeparator = strings.NewReplacer(" ", "_", "-", "_")

// CategorySet is the unordered result of detection.
type CategorySet map[Category]struct{}

// Has reports whether c was detected.
func (s CategorySet) Has(c Category) bool {
	_, ok := s[c]
	return ok
}

func (s CategorySet) Len() int { return len(s) }

// Ordered lists the members of s following order; members missing from order are dropped.
func (s CategorySet) Ordered(order []Category) []Category {
	out := make([]Category, 0, len(s))
	for _, c := range order {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
