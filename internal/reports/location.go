package reports

import "strings"

var streetSuffixes = map[string]string{
	"rd":   "Road",
	"st":   "Street",
	"ave":  "Avenue",
	"av":   "Avenue",
	"hwy":  "Highway",
	"ln":   "Lane",
	"dr":   "Drive",
	"ct":   "Court",
	"pkwy": "Parkway",
	"blvd": "Boulevard",
	"rt":   "Route",
	"rte":  "Route",
	"tpke": "Turnpike",
	"twp":  "Township",
}

// NormalizeLocation collapses whitespace and spells out abbreviated street
// suffixes ("Oak St." becomes "Oak Street"). The first word is never
// expanded so "St Louis Rd" keeps its saint.
func NormalizeLocation(raw string) string {
	parts := strings.Fields(raw)
	for i := 1; i < len(parts); i++ {
		word := parts[i]
		trail := ""
		if strings.HasSuffix(word, ",") {
			word, trail = strings.TrimSuffix(word, ","), ","
		}
		if full, ok := streetSuffixes[strings.ToLower(strings.TrimSuffix(word, "."))]; ok {
			parts[i] = full + trail
		}
	}
	return strings.Join(parts, " ")
}
