package safetytips

import (
	"math/rand"
	"time"
)

// TipOfTheDay picks one tip uniformly from every catalog tip and the fallback
// list. Pass a seeded source to get a reproducible pick; nil seeds from the clock.
func (g *Generator) TipOfTheDay(rng *rand.Rand) string {
	pool := g.allTips()
	if len(pool) == 0 {
		return ""
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return pool[rng.Intn(len(pool))]
}

// TipOfTheDay picks from the default catalog.
func TipOfTheDay(rng *rand.Rand) string { return std.TipOfTheDay(rng) }

func (g *Generator) allTips() []string {
	var pool []string
	for _, cat := range g.order {
		pool = append(pool, g.tips[cat]...)
	}
	return append(pool, g.fallback...)
}
