// Package gazetteer holds the immutable list of capitals the quiz draws
// from. It has zero external dependencies — everything here is pure Go.
package gazetteer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrUnavailable is returned when no usable capital data was supplied.
var ErrUnavailable = errors.New("gazetteer: no capital data available")

// Capital is one selectable city on the map.
type Capital struct {
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Valid reports whether the capital can be presented as a map marker:
// non-empty city name and finite coordinates within range.
func (c Capital) Valid() bool {
	if c.City == "" {
		return false
	}
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return false
	}
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) || c.Lon < -180 || c.Lon > 180 {
		return false
	}
	return true
}

// Gazetteer is an immutable capital list with lookup and random sampling.
type Gazetteer struct {
	capitals []Capital
	byCity   map[string]Capital
}

// New builds a gazetteer from the given records. Records that fail Valid
// are dropped; a duplicate city name is an error since city is the unique
// key for the whole game. An empty result is ErrUnavailable.
func New(capitals []Capital) (*Gazetteer, error) {
	g := &Gazetteer{byCity: make(map[string]Capital, len(capitals))}
	for _, c := range capitals {
		if !c.Valid() {
			continue
		}
		if _, ok := g.byCity[c.City]; ok {
			return nil, fmt.Errorf("gazetteer: duplicate city %q", c.City)
		}
		g.byCity[c.City] = c
		g.capitals = append(g.capitals, c)
	}
	if len(g.capitals) == 0 {
		return nil, ErrUnavailable
	}
	return g, nil
}

// Len returns the number of capitals.
func (g *Gazetteer) Len() int { return len(g.capitals) }

// All returns a copy of the full list, in load order.
func (g *Gazetteer) All() []Capital {
	out := make([]Capital, len(g.capitals))
	copy(out, g.capitals)
	return out
}

// Lookup finds a capital by its city name.
func (g *Gazetteer) Lookup(city string) (Capital, bool) {
	c, ok := g.byCity[city]
	return c, ok
}

// Sample returns up to count distinct capitals other than exclude, in
// random order. When fewer than count exist the whole remainder is
// returned; a partial result is not an error.
func (g *Gazetteer) Sample(rng *rand.Rand, exclude string, count int) []Capital {
	if count <= 0 {
		return nil
	}
	pool := make([]Capital, 0, len(g.capitals))
	for _, c := range g.capitals {
		if c.City != exclude {
			pool = append(pool, c)
		}
	}
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if count < len(pool) {
		pool = pool[:count]
	}
	return pool
}
