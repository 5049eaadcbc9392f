package geo

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// fuzzyCutoff is the minimum similarity ratio for a fuzzy block-name match.
const fuzzyCutoff = 0.72

// ErrNotLoaded signals a lookup before the reference dataset could be read.
var ErrNotLoaded = errors.New("geo: reference dataset not loaded")

// Geometry is the derived reference geometry for one administrative block:
// the area-weighted centroid, the union bounding box of all member features,
// and the summed population carried on the feature properties.
type Geometry struct {
	Lat        float64
	Lng        float64
	South      float64
	West       float64
	North      float64
	East       float64
	Population int64
}

type feature struct {
	geom       orb.Geometry
	population int64
}

// Index loads the block reference GeoJSON once per process and answers
// normalized block-name lookups with a fuzzy fallback. Results, including
// misses, are memoized so repeated lookups for the same block are O(1).
type Index struct {
	path string

	once    sync.Once
	loadErr error
	blocks  map[string][]feature

	mu    sync.RWMutex
	cache map[string]*Geometry
}

// NewIndex creates an index over the GeoJSON file at path. The file is read
// lazily on first lookup.
func NewIndex(path string) *Index {
	return &Index{
		path:  path,
		cache: make(map[string]*Geometry),
	}
}

// Load forces the reference dataset to be read. Calling it at startup turns a
// misconfigured path into a boot failure instead of a per-request error.
func (ix *Index) Load() error {
	ix.once.Do(ix.load)
	return ix.loadErr
}

// BlockGeometry resolves the reference geometry for a block name. The name is
// normalized (lower-case, alphanumeric-only) and matched exactly first, then
// fuzzily against all known blocks with a similarity cutoff.
func (ix *Index) BlockGeometry(block string) (Geometry, bool, error) {
	if err := ix.Load(); err != nil {
		return Geometry{}, false, err
	}

	key := NormalizeBlock(block)
	if key == "" {
		return Geometry{}, false, nil
	}

	ix.mu.RLock()
	cached, hit := ix.cache[key]
	ix.mu.RUnlock()
	if hit {
		if cached == nil {
			return Geometry{}, false, nil
		}
		return *cached, true, nil
	}

	match := key
	if _, ok := ix.blocks[match]; !ok {
		match = ix.bestFuzzyMatch(key)
	}

	var result *Geometry
	if match != "" {
		g := deriveGeometry(ix.blocks[match])
		result = &g
	}

	ix.mu.Lock()
	ix.cache[key] = result
	ix.mu.Unlock()

	if result == nil {
		return Geometry{}, false, nil
	}
	return *result, true, nil
}

// KnownBlocks returns the normalized names present in the reference dataset.
func (ix *Index) KnownBlocks() ([]string, error) {
	if err := ix.Load(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ix.blocks))
	for name := range ix.blocks {
		names = append(names, name)
	}
	return names, nil
}

func (ix *Index) load() {
	if ix.path == "" {
		ix.loadErr = fmt.Errorf("%w: empty path", ErrNotLoaded)
		return
	}

	data, err := os.ReadFile(ix.path)
	if err != nil {
		ix.loadErr = fmt.Errorf("%w: read %s: %v", ErrNotLoaded, ix.path, err)
		return
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		ix.loadErr = fmt.Errorf("%w: decode %s: %v", ErrNotLoaded, ix.path, err)
		return
	}

	blocks := make(map[string][]feature)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		name := blockProperty(f.Properties)
		key := NormalizeBlock(name)
		if key == "" {
			continue
		}
		blocks[key] = append(blocks[key], feature{
			geom:       f.Geometry,
			population: populationProperty(f.Properties),
		})
	}

	if len(blocks) == 0 {
		ix.loadErr = fmt.Errorf("%w: %s contains no block features", ErrNotLoaded, ix.path)
		return
	}
	ix.blocks = blocks
}

func (ix *Index) bestFuzzyMatch(key string) string {
	best := ""
	bestRatio := 0.0
	for candidate := range ix.blocks {
		r := similarity(key, candidate)
		if r >= fuzzyCutoff && r > bestRatio {
			best = candidate
			bestRatio = r
		}
	}
	return best
}

// similarity is a levenshtein-derived ratio in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(longest-dist) / float64(longest)
}

func deriveGeometry(features []feature) Geometry {
	var (
		sumLat, sumLng, sumArea float64
		bound                   orb.Bound
		population              int64
	)

	for i, f := range features {
		centroid, area := planar.CentroidArea(f.geom)
		if area < 0 {
			area = -area
		}
		if area == 0 {
			// Points and degenerate rings still count, with unit weight.
			area = 1
		}
		sumLng += centroid[0] * area
		sumLat += centroid[1] * area
		sumArea += area

		b := f.geom.Bound()
		if i == 0 {
			bound = b
		} else {
			bound = bound.Union(b)
		}
		population += f.population
	}

	g := Geometry{Population: population}
	if sumArea > 0 {
		g.Lng = sumLng / sumArea
		g.Lat = sumLat / sumArea
	}
	g.West = bound.Min[0]
	g.South = bound.Min[1]
	g.East = bound.Max[0]
	g.North = bound.Max[1]
	return g
}

// NormalizeBlock lower-cases a block name and strips everything that is not a
// letter or digit, so "Bhandari Pokhari" and "bhandaripokhari" collide.
func NormalizeBlock(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func blockProperty(props geojson.Properties) string {
	for _, key := range []string{"block", "BLOCK", "subdist", "regionName"} {
		if v, ok := props[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func populationProperty(props geojson.Properties) int64 {
	for _, key := range []string{"population", "tot_p"} {
		switch v := props[key].(type) {
		case float64:
			return int64(v)
		case int:
			return int64(v)
		}
	}
	return 0
}
