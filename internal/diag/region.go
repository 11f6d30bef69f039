// Package diag computes the regional diagnostic relating vertical velocity
// to precipitation.
package diag

import (
	"math"

	"github.com/pkg/errors"
)

// Region is a longitude/latitude box with inclusive bounds. Longitudes are in
// degrees east on the 0..360 ring used by the archive.
type Region struct {
	Name   string
	LonMin float64
	LonMax float64
	LatMin float64
	LatMax float64
}

// The two diagnostic regions.
var (
	MidLatitude = Region{Name: "midlat", LonMin: 230, LonMax: 290, LatMin: 20, LatMax: 70}
	SubRegion   = Region{Name: "subregion", LonMin: 5, LonMax: 15, LatMin: 40, LatMax: 50}
)

// Regions returns the diagnostic regions in plotting order.
func Regions() []Region {
	return []Region{MidLatitude, SubRegion}
}

// Contains reports whether the point lies inside the box.
func (r Region) Contains(lon, lat float64) bool {
	return lon >= r.LonMin && lon <= r.LonMax && lat >= r.LatMin && lat <= r.LatMax
}

// Mask returns, for every mesh point, whether it lies inside the region.
func (r Region) Mask(lonx, laty Grid) []bool {
	m := make([]bool, len(lonx.Data))
	for k := range m {
		m[k] = r.Contains(lonx.Data[k], laty.Data[k])
	}
	return m
}

// Grid is a row-major 2-D array with latitude along rows.
type Grid struct {
	Rows int
	Cols int
	Data []float64
}

// Meshgrid expands the 1-D coordinates into 2-D arrays where lonx varies
// along columns and laty along rows.
func Meshgrid(lon, lat []float64) (lonx, laty Grid) {
	n := len(lat) * len(lon)
	lonx = Grid{Rows: len(lat), Cols: len(lon), Data: make([]float64, n)}
	laty = Grid{Rows: len(lat), Cols: len(lon), Data: make([]float64, n)}
	for i, la := range lat {
		for j, lo := range lon {
			lonx.Data[i*len(lon)+j] = lo
			laty.Data[i*len(lon)+j] = la
		}
	}
	return lonx, laty
}

// NearestLevel returns the index of the level closest to want. Ties resolve
// to the first index.
func NearestLevel(levels []float64, want float64) (int, error) {
	if len(levels) == 0 {
		return 0, errors.New("no levels to select from")
	}
	best := 0
	for i, l := range levels {
		if math.Abs(l-want) < math.Abs(levels[best]-want) {
			best = i
		}
	}
	return best, nil
}
