package diag

import (
	"github.com/pkg/errors"

	"github.com/rtm0/erawp/internal/erai"
)

// Precip selects one of the precipitation fields.
type Precip int

const (
	LargeScale Precip = iota
	Convective
)

func (p Precip) String() string {
	switch p {
	case LargeScale:
		return "lsp"
	case Convective:
		return "cp"
	}
	return "unknown"
}

// Options name the variables and the level to use.
type Options struct {
	LSP   string
	CP    string
	W     string
	Level float64 // hPa
	Time  int
}

// DefaultOptions returns the ERA-Interim variable names and 500 hPa.
func DefaultOptions() Options {
	return Options{LSP: "lsp", CP: "cp", W: "w", Level: 500}
}

// RegionFields holds the three fields masked to one region.
type RegionFields struct {
	Region Region
	Inside []bool
	LSP    MaskedArray
	CP     MaskedArray
	W      MaskedArray
}

// Precip returns the masked precipitation field p.
func (rf *RegionFields) Precip(p Precip) MaskedArray {
	if p == Convective {
		return rf.CP
	}
	return rf.LSP
}

// Point is one scatter point.
type Point struct {
	W float64
	P float64
}

// Pairs returns (w, precip) for every point where both are unmasked.
func (rf *RegionFields) Pairs(p Precip) []Point {
	pr := rf.Precip(p)
	var pts []Point
	for k := range rf.W.Data {
		if rf.W.Mask[k] || pr.Mask[k] {
			continue
		}
		pts = append(pts, Point{W: rf.W.Data[k], P: pr.Data[k]})
	}
	return pts
}

// Diagnostic is the result of Compute.
type Diagnostic struct {
	Lon        []float64
	Lat        []float64
	Level      float64 // selected level
	LevelIndex int
	Regions    []RegionFields
}

// Compute reads the precipitation fields and the vertical velocity at the
// level nearest opts.Level and masks them to every diagnostic region.
func Compute(ds *erai.Dataset, opts Options) (*Diagnostic, error) {
	if len(ds.Level) == 0 {
		return nil, errors.New("dataset has no pressure levels")
	}
	ip, err := NearestLevel(ds.Level, opts.Level)
	if err != nil {
		return nil, err
	}

	lsp, err := ds.Field(opts.LSP, opts.Time)
	if err != nil {
		return nil, err
	}
	cp, err := ds.Field(opts.CP, opts.Time)
	if err != nil {
		return nil, err
	}
	w3, err := ds.Field(opts.W, opts.Time)
	if err != nil {
		return nil, err
	}
	w, err := w3.Level(ip)
	if err != nil {
		return nil, err
	}

	lonx, laty := Meshgrid(ds.Lon, ds.Lat)
	d := &Diagnostic{
		Lon:        ds.Lon,
		Lat:        ds.Lat,
		Level:      ds.Level[ip],
		LevelIndex: ip,
	}
	for _, r := range Regions() {
		inside := r.Mask(lonx, laty)
		d.Regions = append(d.Regions, RegionFields{
			Region: r,
			Inside: inside,
			LSP:    NewMaskedArray(lsp.Data, lsp.Missing, inside),
			CP:     NewMaskedArray(cp.Data, cp.Missing, inside),
			W:      NewMaskedArray(w.Data, w.Missing, inside),
		})
	}
	return d, nil
}

// Summary returns the per-region point counts suitable for logging.
func (d *Diagnostic) Summary() []any {
	kv := []any{"level", d.Level, "levelIndex", d.LevelIndex}
	for _, rf := range d.Regions {
		kv = append(kv, rf.Region.Name, rf.W.Count())
	}
	return kv
}

// Grids returns the six masked fields for export.
func (d *Diagnostic) Grids() []erai.Grid {
	var grids []erai.Grid
	for _, rf := range d.Regions {
		for _, f := range []struct {
			name string
			m    MaskedArray
		}{
			{"lsp", rf.LSP},
			{"cp", rf.CP},
			{"w", rf.W},
		} {
			grids = append(grids, erai.Grid{
				Name:    f.name + "_" + rf.Region.Name,
				Data:    f.m.Data,
				Missing: f.m.Mask,
				Attrs:   map[string]any{"region": rf.Region.Name},
			})
		}
	}
	return grids
}
