package erai

import (
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/pkg/errors"
)

// FillValue marks excluded points in exported grids.
const FillValue = 9.969209968386869e36

// Grid is a 2-D (lat, lon) variable to export. Points with Missing set are
// written as FillValue.
type Grid struct {
	Name    string
	Data    []float64
	Missing []bool
	Attrs   map[string]any
}

// WriteGrids writes the coordinates and grids into a classic NetCDF file.
func WriteGrids(filePath string, lon, lat []float64, grids []Grid, globals map[string]any) error {
	cw, err := cdf.OpenWriter(filePath)
	if err != nil {
		return errors.Wrapf(err, "could not create %q", filePath)
	}

	if len(globals) > 0 {
		attrs, err := orderedAttrs(globals)
		if err != nil {
			cw.Close()
			return err
		}
		if err := cw.AddGlobalAttrs(attrs); err != nil {
			cw.Close()
			return errors.Wrap(err, "could not add global attributes")
		}
	}

	lonAttrs, _ := orderedAttrs(map[string]any{"units": "degrees_east"})
	latAttrs, _ := orderedAttrs(map[string]any{"units": "degrees_north"})
	if err := cw.AddVar("lon", api.Variable{Values: lon, Dimensions: []string{"lon"}, Attributes: lonAttrs}); err != nil {
		cw.Close()
		return errors.Wrap(err, "could not add lon")
	}
	if err := cw.AddVar("lat", api.Variable{Values: lat, Dimensions: []string{"lat"}, Attributes: latAttrs}); err != nil {
		cw.Close()
		return errors.Wrap(err, "could not add lat")
	}

	nlat, nlon := len(lat), len(lon)
	for _, g := range grids {
		if len(g.Data) != nlat*nlon {
			cw.Close()
			return errors.Errorf("grid %q has %d points, want %d", g.Name, len(g.Data), nlat*nlon)
		}
		rows := make([][]float64, nlat)
		for i := range rows {
			rows[i] = make([]float64, nlon)
			for j := range rows[i] {
				k := i*nlon + j
				if g.Missing != nil && g.Missing[k] {
					rows[i][j] = FillValue
				} else {
					rows[i][j] = g.Data[k]
				}
			}
		}
		am := map[string]any{"_FillValue": FillValue}
		for k, v := range g.Attrs {
			am[k] = v
		}
		attrs, err := orderedAttrs(am)
		if err != nil {
			cw.Close()
			return err
		}
		if err := cw.AddVar(g.Name, api.Variable{Values: rows, Dimensions: []string{"lat", "lon"}, Attributes: attrs}); err != nil {
			cw.Close()
			return errors.Wrapf(err, "could not add %q", g.Name)
		}
	}
	return errors.Wrap(cw.Close(), "could not finish writing")
}

func orderedAttrs(m map[string]any) (*util.OrderedMap, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs, err := util.NewOrderedMap(keys, m)
	if err != nil {
		return nil, errors.Wrap(err, "invalid attributes")
	}
	return attrs, nil
}
