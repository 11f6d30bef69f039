// Package erai reads gridded reanalysis fields from NetCDF files produced by
// the ECMWF archive.
package erai

import (
	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/pkg/errors"
)

// Coordinate variable names, in order of preference. ERA-Interim files use
// the short names, ERA5 files the long ones.
var (
	lonNames   = []string{"lon", "longitude"}
	latNames   = []string{"lat", "latitude"}
	levelNames = []string{"level", "pressure_level"}
)

// Dataset gives access to the coordinates and fields of one file.
type Dataset struct {
	nc    api.Group
	path  string
	Lon   []float64
	Lat   []float64
	Level []float64 // nil for surface-only files
}

// Open opens a NetCDF file and reads its coordinates.
func Open(filePath string) (*Dataset, error) {
	nc, err := netcdf.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %q", filePath)
	}
	ds := &Dataset{nc: nc, path: filePath}
	ds.Lon, err = coordValues(nc, lonNames)
	if err != nil {
		nc.Close()
		return nil, err
	}
	ds.Lat, err = coordValues(nc, latNames)
	if err != nil {
		nc.Close()
		return nil, err
	}
	ds.Level, err = coordValues(nc, levelNames)
	if err != nil && !errors.Is(err, errNoCoord) {
		nc.Close()
		return nil, err
	}
	return ds, nil
}

var errNoCoord = errors.New("coordinate variable not found")

func coordValues(nc api.Group, names []string) ([]float64, error) {
	for _, name := range names {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			continue
		}
		v, err := vg.Values()
		if err != nil {
			return nil, errors.Wrapf(err, "could not read %q", name)
		}
		vals, _, err := flatten(v)
		if err != nil {
			return nil, errors.Wrapf(err, "coordinate %q", name)
		}
		return vals, nil
	}
	return nil, errors.Wrapf(errNoCoord, "tried %v", names)
}

// Close closes the underlying file.
func (ds *Dataset) Close() {
	ds.nc.Close()
}

// Variables lists the variables stored in the file.
func (ds *Dataset) Variables() []string {
	return ds.nc.ListVariables()
}

// Summary returns the summary information about the dataset suitable for
// logging.
func (ds *Dataset) Summary() []any {
	return []any{
		"file", ds.path,
		"vars", ds.Variables(),
		"loCnt", len(ds.Lon),
		"laCnt", len(ds.Lat),
		"levCnt", len(ds.Level),
	}
}

// Field reads the time step t of the named variable. Packed values are
// unpacked using scale_factor and add_offset, fill values are reported in
// Field.Missing.
func (ds *Dataset) Field(name string, t int) (*Field, error) {
	vg, err := ds.nc.GetVarGetter(name)
	if err != nil {
		return nil, errors.Wrapf(err, "variable %q", name)
	}
	dims := vg.Dimensions()
	if len(dims) < 2 {
		return nil, errors.Errorf("variable %q has dimensions %v, want at least (lat, lon)", name, dims)
	}

	var v any
	if len(dims) >= 3 {
		if t < 0 || int64(t) >= vg.Len() {
			return nil, errors.Errorf("time index %d out of range for %q", t, name)
		}
		v, err = vg.GetSlice(int64(t), int64(t)+1)
		dims = dims[1:]
	} else {
		v, err = vg.Values()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %q", name)
	}

	data, shape, err := flatten(v)
	if err != nil {
		return nil, errors.Wrapf(err, "variable %q", name)
	}
	if len(shape) == len(dims)+1 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != len(dims) {
		return nil, errors.Errorf("variable %q: got shape %v for dimensions %v", name, shape, dims)
	}

	f := &Field{Name: name, Dims: dims, Shape: shape, Data: data}
	f.unpack(vg.Attributes())
	if err := f.checkGrid(len(ds.Lat), len(ds.Lon)); err != nil {
		return nil, err
	}
	return f, nil
}
