package erai

import (
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/pkg/errors"
)

// Field is one time step of a gridded variable stored row-major, with the
// longitude varying fastest.
type Field struct {
	Name  string
	Dims  []string // e.g. (level, lat, lon) or (lat, lon)
	Shape []int
	Data  []float64
	// Missing marks points equal to the variable's fill value. It is nil
	// when the field has no missing points.
	Missing []bool
}

// Rows returns the number of latitudes.
func (f *Field) Rows() int {
	return f.Shape[len(f.Shape)-2]
}

// Cols returns the number of longitudes.
func (f *Field) Cols() int {
	return f.Shape[len(f.Shape)-1]
}

// Level returns the horizontal slice at level index i of a field with a
// vertical dimension.
func (f *Field) Level(i int) (*Field, error) {
	if len(f.Shape) != 3 {
		return nil, errors.Errorf("field %q has dimensions %v, want (level, lat, lon)", f.Name, f.Dims)
	}
	if i < 0 || i >= f.Shape[0] {
		return nil, errors.Errorf("level index %d out of range [0, %d) for %q", i, f.Shape[0], f.Name)
	}
	n := f.Shape[1] * f.Shape[2]
	g := &Field{
		Name:  f.Name,
		Dims:  f.Dims[1:],
		Shape: f.Shape[1:],
		Data:  f.Data[i*n : (i+1)*n],
	}
	if f.Missing != nil {
		g.Missing = f.Missing[i*n : (i+1)*n]
	}
	return g, nil
}

func (f *Field) checkGrid(nlat, nlon int) error {
	if f.Rows() != nlat || f.Cols() != nlon {
		return errors.Errorf("field %q has a %dx%d grid, coordinates define %dx%d", f.Name, f.Rows(), f.Cols(), nlat, nlon)
	}
	return nil
}

// unpack applies the CF packing attributes in place.
func (f *Field) unpack(attrs api.AttributeMap) {
	scale, offset := 1.0, 0.0
	var fills []float64
	if attrs != nil {
		if v, ok := attrNumber(attrs, "scale_factor"); ok {
			scale = v
		}
		if v, ok := attrNumber(attrs, "add_offset"); ok {
			offset = v
		}
		for _, name := range []string{"_FillValue", "missing_value"} {
			if v, ok := attrNumber(attrs, name); ok {
				fills = append(fills, v)
			}
		}
	}

	for i, raw := range f.Data {
		for _, fv := range fills {
			if raw == fv {
				if f.Missing == nil {
					f.Missing = make([]bool, len(f.Data))
				}
				f.Missing[i] = true
			}
		}
		f.Data[i] = raw*scale + offset
	}
}

func attrNumber(attrs api.AttributeMap, key string) (float64, bool) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return 0, false
		}
		rv = rv.Index(0)
	}
	return number(rv)
}

func number(rv reflect.Value) (float64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// flatten converts the nested slices returned by the NetCDF reader into a
// flat float64 slice and its shape.
func flatten(v any) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	var shape []int
	for t := rv; t.Kind() == reflect.Slice; {
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}
	if len(shape) == 0 {
		x, ok := number(rv)
		if !ok {
			return nil, nil, errors.Errorf("unsupported value type %T", v)
		}
		return []float64{x}, nil, nil
	}

	n := 1
	for _, s := range shape {
		n *= s
	}
	out := make([]float64, 0, n)
	var walk func(reflect.Value, int) error
	walk = func(rv reflect.Value, depth int) error {
		if depth == len(shape) {
			x, ok := number(rv)
			if !ok {
				return errors.Errorf("unsupported value type %T", v)
			}
			out = append(out, x)
			return nil
		}
		if rv.Kind() != reflect.Slice || rv.Len() != shape[depth] {
			return errors.Errorf("ragged array at depth %d", depth)
		}
		for i := 0; i < rv.Len(); i++ {
			if err := walk(rv.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}
