// Package eraitest writes small synthetic ERA-Interim style NetCDF files for
// tests.
package eraitest

import (
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// Packing of the lsp variable.
const (
	LSPScale  = 0.001
	LSPOffset = 0.5
	LSPFill   = int16(-32767)
)

// File describes the synthetic file contents.
type File struct {
	Lon   []float32
	Lat   []float32
	Level []int32
	Times int
	// FillAt is the (lat, lon) index of an lsp point stored as fill
	// value, or nil.
	FillAt []int
}

// Default returns a 5 degree global longitude ring over 0..80N with five
// pressure levels and two time steps. The lsp fill point sits at (0N, 0E),
// outside both diagnostic regions.
func Default() File {
	f := File{Level: []int32{1000, 850, 700, 500, 300}, Times: 2, FillAt: []int{8, 0}}
	for lo := 0; lo < 360; lo += 5 {
		f.Lon = append(f.Lon, float32(lo))
	}
	for la := 80; la >= 0; la -= 10 {
		f.Lat = append(f.Lat, float32(la))
	}
	return f
}

// LSP returns the unpacked large-scale precipitation at a point.
func LSP(t, i, j int) float64 {
	return float64(lspRaw(t, i, j))*LSPScale + LSPOffset
}

func lspRaw(t, i, j int) int16 {
	return int16((t*7 + i*3 + j) % 1000)
}

// CP returns the convective precipitation at a point.
func CP(t, i, j int) float32 {
	return float32(t) + float32(i)/10 + float32(j)/1000
}

// W returns the vertical velocity at a point. It encodes the level index so
// tests can tell which level was selected.
func W(t, k, i, j int) float32 {
	return float32(k) + float32(t)*10 - float32(i+j)/1000
}

// Write writes the file to path.
func (f File) Write(path string) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	nlat, nlon, nlev := len(f.Lat), len(f.Lon), len(f.Level)

	time := make([]int32, f.Times)
	for t := range time {
		time[t] = int32(t * 6)
	}
	lsp := make([][][]int16, f.Times)
	cp := make([][][]float32, f.Times)
	w := make([][][][]float32, f.Times)
	for t := 0; t < f.Times; t++ {
		lsp[t] = make([][]int16, nlat)
		cp[t] = make([][]float32, nlat)
		w[t] = make([][][]float32, nlev)
		for i := 0; i < nlat; i++ {
			lsp[t][i] = make([]int16, nlon)
			cp[t][i] = make([]float32, nlon)
			for j := 0; j < nlon; j++ {
				lsp[t][i][j] = lspRaw(t, i, j)
				cp[t][i][j] = CP(t, i, j)
			}
		}
		if f.FillAt != nil {
			lsp[t][f.FillAt[0]][f.FillAt[1]] = LSPFill
		}
		for k := 0; k < nlev; k++ {
			w[t][k] = make([][]float32, nlat)
			for i := 0; i < nlat; i++ {
				w[t][k][i] = make([]float32, nlon)
				for j := 0; j < nlon; j++ {
					w[t][k][i][j] = W(t, k, i, j)
				}
			}
		}
	}

	lspAttrs, err := util.NewOrderedMap(
		[]string{"scale_factor", "add_offset", "_FillValue", "units"},
		map[string]any{
			"scale_factor": float64(LSPScale),
			"add_offset":   float64(LSPOffset),
			"_FillValue":   LSPFill,
			"units":        "m",
		})
	if err != nil {
		return err
	}

	vars := []struct {
		name string
		v    api.Variable
	}{
		{"lon", api.Variable{Values: f.Lon, Dimensions: []string{"lon"}}},
		{"lat", api.Variable{Values: f.Lat, Dimensions: []string{"lat"}}},
		{"level", api.Variable{Values: f.Level, Dimensions: []string{"level"}}},
		{"time", api.Variable{Values: time, Dimensions: []string{"time"}}},
		{"lsp", api.Variable{Values: lsp, Dimensions: []string{"time", "lat", "lon"}, Attributes: lspAttrs}},
		{"cp", api.Variable{Values: cp, Dimensions: []string{"time", "lat", "lon"}}},
		{"w", api.Variable{Values: w, Dimensions: []string{"time", "level", "lat", "lon"}}},
	}
	for _, v := range vars {
		if err := cw.AddVar(v.name, v.v); err != nil {
			cw.Close()
			return err
		}
	}
	return cw.Close()
}
