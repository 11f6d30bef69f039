package mars

import (
	"sort"

	"github.com/pkg/errors"
)

// presets are the literal ERA-Interim requests used to produce the
// diagnostic input files.
var presets = map[string]Request{
	// Upper-air analysis: geopotential, temperature, winds, humidity and
	// vorticity on all pressure levels.
	"pl": {
		"stream":   "oper",
		"levtype":  "pl",
		"levelist": "1000/to/1",
		"param":    "129/130/131/132/133/135",
		"dataset":  "interim",
		"step":     "0",
		"grid":     "0.75/0.75",
		"time":     "00",
		"date":     "2015-10-01/to/2015-10-01",
		"type":     "an",
		"class":    "ei",
		"format":   "netcdf",
		"target":   "era_data.nc",
	},
	// Surface forecast: large-scale, convective and total precipitation.
	"sfc": {
		"stream":  "oper",
		"levtype": "sfc",
		"param":   "142.128/143.128/228.128",
		"dataset": "interim",
		"step":    "3",
		"grid":    "0.75/0.75",
		"time":    "00",
		"date":    "2007-01-20/to/2007-01-20",
		"type":    "fc",
		"class":   "ei",
		"format":  "netcdf",
		"target":  "test_sfc.nc",
	},
	// Monthly means of u and v on the 37 standard pressure levels.
	"clim": {
		"class":    "ei",
		"dataset":  "interim",
		"date":     "20160101/20160201",
		"expver":   "1",
		"grid":     "0.75/0.75",
		"levelist": "1/2/3/5/7/10/20/30/50/70/100/125/150/175/200/225/250/300/350/400/450/500/550/600/650/700/750/775/800/825/850/875/900/925/950/975/1000",
		"levtype":  "pl",
		"param":    "131.128/132.128",
		"stream":   "moda",
		"type":     "an",
		"format":   "netcdf",
		"target":   "test.nc",
	},
}

// Preset returns a copy of the named request.
func Preset(name string) (Request, error) {
	r, ok := presets[name]
	if !ok {
		return nil, errors.Errorf("unknown preset %q, available: %v", name, PresetNames())
	}
	return r.clone(), nil
}

// PresetNames lists the available presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
