package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/rtm0/erawp/internal/diag"
	"github.com/rtm0/erawp/internal/erai"
	"github.com/rtm0/erawp/internal/figure"
)

var (
	file      = flag.String("file", "test_new.nc", "path to an ERA-Interim file in NetCDF format with lsp, cp and w")
	level     = flag.Float64("level", 500, "pressure level of the vertical velocity, hPa. The nearest available level is used")
	timeIndex = flag.Int("time", 0, "index of the time step to plot")
	prefix    = flag.String("out", "w_precip", "prefix of the output PNG figures")
	csvFile   = flag.String("csv", "", "optional path to write the scatter points as CSV")
	ncFile    = flag.String("export", "", "optional path to write the region-masked fields as NetCDF")
	lspVar    = flag.String("lsp", "lsp", "name of the large-scale precipitation variable")
	cpVar     = flag.String("cp", "cp", "name of the convective precipitation variable")
	wVar      = flag.String("w", "w", "name of the vertical velocity variable")
)

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("Plotting failed", "err", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ds, err := erai.Open(*file)
	if err != nil {
		return err
	}
	defer ds.Close()
	logger.Info("ERA-Interim summary", ds.Summary()...)

	d, err := diag.Compute(ds, diag.Options{
		LSP:   *lspVar,
		CP:    *cpVar,
		W:     *wVar,
		Level: *level,
		Time:  *timeIndex,
	})
	if err != nil {
		return err
	}
	logger.Info("Regions masked", d.Summary()...)

	paths, err := figure.RenderFiles(*prefix, d)
	if err != nil {
		return err
	}
	logger.Info("Figures written", "files", paths)

	if *csvFile != "" {
		if err := writeCSV(*csvFile, d); err != nil {
			return err
		}
		logger.Info("Points written", "file", *csvFile)
	}
	if *ncFile != "" {
		globals := map[string]any{
			"source": *file,
			"level":  d.Level,
		}
		if err := erai.WriteGrids(*ncFile, d.Lon, d.Lat, d.Grids(), globals); err != nil {
			return err
		}
		logger.Info("Masked fields written", "file", *ncFile)
	}
	return nil
}

func writeCSV(path string, d *diag.Diagnostic) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create CSV file")
	}
	if err := figure.WriteCSV(f, d); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "could not close CSV file")
}
