// Package figure renders the regional diagnostic scatter plots.
package figure

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/rtm0/erawp/internal/diag"
)

// Glyph colours per region, in diag.Regions order.
var regionColors = []color.Color{
	color.RGBA{B: 255, A: 255},
	color.RGBA{R: 255, A: 255},
}

// Size of one figure.
var (
	Width  = 10 * vg.Inch
	Height = 4 * vg.Inch
)

// Render draws one figure with a scatter subplot per region, vertical
// velocity on x against precipitation p on y, and writes it as PNG.
func Render(w io.Writer, d *diag.Diagnostic, p diag.Precip) error {
	plots := make([][]*plot.Plot, 1)
	plots[0] = make([]*plot.Plot, len(d.Regions))
	for i := range d.Regions {
		pl, err := subplot(d, &d.Regions[i], p, regionColors[i%len(regionColors)])
		if err != nil {
			return err
		}
		plots[0][i] = pl
	}

	img := vgimg.New(Width, Height)
	dc := draw.New(img)
	t := draw.Tiles{
		Rows:      1,
		Cols:      len(d.Regions),
		PadX:      vg.Millimeter * 5,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, t, dc)
	for i, pl := range plots[0] {
		pl.Draw(canvases[0][i])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return errors.Wrap(err, "could not encode figure")
	}
	return nil
}

func subplot(d *diag.Diagnostic, rf *diag.RegionFields, p diag.Precip, c color.Color) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("%s (%s)", rf.Region.Name, boxLabel(rf.Region))
	pl.X.Label.Text = fmt.Sprintf("w @ %g hPa", d.Level)
	pl.Y.Label.Text = p.String()

	pts := rf.Pairs(p)
	if len(pts) == 0 {
		return pl, nil
	}
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i].X = pt.W
		xys[i].Y = pt.P
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, errors.Wrapf(err, "could not build %s scatter for %s", p, rf.Region.Name)
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(2)
	pl.Add(s)
	return pl, nil
}

func boxLabel(r diag.Region) string {
	return fmt.Sprintf("%g-%gE, %g-%gN", r.LonMin, r.LonMax, r.LatMin, r.LatMax)
}

// FileName returns the figure path for precipitation p.
func FileName(prefix string, p diag.Precip) string {
	return fmt.Sprintf("%s_%s.png", prefix, p)
}

// RenderFiles writes both figures next to each other using prefix and
// returns their paths.
func RenderFiles(prefix string, d *diag.Diagnostic) ([]string, error) {
	var paths []string
	for _, p := range []diag.Precip{diag.LargeScale, diag.Convective} {
		path := FileName(prefix, p)
		if err := renderFile(path, d, p); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func renderFile(path string, d *diag.Diagnostic, p diag.Precip) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create figure file")
	}
	if err := Render(f, d, p); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "could not write %q", path)
}
