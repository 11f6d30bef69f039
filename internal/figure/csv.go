package figure

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/rtm0/erawp/internal/diag"
)

var csvHeader = []string{"region", "precip", "w", "value"}

// WriteCSV writes the scatter points of every region, one record per
// (w, precipitation) pair. Points where either value is masked are left out,
// as they are in the figures.
func WriteCSV(w io.Writer, d *diag.Diagnostic) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "could not write points")
	}
	for i := range d.Regions {
		rf := &d.Regions[i]
		for _, p := range []diag.Precip{diag.LargeScale, diag.Convective} {
			for _, pt := range rf.Pairs(p) {
				if err := cw.Write(pointToRecord(rf.Region, p, pt)); err != nil {
					return errors.Wrap(err, "could not write points")
				}
			}
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "could not write points")
}

// pointToRecord converts a scatter point into a CSV record.
func pointToRecord(r diag.Region, p diag.Precip, pt diag.Point) []string {
	return []string{
		r.Name,
		p.String(),
		strconv.FormatFloat(pt.W, 'g', -1, 64),
		strconv.FormatFloat(pt.P, 'g', -1, 64),
	}
}
