package diag

// MaskedArray pairs values with an exclusion mask: Mask[k] is true when
// Data[k] must be left out.
type MaskedArray struct {
	Data []float64
	Mask []bool
}

// NewMaskedArray masks every point outside the region and every point the
// source reports missing.
func NewMaskedArray(data []float64, missing, inside []bool) MaskedArray {
	m := MaskedArray{Data: data, Mask: make([]bool, len(data))}
	for k := range data {
		m.Mask[k] = !inside[k] || (missing != nil && missing[k])
	}
	return m
}

// Count returns the number of unmasked values.
func (m MaskedArray) Count() int {
	n := 0
	for _, masked := range m.Mask {
		if !masked {
			n++
		}
	}
	return n
}

// Compressed returns the unmasked values in order.
func (m MaskedArray) Compressed() []float64 {
	out := make([]float64, 0, m.Count())
	for k, masked := range m.Mask {
		if !masked {
			out = append(out, m.Data[k])
		}
	}
	return out
}
