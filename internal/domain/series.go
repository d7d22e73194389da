package domain

import "math"

// DrySentinel marks dry or missing values in result files. Anything below
// -99998 is treated as the sentinel to absorb float drift in the files.
const DrySentinel = -99999.0

// IsDry reports whether a raw value is the dry/no-data sentinel.
func IsDry(v float64) bool {
	return v < -99998.0
}

// CleanValue maps the dry sentinel to NaN and passes everything else through.
func CleanValue(v float64) float64 {
	if IsDry(v) {
		return math.NaN()
	}
	return v
}

// TimeTable is one decoded result table: a single data type sampled over
// one time axis for a set of objects. Values are stored raw; the sentinel
// is cleaned at extraction.
type TimeTable struct {
	DataType string
	Geometry Geometry
	Times    []float64 // hours relative to the reference time
	IDs      []string
	Values   [][]float64 // Values[i][j]: value at Times[i] for IDs[j]
}

// Column returns the value series for an id, or false when absent.
func (t *TimeTable) Column(id string) ([]float64, bool) {
	for j, have := range t.IDs {
		if have == id {
			out := make([]float64, len(t.Times))
			for i := range t.Times {
				out[i] = t.Values[i][j]
			}
			return out, true
		}
	}
	return nil, false
}

// Resolution derives the table's time-axis descriptor. A constant step
// yields a regular start/end/dt descriptor with dt in seconds rounded to
// two decimals; anything else keeps the explicit time list.
func (t *TimeTable) Resolution() Resolution {
	if len(t.Times) < 2 {
		steps := make([]float64, len(t.Times))
		copy(steps, t.Times)
		return Resolution{Steps: steps}
	}
	step := t.Times[1] - t.Times[0]
	for i := 2; i < len(t.Times); i++ {
		if math.Abs((t.Times[i]-t.Times[i-1])-step) > timeTol {
			steps := make([]float64, len(t.Times))
			copy(steps, t.Times)
			return Resolution{Steps: steps}
		}
	}
	return Resolution{
		Start: t.Times[0],
		End:   t.Times[len(t.Times)-1],
		DT:    math.Round(step*3600*100) / 100,
	}
}

// MaximumTable holds per-object maxima for one data type: the peak value
// and, when the file records it, the time of peak in relative hours.
type MaximumTable struct {
	DataType string
	Geometry Geometry
	IDs      []string
	Max      []float64
	TMax     []float64 // NaN when the store does not record time of peak
}

// Row returns the maximum and time of maximum for an id.
func (m *MaximumTable) Row(id string) (float64, float64, bool) {
	for i, have := range m.IDs {
		if have == id {
			return m.Max[i], m.TMax[i], true
		}
	}
	return 0, 0, false
}

// DeriveMaximum computes a maxima table from a time series: per-column
// peak and time of peak, skipping sentinel values. Columns that are dry
// for the whole run come back NaN.
func DeriveMaximum(t *TimeTable) *MaximumTable {
	m := &MaximumTable{
		DataType: t.DataType,
		Geometry: t.Geometry,
		IDs:      make([]string, len(t.IDs)),
		Max:      make([]float64, len(t.IDs)),
		TMax:     make([]float64, len(t.IDs)),
	}
	copy(m.IDs, t.IDs)
	for j := range t.IDs {
		best := math.NaN()
		bestT := math.NaN()
		for i := range t.Times {
			v := t.Values[i][j]
			if IsDry(v) {
				continue
			}
			if math.IsNaN(best) || v > best {
				best = v
				bestT = t.Times[i]
			}
		}
		m.Max[j] = best
		m.TMax[j] = bestT
	}
	return m
}
