package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// timeTol is the tolerance, in hours, used when comparing result times.
const timeTol = 0.001

// Resolution describes the time axis of one result table: a regular
// start/end/step descriptor, or an explicit list of output times when the
// interval is irregular. Times are hours relative to the reference time;
// DT is the step in seconds.
type Resolution struct {
	Start float64
	End   float64
	DT    float64
	Steps []float64 // set when irregular; overrides Start/End/DT
}

// Times reconstructs the full, ordered time axis described by r.
func (r Resolution) Times() []float64 {
	if r.Steps != nil {
		out := make([]float64, len(r.Steps))
		copy(out, r.Steps)
		return out
	}
	if r.DT <= 0 {
		return []float64{r.Start}
	}
	step := r.DT / 3600.0
	n := int(math.Round((r.End-r.Start)/step)) + 1
	if n < 1 {
		n = 1
	}
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.Start+float64(i)*step)
	}
	return out
}

// Same reports whether two resolutions describe the same axis within
// tolerance. Resolutions that compare Same share one time column in
// extracted output.
func (r Resolution) Same(o Resolution) bool {
	if (r.Steps == nil) != (o.Steps == nil) {
		return false
	}
	if r.Steps != nil {
		if len(r.Steps) != len(o.Steps) {
			return false
		}
		for i := range r.Steps {
			if math.Abs(r.Steps[i]-o.Steps[i]) > timeTol {
				return false
			}
		}
		return true
	}
	return math.Abs(r.Start-o.Start) <= timeTol &&
		math.Abs(r.End-o.End) <= timeTol &&
		math.Abs(r.DT-o.DT) <= 0.01
}

// Key returns a grouping signature: resolutions with equal keys share a
// time axis. Floats are rounded so re-derived descriptors group together.
func (r Resolution) Key() string {
	var b strings.Builder
	if r.Steps != nil {
		b.WriteString("irr")
		for _, t := range r.Steps {
			b.WriteByte('/')
			b.WriteString(strconv.FormatFloat(math.Round(t*1000)/1000, 'f', -1, 64))
		}
		return b.String()
	}
	b.WriteString(strconv.FormatFloat(math.Round(r.Start*1000)/1000, 'f', -1, 64))
	b.WriteByte('/')
	b.WriteString(strconv.FormatFloat(math.Round(r.End*1000)/1000, 'f', -1, 64))
	b.WriteByte('/')
	b.WriteString(strconv.FormatFloat(math.Round(r.DT*100)/100, 'f', -1, 64))
	return b.String()
}

// Row is one overview entry: a single (object, data type) pairing available
// in a loaded store.
type Row struct {
	ID       string
	Domain   Domain
	Geometry Geometry
	DataType string
	Res      Resolution
	IsMax    bool
	IsMin    bool
	Static   bool
}

// Overview catalogues everything a store can answer queries about. Rows are
// ordered 1D, then 2D, then RL, so the first hit for a bare id follows
// domain priority.
type Overview struct {
	Rows []Row
}

// IDs returns the unique object ids in row order.
func (o *Overview) IDs() []string {
	seen := make(map[string]struct{}, len(o.Rows))
	out := make([]string, 0, len(o.Rows))
	for _, r := range o.Rows {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r.ID)
	}
	return out
}

// DataTypes returns the unique canonical data type names in row order.
func (o *Overview) DataTypes() []string {
	seen := make(map[string]struct{}, len(o.Rows))
	out := make([]string, 0, len(o.Rows))
	for _, r := range o.Rows {
		if _, ok := seen[r.DataType]; ok {
			continue
		}
		seen[r.DataType] = struct{}{}
		out = append(out, r.DataType)
	}
	return out
}

// SharedIndex reports whether every temporal row describes the same time
// axis, meaning extracted output can carry a single shared time column.
func (o *Overview) SharedIndex() bool {
	keys := make(map[string]struct{})
	for _, r := range o.Rows {
		if r.Static || r.IsMax || r.IsMin {
			continue
		}
		keys[r.Res.Key()] = struct{}{}
	}
	return len(keys) < 2
}

// UnionTimes merges the time axes of every temporal row into one sorted,
// deduplicated list. Times closer than the comparison tolerance collapse
// into one entry.
func (o *Overview) UnionTimes() []float64 {
	var all []float64
	seen := make(map[string]struct{})
	for _, r := range o.Rows {
		if r.Static || r.IsMax || r.IsMin {
			continue
		}
		k := r.Res.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		all = append(all, r.Res.Times()...)
	}
	return mergeTimes(all)
}

func mergeTimes(all []float64) []float64 {
	if len(all) == 0 {
		return nil
	}
	sort.Float64s(all)
	out := all[:1]
	for _, t := range all[1:] {
		if t-out[len(out)-1] > timeTol {
			out = append(out, t)
		}
	}
	return out
}
