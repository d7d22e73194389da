package domain

import (
	"math"
	"time"
)

// SeriesBlock groups extracted time-series columns that share one time
// axis. A query spanning objects with different output intervals produces
// one block per interval, each carrying its own time column.
type SeriesBlock struct {
	Times    []float64   // relative hours
	AbsTimes []time.Time // populated under TimeAbsolute
	Names    []string    // column names, "{kind}/{data type}/{id}"
	Values   [][]float64 // Values[i][j]: value at Times[i] for Names[j]
}

// SeriesFrame is the result of a time-series query.
type SeriesFrame struct {
	Blocks []SeriesBlock
}

// Empty reports whether the frame carries no columns.
func (f *SeriesFrame) Empty() bool {
	for _, b := range f.Blocks {
		if len(b.Names) > 0 {
			return false
		}
	}
	return true
}

// Names returns every column name across all blocks.
func (f *SeriesFrame) Names() []string {
	var out []string
	for _, b := range f.Blocks {
		out = append(out, b.Names...)
	}
	return out
}

// Column returns the values for a named column, block order.
func (f *SeriesFrame) Column(name string) ([]float64, bool) {
	for _, b := range f.Blocks {
		for j, have := range b.Names {
			if have != name {
				continue
			}
			out := make([]float64, len(b.Times))
			for i := range b.Times {
				out[i] = b.Values[i][j]
			}
			return out, true
		}
	}
	return nil, false
}

// ExtractSeries pulls the time series selected by a resolved overview out
// of the decoded tables. Sentinel values surface as NaN. Columns whose
// time axes compare Same share a block; otherwise each axis gets its own
// block with its own time column.
func ExtractSeries(series map[Domain]map[string][]*TimeTable, ov *Overview, format TimeFormat, ref time.Time) *SeriesFrame {
	frame := &SeriesFrame{}
	for _, d := range Domains {
		tables := series[d]
		if tables == nil {
			continue
		}
		for _, dtype := range orderedDataTypes(ov, d) {
			for _, tbl := range tables[dtype] {
				appendTableColumns(frame, tbl, d, selectedIDs(ov, d, dtype, tbl))
			}
		}
	}
	if format == TimeAbsolute {
		for i := range frame.Blocks {
			frame.Blocks[i].AbsTimes = AbsoluteTimes(ref, frame.Blocks[i].Times)
		}
	}
	return frame
}

// orderedDataTypes lists the temporal data types a resolved overview wants
// from one domain, preserving row order.
func orderedDataTypes(ov *Overview, d Domain) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range ov.Rows {
		if r.Domain != d || r.Static || r.IsMax || r.IsMin {
			continue
		}
		if _, ok := seen[r.DataType]; ok {
			continue
		}
		seen[r.DataType] = struct{}{}
		out = append(out, r.DataType)
	}
	return out
}

// selectedIDs intersects a table's columns with the resolved overview,
// keeping table column order.
func selectedIDs(ov *Overview, d Domain, dtype string, tbl *TimeTable) []string {
	want := make(map[string]struct{})
	for _, r := range ov.Rows {
		if r.Domain == d && r.DataType == dtype && r.Geometry == tbl.Geometry && !r.Static && !r.IsMax && !r.IsMin {
			want[r.ID] = struct{}{}
		}
	}
	var out []string
	for _, id := range tbl.IDs {
		if _, ok := want[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func appendTableColumns(frame *SeriesFrame, tbl *TimeTable, d Domain, ids []string) {
	if len(ids) == 0 {
		return
	}
	block := matchingBlock(frame, tbl.Times)
	label := kindLabel(d, tbl.Geometry)
	cols := make([]int, 0, len(ids))
	for _, id := range ids {
		for j, have := range tbl.IDs {
			if have == id {
				cols = append(cols, j)
				block.Names = append(block.Names, label+"/"+tbl.DataType+"/"+id)
				break
			}
		}
	}
	for i := range block.Times {
		row := block.Values[i]
		for _, j := range cols {
			row = append(row, CleanValue(tbl.Values[i][j]))
		}
		block.Values[i] = row
	}
}

// matchingBlock finds a block sharing the given axis, creating one when
// none matches.
func matchingBlock(frame *SeriesFrame, times []float64) *SeriesBlock {
	for i := range frame.Blocks {
		b := &frame.Blocks[i]
		if len(b.Times) != len(times) {
			continue
		}
		same := true
		for k := range times {
			if math.Abs(b.Times[k]-times[k]) > timeTol {
				same = false
				break
			}
		}
		if same {
			return b
		}
	}
	b := SeriesBlock{
		Times:  make([]float64, len(times)),
		Values: make([][]float64, len(times)),
	}
	copy(b.Times, times)
	frame.Blocks = append(frame.Blocks, b)
	return &frame.Blocks[len(frame.Blocks)-1]
}

// MaxColumn is one column of a maxima query: peak values or times of peak.
type MaxColumn struct {
	Name     string
	Values   []float64
	AbsTimes []time.Time // set for time-of-peak columns under TimeAbsolute
}

// MaxFrame is the result of a maximum query: one row per object id, a
// max and tmax column pair per data type.
type MaxFrame struct {
	IDs     []string
	Columns []MaxColumn
}

// Empty reports whether the frame carries no columns.
func (f *MaxFrame) Empty() bool {
	return len(f.Columns) == 0
}

// Cell returns the value at (id, column name).
func (f *MaxFrame) Cell(id, name string) (float64, bool) {
	row := -1
	for i, have := range f.IDs {
		if have == id {
			row = i
			break
		}
	}
	if row < 0 {
		return 0, false
	}
	for _, c := range f.Columns {
		if c.Name == name {
			return c.Values[row], true
		}
	}
	return 0, false
}

// ExtractMaxima builds the maxima table selected by a resolved overview.
// Rows are the union of selected ids in overview order; objects missing
// from a particular data type get NaN.
func ExtractMaxima(maxima map[Domain]map[string][]*MaximumTable, ov *Overview, format TimeFormat, ref time.Time) *MaxFrame {
	frame := &MaxFrame{}
	seen := make(map[string]struct{})
	for _, r := range ov.Rows {
		if !r.IsMax {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		frame.IDs = append(frame.IDs, r.ID)
	}

	for _, d := range Domains {
		tables := maxima[d]
		if tables == nil {
			continue
		}
		for _, dtype := range orderedMaxDataTypes(ov, d) {
			for _, tbl := range tables[dtype] {
				label := kindLabel(d, tbl.Geometry)
				maxCol := MaxColumn{Name: label + "/" + dtype + "/max", Values: make([]float64, len(frame.IDs))}
				tmaxCol := MaxColumn{Name: label + "/" + dtype + "/tmax", Values: make([]float64, len(frame.IDs))}
				selected := maxSelected(ov, d, dtype, tbl.Geometry)
				matched := false
				for i, id := range frame.IDs {
					maxCol.Values[i] = math.NaN()
					tmaxCol.Values[i] = math.NaN()
					if _, ok := selected[id]; !ok {
						continue
					}
					if v, t, ok := tbl.Row(id); ok {
						maxCol.Values[i] = CleanValue(v)
						tmaxCol.Values[i] = t
						matched = true
					}
				}
				if !matched {
					continue
				}
				if format == TimeAbsolute {
					tmaxCol.AbsTimes = make([]time.Time, len(tmaxCol.Values))
					for i, t := range tmaxCol.Values {
						if !math.IsNaN(t) {
							tmaxCol.AbsTimes[i] = AbsoluteTime(ref, t)
						}
					}
				}
				// Geometries sharing a kind label (2D point and line are
				// both "po") fold into one column pair.
				if j := columnIndex(frame, maxCol.Name); j >= 0 {
					fillColumn(&frame.Columns[j], maxCol)
					fillColumn(&frame.Columns[j+1], tmaxCol)
					continue
				}
				frame.Columns = append(frame.Columns, maxCol, tmaxCol)
			}
		}
	}
	return frame
}

func orderedMaxDataTypes(ov *Overview, d Domain) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range ov.Rows {
		if r.Domain != d || !r.IsMax {
			continue
		}
		if _, ok := seen[r.DataType]; ok {
			continue
		}
		seen[r.DataType] = struct{}{}
		out = append(out, r.DataType)
	}
	return out
}

func columnIndex(frame *MaxFrame, name string) int {
	for i, c := range frame.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// fillColumn copies src cells into dst rows that are still NaN.
func fillColumn(dst *MaxColumn, src MaxColumn) {
	for i, v := range src.Values {
		if math.IsNaN(v) || !math.IsNaN(dst.Values[i]) {
			continue
		}
		dst.Values[i] = v
		if dst.AbsTimes != nil && src.AbsTimes != nil {
			dst.AbsTimes[i] = src.AbsTimes[i]
		}
	}
}

func maxSelected(ov *Overview, d Domain, dtype string, geom Geometry) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range ov.Rows {
		if r.Domain == d && r.DataType == dtype && r.Geometry == geom && r.IsMax {
			out[r.ID] = struct{}{}
		}
	}
	return out
}
