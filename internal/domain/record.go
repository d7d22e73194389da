package domain

import (
	"math"
	"strings"
	"time"
)

// MaximaRecord is one flattened maxima cell, the unit published by the
// export pipeline. Kind carries the column-name prefix ("node",
// "channel", "po", "rl").
type MaximaRecord struct {
	Store        string     `json:"store"`
	Kind         string     `json:"kind"`
	DataType     string     `json:"data_type"`
	ID           string     `json:"id"`
	Max          float64    `json:"max"`
	TMaxHours    *float64   `json:"tmax_hours,omitempty"`
	TMaxAbsolute *time.Time `json:"tmax_absolute,omitempty"`
	ExportedAt   time.Time  `json:"exported_at"`
}

// BuildMaximaRecords flattens a maxima frame into one record per
// (object, data type) cell, stamped with the export time. Cells without
// a recorded maximum are skipped; times of peak are carried when
// present, in hours and as timestamps.
func BuildMaximaRecords(store string, ref time.Time, frame *MaxFrame) []MaximaRecord {
	now := clock.Now().UTC()
	var out []MaximaRecord
	for _, col := range frame.Columns {
		kind, dtype, ok := splitColumnName(col.Name, "max")
		if !ok {
			continue
		}
		tmaxName := kind + "/" + dtype + "/tmax"
		for i, id := range frame.IDs {
			if math.IsNaN(col.Values[i]) {
				continue
			}
			rec := MaximaRecord{
				Store:      store,
				Kind:       kind,
				DataType:   dtype,
				ID:         id,
				Max:        col.Values[i],
				ExportedAt: now,
			}
			if t, ok := frame.Cell(id, tmaxName); ok && !math.IsNaN(t) {
				hours := t
				abs := AbsoluteTime(ref, t)
				rec.TMaxHours = &hours
				rec.TMaxAbsolute = &abs
			}
			out = append(out, rec)
		}
	}
	return out
}

// splitColumnName splits "{kind}/{data type}/{attr}" column names,
// matching only the wanted attribute.
func splitColumnName(name, attr string) (kind, dtype string, ok bool) {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 3 || parts[2] != attr {
		return "", "", false
	}
	return parts[0], parts[1], true
}
