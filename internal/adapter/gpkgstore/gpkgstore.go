// Package gpkgstore decodes GeoPackage result stores: a SQLite database
// holding a run info table, a time-series catalogue, and one long-format
// table per (domain, data type) result set.
package gpkgstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/hydro-results/internal/domain"
)

// Schema used by the store:
//
//	Run_info        (key TEXT, value TEXT)           -- name, reference_time
//	Timeseries_info (table_name, data_type, domain, geometry)
//	<series table>  (id TEXT, time_rel REAL, value REAL)
//	<series table>_Maximums (id TEXT, max REAL, tmax REAL)  -- optional
//	Nodes           (id, bed_level, top_level)             -- optional
//	Channels        (id, us_node, ds_node, us_channel, ds_channel,
//	                 flags, length, us_invert, ds_invert,
//	                 us_obvert, ds_obvert)                 -- optional

// refTimeLayout matches the reference time string written to Run_info.
const refTimeLayout = "2006-01-02 15:04:05"

// Loader reads a GeoPackage result store. It implements domain.Loader.
type Loader struct {
	path   string
	logger *slog.Logger
}

// New creates a loader for the given database file.
func New(path string, logger *slog.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Load decodes the run info, the catalogue, and every table it names.
func (l *Loader) Load(ctx context.Context) (*domain.Snapshot, error) {
	db, err := sql.Open("sqlite3", "file:"+l.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}
	defer db.Close()

	snap := &domain.Snapshot{
		Series: make(map[domain.Domain]map[string][]*domain.TimeTable),
		Maxima: make(map[domain.Domain]map[string][]*domain.MaximumTable),
	}

	if err := l.readRunInfo(ctx, db, snap); err != nil {
		return nil, err
	}
	if err := l.readCatalogue(ctx, db, snap); err != nil {
		return nil, err
	}
	if err := l.readNetwork(ctx, db, snap); err != nil {
		return nil, err
	}
	l.logger.Debug("store decoded",
		"path", l.path, "nodes", len(snap.Nodes), "channels", len(snap.Channels))
	return snap, nil
}

func (l *Loader) readRunInfo(ctx context.Context, db *sql.DB, snap *domain.Snapshot) error {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM Run_info`)
	if err != nil {
		return fmt.Errorf("read run info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		switch key {
		case "name":
			snap.Name = value
		case "reference_time":
			t, err := time.Parse(refTimeLayout, value)
			if err != nil {
				return fmt.Errorf("parse reference time: %w", err)
			}
			snap.ReferenceTime = t.UTC()
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if snap.Name == "" {
		return fmt.Errorf("%s: run info has no name", l.path)
	}
	return nil
}

func (l *Loader) readCatalogue(ctx context.Context, db *sql.DB, snap *domain.Snapshot) error {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name, data_type, domain, geometry FROM Timeseries_info ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("read timeseries catalogue: %w", err)
	}
	type entry struct {
		table, dtype, dom, geom string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.table, &e.dtype, &e.dom, &e.geom); err != nil {
			rows.Close()
			return err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range entries {
		d := domain.Domain(e.dom)
		dtype := domain.Normalize(e.dtype)
		tbl, err := l.readSeries(ctx, db, e.table, dtype, domain.Geometry(e.geom))
		if err != nil {
			return err
		}
		if snap.Series[d] == nil {
			snap.Series[d] = make(map[string][]*domain.TimeTable)
		}
		snap.Series[d][dtype] = append(snap.Series[d][dtype], tbl)

		max, err := l.readMaxima(ctx, db, e.table, dtype, domain.Geometry(e.geom))
		if err != nil {
			return err
		}
		if max != nil {
			if snap.Maxima[d] == nil {
				snap.Maxima[d] = make(map[string][]*domain.MaximumTable)
			}
			snap.Maxima[d][dtype] = append(snap.Maxima[d][dtype], max)
		}
	}
	return nil
}

// readSeries pivots a long-format series table into a TimeTable. Ids
// keep first-seen order; times are assumed complete per id.
func (l *Loader) readSeries(ctx context.Context, db *sql.DB, table, dtype string, geom domain.Geometry) (*domain.TimeTable, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, time_rel, value FROM %q ORDER BY time_rel, rowid`, table))
	if err != nil {
		return nil, fmt.Errorf("read series table %s: %w", table, err)
	}
	defer rows.Close()

	tbl := &domain.TimeTable{DataType: dtype, Geometry: geom}
	colIdx := make(map[string]int)
	timeIdx := make(map[float64]int)
	for rows.Next() {
		var id string
		var t float64
		var v sql.NullFloat64
		if err := rows.Scan(&id, &t, &v); err != nil {
			return nil, err
		}
		j, ok := colIdx[id]
		if !ok {
			j = len(tbl.IDs)
			colIdx[id] = j
			tbl.IDs = append(tbl.IDs, id)
			for i := range tbl.Values {
				tbl.Values[i] = append(tbl.Values[i], domain.DrySentinel)
			}
		}
		i, ok := timeIdx[t]
		if !ok {
			i = len(tbl.Times)
			timeIdx[t] = i
			tbl.Times = append(tbl.Times, t)
			row := make([]float64, len(tbl.IDs))
			for k := range row {
				row[k] = domain.DrySentinel
			}
			tbl.Values = append(tbl.Values, row)
		}
		if v.Valid {
			tbl.Values[i][j] = v.Float64
		} else {
			tbl.Values[i][j] = math.NaN()
		}
	}
	return tbl, rows.Err()
}

// readMaxima reads the optional <table>_Maximums companion. A missing
// table is not an error; the domain layer derives maxima instead.
func (l *Loader) readMaxima(ctx context.Context, db *sql.DB, table, dtype string, geom domain.Geometry) (*domain.MaximumTable, error) {
	name := table + "_Maximums"
	ok, err := tableExists(ctx, db, name)
	if err != nil || !ok {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, max, tmax FROM %q ORDER BY rowid`, name))
	if err != nil {
		return nil, fmt.Errorf("read maxima table %s: %w", name, err)
	}
	defer rows.Close()

	tbl := &domain.MaximumTable{DataType: dtype, Geometry: geom}
	for rows.Next() {
		var id string
		var max, tmax sql.NullFloat64
		if err := rows.Scan(&id, &max, &tmax); err != nil {
			return nil, err
		}
		tbl.IDs = append(tbl.IDs, id)
		tbl.Max = append(tbl.Max, nullable(max))
		tbl.TMax = append(tbl.TMax, nullable(tmax))
	}
	return tbl, rows.Err()
}

func (l *Loader) readNetwork(ctx context.Context, db *sql.DB, snap *domain.Snapshot) error {
	if ok, err := tableExists(ctx, db, "Nodes"); err != nil {
		return err
	} else if ok {
		rows, err := db.QueryContext(ctx, `SELECT id, bed_level, top_level FROM Nodes ORDER BY rowid`)
		if err != nil {
			return fmt.Errorf("read nodes: %w", err)
		}
		for rows.Next() {
			var n domain.NodeRecord
			if err := rows.Scan(&n.ID, &n.BedLevel, &n.TopLevel); err != nil {
				rows.Close()
				return err
			}
			snap.Nodes = append(snap.Nodes, n)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}

	ok, err := tableExists(ctx, db, "Channels")
	if err != nil || !ok {
		return err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, us_node, ds_node, us_channel, ds_channel,
		flags, length, us_invert, ds_invert, us_obvert, ds_obvert FROM Channels ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("read channels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.ChannelRecord
		var usChan, dsChan, flags sql.NullString
		if err := rows.Scan(&c.ID, &c.USNode, &c.DSNode, &usChan, &dsChan,
			&flags, &c.Length, &c.USInvert, &c.DSInvert, &c.USObvert, &c.DSObvert); err != nil {
			return err
		}
		c.IsPipe = channelFlagged(flags.String)
		c.IsPit = unconnectedMarker(usChan.String) && unconnectedMarker(dsChan.String)
		snap.Channels = append(snap.Channels, c)
	}
	return rows.Err()
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

func channelFlagged(flags string) bool {
	for _, r := range flags {
		if r == 'C' || r == 'R' || r == 'c' || r == 'r' {
			return true
		}
	}
	return false
}

func unconnectedMarker(s string) bool {
	for _, r := range s {
		if r != '-' && r != ' ' {
			return false
		}
	}
	return true
}

func nullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
