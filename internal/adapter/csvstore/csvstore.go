// Package csvstore decodes CSV result stores: an index file of
// "Key == Value" lines pointing at per-table CSV files.
//
// The index names the simulation, its reference time, the 1D network
// info tables, and one CSV per (domain, data type) result table. Time
// series CSVs carry a "Time (h)" column followed by one column per
// object id; maxima CSVs carry an id column followed by value/"Time x"
// column pairs.
package csvstore

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-results/internal/domain"
)

// FormatError reports a malformed store file.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// refTimeLayout is the timestamp format used by store index files.
const refTimeLayout = "2006-01-02 15:04:05"

var (
	rlKeyRe = regexp.MustCompile(`^Reporting Location (Points|Lines|Regions) (.+)$`)
	poKeyRe = regexp.MustCompile(`^2D (Point|Line|Region) (.+?)(?: \[\d+\])?$`)
	oneDRe  = regexp.MustCompile(`^1D (.+)$`)
)

// nodeDataTypes are the 1D result types recorded at nodes; everything
// else in the 1D domain belongs to channels.
var nodeDataTypes = map[string]bool{
	"water level":        true,
	"energy":             true,
	"mass balance error": true,
	"volume":             true,
}

// Loader reads a CSV result store. It implements domain.Loader.
type Loader struct {
	path   string
	logger *slog.Logger
}

// New creates a loader for the given index file.
func New(path string, logger *slog.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Load decodes the index and every table it references.
func (l *Loader) Load(ctx context.Context) (*domain.Snapshot, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open store index: %w", err)
	}
	defer f.Close()

	snap := &domain.Snapshot{
		Series: make(map[domain.Domain]map[string][]*domain.TimeTable),
		Maxima: make(map[domain.Domain]map[string][]*domain.MaximumTable),
	}
	dir := filepath.Dir(l.path)

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "!") {
			continue
		}
		key, val, ok := strings.Cut(raw, "==")
		if !ok {
			return nil, &FormatError{Path: l.path, Line: line, Msg: "expected 'Key == Value'"}
		}
		if err := l.apply(snap, dir, strings.TrimSpace(key), strings.TrimSpace(val)); err != nil {
			return nil, fmt.Errorf("index line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read store index: %w", err)
	}
	if snap.Name == "" {
		return nil, &FormatError{Path: l.path, Msg: "missing Simulation ID"}
	}
	return snap, nil
}

func (l *Loader) apply(snap *domain.Snapshot, dir, key, val string) error {
	switch key {
	case "Simulation ID":
		snap.Name = val
		return nil
	case "Format Version":
		return nil
	case "Reference Time":
		t, err := time.Parse(refTimeLayout, val)
		if err != nil {
			return fmt.Errorf("parse reference time: %w", err)
		}
		snap.ReferenceTime = t.UTC()
		return nil
	case "Node Info":
		nodes, err := readNodeInfo(filepath.Join(dir, val))
		if err != nil {
			return err
		}
		snap.Nodes = nodes
		return nil
	case "Channel Info":
		channels, err := readChannelInfo(filepath.Join(dir, val))
		if err != nil {
			return err
		}
		snap.Channels = channels
		return nil
	case "1D Node Maximums":
		return readMaximaInto(snap, domain.Domain1D, domain.GeomPoint, filepath.Join(dir, val))
	case "1D Channel Maximums":
		return readMaximaInto(snap, domain.Domain1D, domain.GeomLine, filepath.Join(dir, val))
	}

	if m := rlKeyRe.FindStringSubmatch(key); m != nil {
		geom := geometryFor(m[1])
		if m[2] == "Maximums" {
			return readMaximaInto(snap, domain.DomainRL, geom, filepath.Join(dir, val))
		}
		return readSeriesInto(snap, domain.DomainRL, geom, domain.Normalize(m[2]), filepath.Join(dir, val))
	}
	if m := poKeyRe.FindStringSubmatch(key); m != nil {
		geom := geometryFor(m[1])
		return readSeriesInto(snap, domain.Domain2D, geom, domain.Normalize(m[2]), filepath.Join(dir, val))
	}
	if m := oneDRe.FindStringSubmatch(key); m != nil {
		if strings.HasPrefix(m[1], "Number ") {
			return nil
		}
		dtype := domain.Normalize(m[1])
		geom := domain.GeomLine
		if nodeDataTypes[dtype] {
			geom = domain.GeomPoint
		}
		return readSeriesInto(snap, domain.Domain1D, geom, dtype, filepath.Join(dir, val))
	}

	// Metadata counts and unrecognized keys are harmless.
	l.logger.Debug("skipping index key", "key", key)
	return nil
}

func geometryFor(word string) domain.Geometry {
	switch word {
	case "Points", "Point":
		return domain.GeomPoint
	case "Lines", "Line":
		return domain.GeomLine
	default:
		return domain.GeomPolygon
	}
}

// readSeriesInto parses a time series CSV: "Time (h)" then one column
// per object id. Unparseable cells become the dry sentinel.
func readSeriesInto(snap *domain.Snapshot, d domain.Domain, geom domain.Geometry, dtype, path string) error {
	records, err := readCSV(path)
	if err != nil {
		return err
	}
	if len(records) < 1 || len(records[0]) < 2 {
		return &FormatError{Path: path, Msg: "time series needs a time column and at least one id"}
	}
	header := records[0]
	tbl := &domain.TimeTable{
		DataType: dtype,
		Geometry: geom,
		IDs:      append([]string(nil), header[1:]...),
	}
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return &FormatError{Path: path, Line: i + 2, Msg: "ragged row"}
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return &FormatError{Path: path, Line: i + 2, Msg: "bad time value " + rec[0]}
		}
		tbl.Times = append(tbl.Times, t)
		row := make([]float64, len(tbl.IDs))
		for j, cell := range rec[1:] {
			row[j] = parseValue(cell)
		}
		tbl.Values = append(tbl.Values, row)
	}
	if snap.Series[d] == nil {
		snap.Series[d] = make(map[string][]*domain.TimeTable)
	}
	snap.Series[d][dtype] = append(snap.Series[d][dtype], tbl)
	return nil
}

// readMaximaInto parses a maxima CSV: an id column, then one column per
// modified data type ("Hmax", "Qmax") optionally followed by its "Time x"
// column.
func readMaximaInto(snap *domain.Snapshot, d domain.Domain, geom domain.Geometry, path string) error {
	records, err := readCSV(path)
	if err != nil {
		return err
	}
	if len(records) < 2 || len(records[0]) < 2 {
		return &FormatError{Path: path, Msg: "maxima table needs an id column and a value column"}
	}
	header := records[0]

	ids := make([]string, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return &FormatError{Path: path, Line: i + 2, Msg: "ragged row"}
		}
		ids = append(ids, strings.TrimSpace(rec[0]))
	}

	if snap.Maxima[d] == nil {
		snap.Maxima[d] = make(map[string][]*domain.MaximumTable)
	}
	for col := 1; col < len(header); col++ {
		name := strings.TrimSpace(header[col])
		if strings.HasPrefix(name, "Time ") {
			continue
		}
		canon := domain.Normalize(name)
		base := strings.TrimPrefix(canon, "max ")
		var tbl *domain.MaximumTable
		for _, have := range snap.Maxima[d][base] {
			if have.Geometry == geom {
				tbl = have
				break
			}
		}
		if tbl == nil {
			tbl = &domain.MaximumTable{DataType: base, Geometry: geom}
			snap.Maxima[d][base] = append(snap.Maxima[d][base], tbl)
		}
		timeCol := findTimeColumn(header, name)
		for i, rec := range records[1:] {
			tbl.IDs = append(tbl.IDs, ids[i])
			tbl.Max = append(tbl.Max, parseValue(rec[col]))
			if timeCol >= 0 {
				tbl.TMax = append(tbl.TMax, parseValue(rec[timeCol]))
			} else {
				tbl.TMax = append(tbl.TMax, math.NaN())
			}
		}
	}
	return nil
}

func findTimeColumn(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == "Time "+name {
			return i
		}
	}
	return -1
}

// readNodeInfo parses the node table: Node, Bed Level, Top Level.
func readNodeInfo(path string) ([]domain.NodeRecord, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	var out []domain.NodeRecord
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) < 3 {
			return nil, &FormatError{Path: path, Line: i + 1, Msg: "node row needs Node, Bed Level, Top Level"}
		}
		out = append(out, domain.NodeRecord{
			ID:       strings.TrimSpace(rec[0]),
			BedLevel: parseValue(rec[1]),
			TopLevel: parseValue(rec[2]),
		})
	}
	return out, nil
}

// readChannelInfo parses the channel table: Channel, US Node, DS Node,
// US Channel, DS Channel, Flags, Length, US Invert, DS Invert,
// US Obvert, DS Obvert. Pit channels carry the unconnected marker in
// both channel adjacency columns; pipes carry C or R flags.
func readChannelInfo(path string) ([]domain.ChannelRecord, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	var out []domain.ChannelRecord
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) < 11 {
			return nil, &FormatError{Path: path, Line: i + 1, Msg: "channel row needs 11 columns"}
		}
		flags := strings.ToUpper(strings.TrimSpace(rec[5]))
		out = append(out, domain.ChannelRecord{
			ID:       strings.TrimSpace(rec[0]),
			USNode:   strings.TrimSpace(rec[1]),
			DSNode:   strings.TrimSpace(rec[2]),
			Length:   parseValue(rec[6]),
			USInvert: parseValue(rec[7]),
			DSInvert: parseValue(rec[8]),
			USObvert: parseValue(rec[9]),
			DSObvert: parseValue(rec[10]),
			IsPipe:   strings.ContainsAny(flags, "CR"),
			IsPit:    unconnectedMarker(rec[3]) && unconnectedMarker(rec[4]),
		})
	}
	return out, nil
}

func unconnectedMarker(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.Trim(s, "-") == ""
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// parseValue reads a float cell. Blank or unparseable cells (the files
// pad missing values with asterisks) map to the dry sentinel.
func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return domain.DrySentinel
	}
	return v
}
