package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the fully decoded contents of one result store.
type Snapshot struct {
	Name          string
	ReferenceTime time.Time
	Nodes         []NodeRecord
	Channels      []ChannelRecord
	Series        map[Domain]map[string][]*TimeTable
	Maxima        map[Domain]map[string][]*MaximumTable
}

// Loader decodes a result store into a Snapshot. Implementations live
// under internal/adapter and own their format errors.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// ResultStore is the query surface over one result store. Decoding is
// lazy: the first query loads the files, later queries reuse the
// snapshot. All methods are safe for concurrent use.
type ResultStore struct {
	loader Loader
	logger *slog.Logger

	once     sync.Once
	loaded   atomic.Bool
	failed   atomic.Bool
	loadErr  error
	snap     *Snapshot
	overview *Overview
	graph    *ChannelGraph
	loadedAt time.Time

	mu      sync.Mutex
	profile *profileCache
}

// profileCache keeps the last connectivity result. Long-profile queries
// routinely repeat the same id set with different data columns.
type profileCache struct {
	key      string
	branches []Branch
}

// NewResultStore wraps a loader in a lazily-loading query surface.
func NewResultStore(loader Loader, logger *slog.Logger) *ResultStore {
	return &ResultStore{loader: loader, logger: logger}
}

// Load forces decoding now instead of on first query.
func (s *ResultStore) Load(ctx context.Context) error {
	return s.ensureLoaded(ctx)
}

// CheckReadiness returns nil once the store has loaded successfully.
// Runs concurrently with a background Load, so loadErr is read only
// after the failed flag orders the write.
func (s *ResultStore) CheckReadiness(_ context.Context) error {
	if s.loaded.Load() {
		return nil
	}
	if s.failed.Load() {
		return s.loadErr
	}
	return errors.New("result store not loaded yet")
}

// Name returns the store name once loaded, "" before.
func (s *ResultStore) Name() string {
	if !s.loaded.Load() {
		return ""
	}
	return s.snap.Name
}

// ReferenceTime returns the run reference time once loaded.
func (s *ResultStore) ReferenceTime() time.Time {
	if !s.loaded.Load() {
		return time.Time{}
	}
	return s.snap.ReferenceTime
}

func (s *ResultStore) ensureLoaded(ctx context.Context) error {
	s.once.Do(func() {
		start := clock.Now()
		snap, err := s.loader.Load(ctx)
		if err != nil {
			s.loadErr = fmt.Errorf("load result store: %w", err)
			s.failed.Store(true)
			return
		}
		deriveMissingMaxima(snap)
		s.snap = snap
		s.overview = buildOverview(snap)
		s.graph = NewChannelGraph(snap.Channels)
		s.loadedAt = clock.Now()
		s.loaded.Store(true)
		s.logger.Info("result store loaded",
			"store", snap.Name,
			"objects", len(s.overview.IDs()),
			"channels", len(snap.Channels),
			"duration", s.loadedAt.Sub(start))
	})
	return s.loadErr
}

// IDs returns the object ids selected by a filter expression.
func (s *ResultStore) IDs(ctx context.Context, filter string) ([]string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	ov, _ := Resolve(s.overview, filter, false)
	return ov.IDs(), nil
}

// DataTypes returns the canonical data type names selected by a filter
// expression.
func (s *ResultStore) DataTypes(ctx context.Context, filter string) ([]string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	ov, _ := Resolve(s.overview, filter, false)
	return ov.DataTypes(), nil
}

// TimeAxis is the merged time axis answered by a times query.
type TimeAxis struct {
	Rel []float64
	Abs []time.Time // populated under TimeAbsolute
}

// Times returns the sorted, deduplicated union of output times across the
// rows selected by a filter expression.
func (s *ResultStore) Times(ctx context.Context, filter string, format TimeFormat) (*TimeAxis, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	ov, _ := Resolve(s.overview, filter, false)
	axis := &TimeAxis{Rel: ov.UnionTimes()}
	if format == TimeAbsolute {
		axis.Abs = AbsoluteTimes(s.snap.ReferenceTime, axis.Rel)
	}
	return axis, nil
}

// TimeSeries extracts the time series for the given ids and data types.
// Either list may be empty, meaning "all". Unknown ids or data types that
// resolve to nothing yield an empty frame, never an error.
func (s *ResultStore) TimeSeries(ctx context.Context, ids, dataTypes []string, format TimeFormat) (*SeriesFrame, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	ov, ok := s.resolveQuery(ids, dataTypes, "")
	if !ok {
		return &SeriesFrame{}, nil
	}
	return ExtractSeries(s.snap.Series, ov, format, s.snap.ReferenceTime), nil
}

// Maximum extracts the per-object maxima (and times of maxima) for the
// given ids and data types.
func (s *ResultStore) Maximum(ctx context.Context, ids, dataTypes []string, format TimeFormat) (*MaxFrame, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	ov, ok := s.resolveQuery(ids, dataTypes, "max")
	if !ok {
		return &MaxFrame{}, nil
	}
	return ExtractMaxima(s.snap.Maxima, ov, format, s.snap.ReferenceTime), nil
}

// resolveQuery runs the two-stage id / data-type resolution shared by the
// extraction queries. Each stage ignores the other stage's tokens; a
// stage whose own tokens all miss fails the query.
func (s *ResultStore) resolveQuery(ids, dataTypes []string, attr string) (*Overview, bool) {
	idOv, idMatched := Resolve(s.overview, strings.Join(ids, "/"), true)
	if len(ids) > 0 && !idMatched.Any() {
		return nil, false
	}
	expr := strings.Join(dataTypes, "/")
	if attr != "" {
		expr += "/" + attr
	}
	dtOv, dtMatched := Resolve(idOv, expr, true)
	if len(dataTypes) > 0 && !dtMatched.DataType {
		return nil, false
	}
	return dtOv, true
}

// LongProfileQuery describes a long-profile request over the 1D network.
type LongProfileQuery struct {
	IDs       []string
	DataTypes []string
	Time      *float64 // relative hours for temporal columns, nil for none
}

// LongProfile assembles a long profile through the requested channels.
// Returns UnsupportedError when the store has no channel network and
// ConnectivityError when the ids cannot be joined into one profile.
func (s *ResultStore) LongProfile(ctx context.Context, q LongProfileQuery) (*ProfileFrame, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if s.graph.Empty() {
		return nil, &UnsupportedError{Op: "long profile", Reason: "store has no channel network"}
	}

	ids := make([]string, 0, len(q.IDs))
	for _, id := range q.IDs {
		c, ok := s.graph.Lookup(id)
		if !ok {
			s.logger.Warn("long profile id is not a channel, dropping", "id", id)
			continue
		}
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return nil, &ConnectivityError{IDs: q.IDs}
	}

	branches, err := s.connectCached(ids)
	if err != nil {
		return nil, err
	}
	frame := s.graph.BuildProfile(branches)

	dataTypes := q.DataTypes
	if len(dataTypes) == 0 {
		dataTypes = []string{"bed level"}
	}
	for _, name := range dataTypes {
		s.addProfileColumn(frame, name, q.Time)
	}
	return frame, nil
}

// connectCached runs connectivity, reusing the previous result when the
// id set is unchanged (case-insensitively, order independent).
func (s *ResultStore) connectCached(ids []string) ([]Branch, error) {
	key := profileKey(ids)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile != nil && s.profile.key == key {
		return s.profile.branches, nil
	}
	branches, skipped, err := s.graph.ConnectAll(ids)
	if err != nil {
		return nil, err
	}
	for _, id := range skipped {
		s.logger.Warn("long profile id cannot reach the profile, dropping", "id", id)
	}
	s.profile = &profileCache{key: key, branches: branches}
	return branches, nil
}

func profileKey(ids []string) string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strings.ToLower(id)
	}
	sort.Strings(keys)
	return strings.Join(keys, "/")
}

// addProfileColumn appends one requested data column to a profile frame.
// Static columns come from channel attributes, maxima from the node
// maxima tables, and temporal columns sample the node time series at the
// requested time.
func (s *ResultStore) addProfileColumn(frame *ProfileFrame, name string, at *float64) {
	canon, mod, ok := resolveDataType(name)
	if !ok {
		s.logger.Warn("unknown long profile data type, skipping", "data_type", name)
		return
	}
	switch canon {
	case "bed level":
		frame.AddBedLevel(s.graph)
		return
	case "pipes":
		frame.AddPipes(s.graph)
		return
	case "pits":
		frame.AddPits(s.graph)
		return
	}

	switch mod {
	case ModMax, ModTMax:
		tbl := maximaTable(s.snap.Maxima[Domain1D][canon], GeomPoint)
		if tbl == nil {
			s.logger.Warn("no node maxima for long profile data type, skipping", "data_type", name)
			return
		}
		vals := make(map[string]float64, len(tbl.IDs))
		for i, id := range tbl.IDs {
			if mod == ModTMax {
				vals[strings.ToLower(id)] = tbl.TMax[i]
			} else {
				vals[strings.ToLower(id)] = CleanValue(tbl.Max[i])
			}
		}
		frame.AddNodeColumn(mod.apply(canon), vals)
	case ModMin, ModTMin:
		s.logger.Warn("minima are not recorded per node, skipping", "data_type", name)
	default:
		if at == nil {
			s.logger.Warn("temporal long profile data type needs a time, skipping", "data_type", name)
			return
		}
		s.addTemporalNodeColumn(frame, canon, *at)
	}
}

func (s *ResultStore) addTemporalNodeColumn(frame *ProfileFrame, canon string, at float64) {
	for _, tbl := range s.snap.Series[Domain1D][canon] {
		if tbl.Geometry != GeomPoint {
			continue
		}
		idx := ClosestTimeIndex(tbl.Times, at)
		if idx < 0 {
			s.logger.Warn("requested time precedes output, skipping", "data_type", canon, "time", at)
			return
		}
		vals := make(map[string]float64, len(tbl.IDs))
		for j, id := range tbl.IDs {
			vals[strings.ToLower(id)] = CleanValue(tbl.Values[idx][j])
		}
		frame.AddNodeColumn(canon, vals)
		return
	}
	s.logger.Warn("no node time series for long profile data type, skipping", "data_type", canon)
}

// buildOverview catalogues a snapshot: temporal rows per table column,
// maxima rows per maxima table entry, and static rows for the channel
// network attributes. Domains are walked in priority order and data types
// sorted so the catalogue is deterministic.
func buildOverview(snap *Snapshot) *Overview {
	ov := &Overview{}
	for _, d := range Domains {
		for _, dtype := range sortedKeys(snap.Series[d]) {
			for _, tbl := range snap.Series[d][dtype] {
				res := tbl.Resolution()
				for _, id := range tbl.IDs {
					ov.Rows = append(ov.Rows, Row{
						ID:       id,
						Domain:   d,
						Geometry: tbl.Geometry,
						DataType: dtype,
						Res:      res,
					})
				}
			}
		}
		for _, dtype := range sortedKeys(snap.Maxima[d]) {
			for _, tbl := range snap.Maxima[d][dtype] {
				for _, id := range tbl.IDs {
					ov.Rows = append(ov.Rows, Row{
						ID:       id,
						Domain:   d,
						Geometry: tbl.Geometry,
						DataType: dtype,
						IsMax:    true,
					})
				}
			}
		}
		if d != Domain1D {
			continue
		}
		for _, n := range snap.Nodes {
			ov.Rows = append(ov.Rows, Row{
				ID: n.ID, Domain: Domain1D, Geometry: GeomPoint,
				DataType: "bed level", Static: true,
			})
		}
		for _, c := range snap.Channels {
			ov.Rows = append(ov.Rows, Row{
				ID: c.ID, Domain: Domain1D, Geometry: GeomLine,
				DataType: "bed level", Static: true,
			})
			if c.IsPipe {
				ov.Rows = append(ov.Rows, Row{
					ID: c.ID, Domain: Domain1D, Geometry: GeomLine,
					DataType: "pipes", Static: true,
				})
			}
			if c.IsPit {
				ov.Rows = append(ov.Rows, Row{
					ID: c.ID, Domain: Domain1D, Geometry: GeomLine,
					DataType: "pits", Static: true,
				})
			}
		}
	}
	return ov
}

// deriveMissingMaxima fills in maxima tables for series that carry no
// recorded maximum. 2D plot output stores record no explicit maxima.
// Derivation runs per (data type, geometry) so a point table never
// absorbs line ids, which would mislabel them in maxima columns.
func deriveMissingMaxima(snap *Snapshot) {
	if snap.Maxima == nil {
		snap.Maxima = make(map[Domain]map[string][]*MaximumTable)
	}
	for d, series := range snap.Series {
		if snap.Maxima[d] == nil {
			snap.Maxima[d] = make(map[string][]*MaximumTable)
		}
		for dtype, tables := range series {
			derived := make(map[Geometry]*MaximumTable)
			for _, tbl := range tables {
				if maximaTable(snap.Maxima[d][dtype], tbl.Geometry) != nil {
					continue
				}
				der := DeriveMaximum(tbl)
				if merged, ok := derived[tbl.Geometry]; ok {
					merged.IDs = append(merged.IDs, der.IDs...)
					merged.Max = append(merged.Max, der.Max...)
					merged.TMax = append(merged.TMax, der.TMax...)
					continue
				}
				derived[tbl.Geometry] = der
				snap.Maxima[d][dtype] = append(snap.Maxima[d][dtype], der)
			}
		}
	}
}

// maximaTable returns the table with the given geometry, nil when absent.
func maximaTable(tables []*MaximumTable, geom Geometry) *MaximumTable {
	for _, tbl := range tables {
		if tbl.Geometry == geom {
			return tbl
		}
	}
	return nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
