package domain

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// testRefTime matches the reference time written by the fixture stores.
var testRefTime = time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)

// nodeTimes and poTimes are deliberately different resolutions so queries
// spanning both domains exercise the per-axis block handling.
var (
	nodeTimes = []float64{0, 0.5, 1.0}
	poTimes   = []float64{0, 0.25, 0.5, 0.75, 1.0}
)

// makeSnapshot builds a small three-domain store: a 1D pipe run of three
// channels, two 2D plot output objects, and two reporting locations. The
// id "test" exists as a 1D node, a 2D point, and an RL point.
func makeSnapshot() *Snapshot {
	return &Snapshot{
		Name:          "M01_5m_001",
		ReferenceTime: testRefTime,
		Nodes: []NodeRecord{
			{ID: "test", BedLevel: 10},
			{ID: "pipe.1", BedLevel: 9},
			{ID: "pipe.2", BedLevel: 8.5},
			{ID: "out.1", BedLevel: 8},
		},
		Channels: []ChannelRecord{
			{ID: "pipe1", USNode: "test", DSNode: "pipe.1", Length: 100,
				USInvert: 10, DSInvert: 9, USObvert: 12, DSObvert: 11, IsPipe: true},
			{ID: "pipe2", USNode: "pipe.1", DSNode: "pipe.2", Length: 50,
				USInvert: 9, DSInvert: 8.5, USObvert: 11, DSObvert: 10.5, IsPipe: true},
			{ID: "out", USNode: "pipe.2", DSNode: "out.1", Length: 200,
				USInvert: 8.5, DSInvert: 8},
		},
		Series: map[Domain]map[string][]*TimeTable{
			Domain1D: {
				"water level": {{
					DataType: "water level",
					Geometry: GeomPoint,
					Times:    nodeTimes,
					IDs:      []string{"test", "pipe.1", "pipe.2", "out.1"},
					Values: [][]float64{
						{10.2, 9.1, 8.6, -99999},
						{10.8, 9.9, 9.2, 8.4},
						{10.5, 9.5, 8.9, 8.2},
					},
				}},
				"flow": {{
					DataType: "flow",
					Geometry: GeomLine,
					Times:    nodeTimes,
					IDs:      []string{"pipe1", "pipe2", "out"},
					Values: [][]float64{
						{1.0, 0.8, 0.5},
						{4.2, 3.9, 3.1},
						{2.1, 2.0, 1.8},
					},
				}},
			},
			Domain2D: {
				"water level": {{
					DataType: "water level",
					Geometry: GeomPoint,
					Times:    poTimes,
					IDs:      []string{"test", "po2"},
					Values: [][]float64{
						{5.1, 4.0},
						{5.4, 4.2},
						{5.9, 4.8},
						{5.6, 4.5},
						{5.2, 4.1},
					},
				}},
				"flow": {{
					DataType: "flow",
					Geometry: GeomLine,
					Times:    poTimes,
					IDs:      []string{"po_line"},
					Values: [][]float64{
						{0.1}, {0.6}, {1.2}, {0.9}, {0.4},
					},
				}},
			},
			DomainRL: {
				"water level": {{
					DataType: "water level",
					Geometry: GeomPoint,
					Times:    nodeTimes,
					IDs:      []string{"rl1", "test"},
					Values: [][]float64{
						{3.0, 2.5},
						{3.6, 3.1},
						{3.2, 2.8},
					},
				}},
			},
		},
		Maxima: map[Domain]map[string][]*MaximumTable{
			Domain1D: {
				"water level": {{
					DataType: "water level",
					Geometry: GeomPoint,
					IDs:      []string{"test", "pipe.1", "pipe.2", "out.1"},
					Max:      []float64{10.8, 9.9, 9.2, 8.4},
					TMax:     []float64{0.5, 0.5, 0.5, 0.5},
				}},
				"flow": {{
					DataType: "flow",
					Geometry: GeomLine,
					IDs:      []string{"pipe1", "pipe2", "out"},
					Max:      []float64{4.2, 3.9, 3.1},
					TMax:     []float64{0.5, 0.5, 0.5},
				}},
			},
			DomainRL: {
				"water level": {{
					DataType: "water level",
					Geometry: GeomPoint,
					IDs:      []string{"rl1", "test"},
					Max:      []float64{3.6, 3.1},
					TMax:     []float64{0.5, 0.5},
				}},
			},
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingLoader wraps a snapshot and counts Load calls so tests can
// assert the decode runs exactly once.
type countingLoader struct {
	snap  *Snapshot
	err   error
	calls int
}

func (l *countingLoader) Load(_ context.Context) (*Snapshot, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.snap, nil
}

func makeOverview() *Overview {
	snap := makeSnapshot()
	deriveMissingMaxima(snap)
	return buildOverview(snap)
}
