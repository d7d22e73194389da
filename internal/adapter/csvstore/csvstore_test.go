package csvstore

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-results/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeFixtureStore lays down a small but complete store: the 1D
// network, node/channel series and maxima, one RL table, one 2D table.
func writeFixtureStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "nodes.csv", `Node,Bed Level,Top Level
test,10.0,14.0
pipe.1,9.0,13.0
`)
	writeFile(t, dir, "channels.csv", `Channel,US Node,DS Node,US Channel,DS Channel,Flags,Length,US Invert,DS Invert,US Obvert,DS Obvert
pipe1,test,pipe.1,------,out,C,100.0,10.0,9.0,12.0,11.0
out,pipe.1,out.1,pipe1,------,,200.0,9.0,8.0,0.0,0.0
pit1,p1,pipe.1,------,------,R,5.0,9.5,9.0,10.0,9.5
`)
	writeFile(t, dir, "wl.csv", `Time (h),test,pipe.1
0.0,10.2,9.1
0.5,10.8,**********
1.0,10.5,9.5
`)
	writeFile(t, dir, "q.csv", `Time (h),pipe1,out
0.0,1.0,0.5
0.5,4.2,3.1
1.0,2.1,1.8
`)
	writeFile(t, dir, "node_max.csv", `Node,Hmax,Time Hmax
test,10.8,0.5
pipe.1,9.9,0.5
`)
	writeFile(t, dir, "chan_max.csv", `Channel,Qmax,Time Qmax,Vmax,Time Vmax
pipe1,4.2,0.5,1.9,0.6
out,3.1,0.5,1.2,0.6
`)
	writeFile(t, dir, "rl_wl.csv", `Time (h),rl1
0.0,3.0
0.5,3.6
1.0,3.2
`)
	writeFile(t, dir, "po_wl.csv", `Time (h),po1,po2
0.0,5.1,4.0
0.25,5.4,4.2
0.5,5.9,4.8
0.75,5.6,4.5
1.0,5.2,4.1
`)

	return writeFile(t, dir, "M01_5m_001.tpc", `Format Version == 2
Simulation ID == M01_5m_001
Reference Time == 2024-04-26 00:00:00
Number 1D Channels == 3
Node Info == nodes.csv
Channel Info == channels.csv
1D Water Levels == wl.csv
1D Flows == q.csv
1D Node Maximums == node_max.csv
1D Channel Maximums == chan_max.csv
Reporting Location Points Water Levels == rl_wl.csv
2D Point Water Level [1] == po_wl.csv
`)
}

func TestLoadFixtureStore(t *testing.T) {
	loader := New(writeFixtureStore(t), testLogger())
	snap, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "M01_5m_001", snap.Name)
	assert.Equal(t, time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC), snap.ReferenceTime)

	t.Run("network info", func(t *testing.T) {
		require.Len(t, snap.Nodes, 2)
		assert.Equal(t, "test", snap.Nodes[0].ID)
		assert.Equal(t, 10.0, snap.Nodes[0].BedLevel)

		require.Len(t, snap.Channels, 3)
		pipe := snap.Channels[0]
		assert.Equal(t, "pipe1", pipe.ID)
		assert.Equal(t, "test", pipe.USNode)
		assert.Equal(t, 100.0, pipe.Length)
		assert.True(t, pipe.IsPipe)
		assert.False(t, pipe.IsPit)

		assert.False(t, snap.Channels[1].IsPipe, "no flags means open channel")
		assert.True(t, snap.Channels[2].IsPit, "unconnected both ends")
	})

	t.Run("1d series", func(t *testing.T) {
		wl := snap.Series[domain.Domain1D]["water level"]
		require.Len(t, wl, 1)
		assert.Equal(t, domain.GeomPoint, wl[0].Geometry)
		assert.Equal(t, []string{"test", "pipe.1"}, wl[0].IDs)
		assert.Equal(t, []float64{0, 0.5, 1.0}, wl[0].Times)
		assert.Equal(t, 10.2, wl[0].Values[0][0])
		assert.True(t, domain.IsDry(wl[0].Values[1][1]), "asterisk padding decodes as sentinel")

		q := snap.Series[domain.Domain1D]["flow"]
		require.Len(t, q, 1)
		assert.Equal(t, domain.GeomLine, q[0].Geometry)
	})

	t.Run("1d maxima", func(t *testing.T) {
		wl := snap.Maxima[domain.Domain1D]["water level"]
		require.Len(t, wl, 1)
		assert.Equal(t, domain.GeomPoint, wl[0].Geometry)
		v, tm, ok := wl[0].Row("test")
		require.True(t, ok)
		assert.Equal(t, 10.8, v)
		assert.Equal(t, 0.5, tm)

		// Channel maxima split into one table per data type.
		q := snap.Maxima[domain.Domain1D]["flow"]
		require.Len(t, q, 1)
		v, tm, ok = q[0].Row("pipe1")
		require.True(t, ok)
		assert.Equal(t, 4.2, v)
		assert.Equal(t, 0.5, tm)

		vel := snap.Maxima[domain.Domain1D]["velocity"]
		require.Len(t, vel, 1)
		_, tm, ok = vel[0].Row("out")
		require.True(t, ok)
		assert.Equal(t, 0.6, tm)
	})

	t.Run("other domains", func(t *testing.T) {
		rl := snap.Series[domain.DomainRL]["water level"]
		require.Len(t, rl, 1)
		assert.Equal(t, []string{"rl1"}, rl[0].IDs)

		po := snap.Series[domain.Domain2D]["water level"]
		require.Len(t, po, 1)
		assert.Equal(t, []string{"po1", "po2"}, po[0].IDs)
		assert.Len(t, po[0].Times, 5)
	})
}

func TestLoadServesQueries(t *testing.T) {
	// End to end through the domain layer: the decoded snapshot answers
	// a time-series query with properly prefixed column names.
	loader := New(writeFixtureStore(t), testLogger())
	store := domain.NewResultStore(loader, testLogger())
	ctx := context.Background()

	frame, err := store.TimeSeries(ctx, []string{"test"}, []string{"h"}, domain.TimeRelative)
	require.NoError(t, err)
	assert.Equal(t, []string{"node/water level/test"}, frame.Names())

	profile, err := store.LongProfile(ctx, domain.LongProfileQuery{
		IDs:       []string{"pipe1"},
		DataTypes: []string{"bed level", "pipes", "pits"},
	})
	require.NoError(t, err)
	require.Len(t, profile.Entries, 4)
	pits, ok := profile.Column("pits")
	require.True(t, ok)
	assert.True(t, math.IsNaN(pits[0]))
	assert.Equal(t, 9.0, pits[1], "pit invert lands on its node")
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing index", func(t *testing.T) {
		loader := New(filepath.Join(t.TempDir(), "nope.tpc"), testLogger())
		_, err := loader.Load(context.Background())
		require.Error(t, err)
	})

	t.Run("malformed index line", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "bad.tpc", "Simulation ID M01\n")
		_, err := New(path, testLogger()).Load(context.Background())
		var ferr *FormatError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, 1, ferr.Line)
	})

	t.Run("missing simulation id", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "anon.tpc", "Format Version == 2\n")
		_, err := New(path, testLogger()).Load(context.Background())
		var ferr *FormatError
		require.ErrorAs(t, err, &ferr)
	})

	t.Run("dangling table reference", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "dangle.tpc", "Simulation ID == x\n1D Flows == missing.csv\n")
		_, err := New(path, testLogger()).Load(context.Background())
		require.Error(t, err)
	})

	t.Run("ragged series row", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "q.csv", "Time (h),a,b\n0.0,1.0\n")
		path := writeFile(t, dir, "r.tpc", "Simulation ID == x\n1D Flows == q.csv\n")
		_, err := New(path, testLogger()).Load(context.Background())
		require.Error(t, err)
	})

	t.Run("bad reference time", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "t.tpc", "Simulation ID == x\nReference Time == yesterday\n")
		_, err := New(path, testLogger()).Load(context.Background())
		require.Error(t, err)
	})
}
