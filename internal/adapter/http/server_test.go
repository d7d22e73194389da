package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-results/internal/domain"
	"github.com/couchcryptid/hydro-results/internal/observability"
)

// fakeStore is a canned Querier for handler tests.
type fakeStore struct {
	readyErr   error
	ids        []string
	dataTypes  []string
	axis       *domain.TimeAxis
	series     *domain.SeriesFrame
	maxima     *domain.MaxFrame
	profile    *domain.ProfileFrame
	queryErr   error
	gotFilter  string
	gotIDs     []string
	gotDTypes  []string
	gotProfile domain.LongProfileQuery
}

func (f *fakeStore) CheckReadiness(context.Context) error { return f.readyErr }
func (f *fakeStore) Name() string                         { return "M01_5m_001" }
func (f *fakeStore) ReferenceTime() time.Time {
	return time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)
}

func (f *fakeStore) IDs(_ context.Context, filter string) ([]string, error) {
	f.gotFilter = filter
	return f.ids, f.queryErr
}

func (f *fakeStore) DataTypes(_ context.Context, filter string) ([]string, error) {
	f.gotFilter = filter
	return f.dataTypes, f.queryErr
}

func (f *fakeStore) Times(_ context.Context, filter string, _ domain.TimeFormat) (*domain.TimeAxis, error) {
	f.gotFilter = filter
	return f.axis, f.queryErr
}

func (f *fakeStore) TimeSeries(_ context.Context, ids, dataTypes []string, _ domain.TimeFormat) (*domain.SeriesFrame, error) {
	f.gotIDs, f.gotDTypes = ids, dataTypes
	return f.series, f.queryErr
}

func (f *fakeStore) Maximum(_ context.Context, ids, dataTypes []string, _ domain.TimeFormat) (*domain.MaxFrame, error) {
	f.gotIDs, f.gotDTypes = ids, dataTypes
	return f.maxima, f.queryErr
}

func (f *fakeStore) LongProfile(_ context.Context, q domain.LongProfileQuery) (*domain.ProfileFrame, error) {
	f.gotProfile = q
	return f.profile, f.queryErr
}

func newTestServer(store Querier) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", store, observability.NewMetricsForTesting(), logger)
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthAndReadiness(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)

	rec, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, body = get(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	store.readyErr = errors.New("result store not loaded yet")
	rec, body = get(t, s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
}

func TestInfo(t *testing.T) {
	rec, body := get(t, newTestServer(&fakeStore{}), "/v1/info")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "M01_5m_001", body["store"])
	assert.Equal(t, "2024-04-26T00:00:00Z", body["reference_time"])
}

func TestIDs(t *testing.T) {
	store := &fakeStore{ids: []string{"test", "pipe1"}}
	s := newTestServer(store)

	rec, body := get(t, s, "/v1/ids?filter=1d/channel")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"test", "pipe1"}, body["ids"])
	assert.Equal(t, "1d/channel", store.gotFilter)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	store.ids = nil
	_, body = get(t, s, "/v1/ids")
	assert.Equal(t, []any{}, body["ids"], "empty result stays a list")
}

func TestDataTypes(t *testing.T) {
	store := &fakeStore{dataTypes: []string{"water level", "flow"}}
	rec, body := get(t, newTestServer(store), "/v1/data-types?filter=node")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"water level", "flow"}, body["data_types"])
	assert.Equal(t, "node", store.gotFilter)
}

func TestTimes(t *testing.T) {
	store := &fakeStore{axis: &domain.TimeAxis{Rel: []float64{0, 0.5, 1}}}
	s := newTestServer(store)

	rec, body := get(t, s, "/v1/times")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{0.0, 0.5, 1.0}, body["times"])
	assert.NotContains(t, body, "absolute_times")

	store.axis = &domain.TimeAxis{
		Rel: []float64{0},
		Abs: []time.Time{time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)},
	}
	_, body = get(t, s, "/v1/times?time_format=absolute")
	assert.Equal(t, []any{"2024-04-26T00:00:00Z"}, body["absolute_times"])
}

func TestTimeSeries(t *testing.T) {
	store := &fakeStore{series: &domain.SeriesFrame{Blocks: []domain.SeriesBlock{{
		Times:  []float64{0, 0.5},
		Names:  []string{"node/water level/test"},
		Values: [][]float64{{10.0}, {math.NaN()}},
	}}}}
	s := newTestServer(store)

	rec, body := get(t, s, "/v1/time-series?ids=test,%20pipe1&data_types=h")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"test", "pipe1"}, store.gotIDs)
	assert.Equal(t, []string{"h"}, store.gotDTypes)

	blocks := body["blocks"].([]any)
	require.Len(t, blocks, 1)
	block := blocks[0].(map[string]any)
	assert.Equal(t, []any{"node/water level/test"}, block["names"])
	values := block["values"].([]any)
	assert.Equal(t, []any{10.0}, values[0])
	assert.Equal(t, []any{nil}, values[1], "NaN marshals as null")
}

func TestMaximum(t *testing.T) {
	store := &fakeStore{maxima: &domain.MaxFrame{
		IDs: []string{"test"},
		Columns: []domain.MaxColumn{
			{Name: "node/water level/max", Values: []float64{10.8}},
			{Name: "node/water level/tmax", Values: []float64{math.NaN()}},
		},
	}}
	rec, body := get(t, newTestServer(store), "/v1/maximum?ids=test&data_types=h")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"test"}, body["ids"])
	cols := body["columns"].([]any)
	require.Len(t, cols, 2)
	assert.Equal(t, []any{10.8}, cols[0].(map[string]any)["values"])
	assert.Equal(t, []any{nil}, cols[1].(map[string]any)["values"])
}

func TestLongProfile(t *testing.T) {
	store := &fakeStore{profile: &domain.ProfileFrame{
		Entries: []domain.ProfileEntry{
			{BranchID: 0, Channel: "pipe1", Node: "test", Offset: 0},
			{BranchID: 0, Channel: "pipe1", Node: "pipe.1", Offset: 150},
		},
		Columns: []domain.ProfileColumn{{Name: "bed level", Values: []float64{10, 9}}},
	}}
	s := newTestServer(store)

	rec, body := get(t, s, "/v1/long-profile?ids=pipe1&data_types=bed%20level&time=0.5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"pipe1"}, store.gotProfile.IDs)
	require.NotNil(t, store.gotProfile.Time)
	assert.Equal(t, 0.5, *store.gotProfile.Time)

	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "pipe1", first["channel"])
	assert.Equal(t, "test", first["node"])
	cols := body["columns"].([]any)
	require.Len(t, cols, 1)
	assert.Equal(t, []any{10.0, 9.0}, cols[0].(map[string]any)["values"])
}

func TestLongProfileValidation(t *testing.T) {
	s := newTestServer(&fakeStore{})

	rec, body := get(t, s, "/v1/long-profile")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "ids parameter is required")

	rec, body = get(t, s, "/v1/long-profile?ids=pipe1&time=noon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "time must be a number")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unsupported query", &domain.UnsupportedError{Op: "long profile", Reason: "store has no channel network"}, http.StatusBadRequest},
		{"disconnected ids", &domain.ConnectivityError{IDs: []string{"a", "b"}}, http.StatusUnprocessableEntity},
		{"internal failure", errors.New("load result store: boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeStore{queryErr: tt.err})
			rec, body := get(t, s, "/v1/long-profile?ids=pipe1")
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, body["error"], tt.err.Error())
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeStore{}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/ids", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
