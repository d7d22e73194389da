// Package http exposes the result store query API plus health,
// readiness, and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hydro-results/internal/domain"
	"github.com/couchcryptid/hydro-results/internal/observability"
)

// Querier is the result store surface the API serves. *domain.ResultStore
// satisfies it.
type Querier interface {
	CheckReadiness(ctx context.Context) error
	Name() string
	ReferenceTime() time.Time
	IDs(ctx context.Context, filter string) ([]string, error)
	DataTypes(ctx context.Context, filter string) ([]string, error)
	Times(ctx context.Context, filter string, format domain.TimeFormat) (*domain.TimeAxis, error)
	TimeSeries(ctx context.Context, ids, dataTypes []string, format domain.TimeFormat) (*domain.SeriesFrame, error)
	Maximum(ctx context.Context, ids, dataTypes []string, format domain.TimeFormat) (*domain.MaxFrame, error)
	LongProfile(ctx context.Context, q domain.LongProfileQuery) (*domain.ProfileFrame, error)
}

// Server exposes the query API over one result store.
type Server struct {
	httpServer *http.Server
	store      Querier
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /v1 query routes plus
// /healthz, /readyz, and /metrics.
func NewServer(addr string, store Querier, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:   store,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/info", s.instrument("info", s.handleInfo))
	mux.HandleFunc("GET /v1/ids", s.instrument("ids", s.handleIDs))
	mux.HandleFunc("GET /v1/data-types", s.instrument("data_types", s.handleDataTypes))
	mux.HandleFunc("GET /v1/times", s.instrument("times", s.handleTimes))
	mux.HandleFunc("GET /v1/time-series", s.instrument("time_series", s.handleTimeSeries))
	mux.HandleFunc("GET /v1/maximum", s.instrument("maximum", s.handleMaximum))
	mux.HandleFunc("GET /v1/long-profile", s.instrument("long_profile", s.handleLongProfile))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// queryError is returned by handlers that already know the status code.
type queryError struct {
	status int
	err    error
}

func (e *queryError) Error() string { return e.err.Error() }

// instrument wraps a query handler with request logging and metrics.
// Handler errors map onto status codes by kind: unsupported queries are
// the caller's fault, connectivity failures mean the ids cannot form a
// profile, anything else is a server error.
func (s *Server) instrument(op string, h func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		logger := s.logger.With("op", op, "request_id", reqID)
		w.Header().Set("X-Request-Id", reqID)

		err := h(w, r)
		s.metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err == nil {
			s.metrics.QueriesTotal.WithLabelValues(op, "success").Inc()
			logger.Debug("query served", "duration", time.Since(start))
			return
		}

		status := http.StatusInternalServerError
		outcome := "error"
		var qe *queryError
		var unsupported *domain.UnsupportedError
		var connectivity *domain.ConnectivityError
		switch {
		case errors.As(err, &qe):
			status = qe.status
			outcome = "client_error"
		case errors.As(err, &unsupported):
			status = http.StatusBadRequest
			outcome = "client_error"
		case errors.As(err, &connectivity):
			status = http.StatusUnprocessableEntity
			outcome = "client_error"
		}
		s.metrics.QueriesTotal.WithLabelValues(op, outcome).Inc()
		if status >= 500 {
			logger.Error("query failed", "error", err)
		} else {
			logger.Warn("query rejected", "error", err, "status", status)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.CheckReadiness(r.Context()); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store":          s.store.Name(),
		"reference_time": s.store.ReferenceTime().Format(time.RFC3339),
	})
	return nil
}

func (s *Server) handleIDs(w http.ResponseWriter, r *http.Request) error {
	ids, err := s.store.IDs(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": nonNil(ids)})
	return nil
}

func (s *Server) handleDataTypes(w http.ResponseWriter, r *http.Request) error {
	dtypes, err := s.store.DataTypes(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"data_types": nonNil(dtypes)})
	return nil
}

func (s *Server) handleTimes(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	axis, err := s.store.Times(r.Context(), q.Get("filter"), domain.ParseTimeFormat(q.Get("time_format")))
	if err != nil {
		return err
	}
	resp := map[string]any{"times": jsonFloats(axis.Rel)}
	if axis.Abs != nil {
		resp["absolute_times"] = axis.Abs
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

type seriesBlockResponse struct {
	Times    []jsonFloat   `json:"times"`
	AbsTimes []time.Time   `json:"absolute_times,omitempty"`
	Names    []string      `json:"names"`
	Values   [][]jsonFloat `json:"values"`
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	frame, err := s.store.TimeSeries(r.Context(),
		listParam(q.Get("ids")), listParam(q.Get("data_types")),
		domain.ParseTimeFormat(q.Get("time_format")))
	if err != nil {
		return err
	}
	blocks := make([]seriesBlockResponse, 0, len(frame.Blocks))
	for _, b := range frame.Blocks {
		rows := make([][]jsonFloat, len(b.Values))
		for i, row := range b.Values {
			rows[i] = jsonFloats(row)
		}
		blocks = append(blocks, seriesBlockResponse{
			Times:    jsonFloats(b.Times),
			AbsTimes: b.AbsTimes,
			Names:    nonNil(b.Names),
			Values:   rows,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
	return nil
}

type maxColumnResponse struct {
	Name     string      `json:"name"`
	Values   []jsonFloat `json:"values"`
	AbsTimes []time.Time `json:"absolute_times,omitempty"`
}

func (s *Server) handleMaximum(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	frame, err := s.store.Maximum(r.Context(),
		listParam(q.Get("ids")), listParam(q.Get("data_types")),
		domain.ParseTimeFormat(q.Get("time_format")))
	if err != nil {
		return err
	}
	cols := make([]maxColumnResponse, 0, len(frame.Columns))
	for _, c := range frame.Columns {
		cols = append(cols, maxColumnResponse{
			Name:     c.Name,
			Values:   jsonFloats(c.Values),
			AbsTimes: c.AbsTimes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ids":     nonNil(frame.IDs),
		"columns": cols,
	})
	return nil
}

type profileEntryResponse struct {
	Branch  int       `json:"branch"`
	Channel string    `json:"channel"`
	Node    string    `json:"node"`
	Offset  jsonFloat `json:"offset"`
}

type profileColumnResponse struct {
	Name   string      `json:"name"`
	Values []jsonFloat `json:"values"`
}

func (s *Server) handleLongProfile(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	query := domain.LongProfileQuery{
		IDs:       listParam(q.Get("ids")),
		DataTypes: listParam(q.Get("data_types")),
	}
	if len(query.IDs) == 0 {
		return &queryError{status: http.StatusBadRequest, err: errors.New("ids parameter is required")}
	}
	if raw := q.Get("time"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &queryError{status: http.StatusBadRequest, err: errors.New("time must be a number of hours")}
		}
		query.Time = &t
	}

	frame, err := s.store.LongProfile(r.Context(), query)
	if err != nil {
		return err
	}
	entries := make([]profileEntryResponse, len(frame.Entries))
	for i, e := range frame.Entries {
		entries[i] = profileEntryResponse{
			Branch: e.BranchID, Channel: e.Channel, Node: e.Node, Offset: jsonFloat(e.Offset),
		}
	}
	cols := make([]profileColumnResponse, len(frame.Columns))
	for i, c := range frame.Columns {
		cols[i] = profileColumnResponse{Name: c.Name, Values: jsonFloats(c.Values)}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"columns": cols,
	})
	return nil
}

// jsonFloat marshals NaN as null. Dry cells and missing maxima surface
// as NaN internally, which encoding/json refuses to emit.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func jsonFloats(vals []float64) []jsonFloat {
	out := make([]jsonFloat, len(vals))
	for i, v := range vals {
		out[i] = jsonFloat(v)
	}
	return out
}

// listParam splits a comma-separated query parameter, dropping blanks.
func listParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// nonNil keeps empty lists as [] in JSON instead of null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
