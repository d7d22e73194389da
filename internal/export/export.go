// Package export flattens a store's maxima tables into records and
// publishes them to a sink in batches.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-results/internal/domain"
	"github.com/couchcryptid/hydro-results/internal/observability"
)

// MaximaSource answers the maxima query the export reads from.
// *domain.ResultStore satisfies it.
type MaximaSource interface {
	Name() string
	ReferenceTime() time.Time
	Maximum(ctx context.Context, ids, dataTypes []string, format domain.TimeFormat) (*domain.MaxFrame, error)
}

// BatchPublisher writes multiple maxima records to the destination.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, records []domain.MaximaRecord) error
}

// Runner extracts maxima and publishes them batch by batch.
type Runner struct {
	source    MaximaSource
	publisher BatchPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	batchSize int

	// Publish retry knobs, overridable in tests.
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxAttempts    int
}

// New creates a Runner with the given stages and observability.
func New(source MaximaSource, publisher BatchPublisher, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Runner {
	return &Runner{
		source:         source,
		publisher:      publisher,
		logger:         logger,
		metrics:        metrics,
		batchSize:      batchSize,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
		maxAttempts:    5,
	}
}

// Run executes one export pass: query the maxima selected by the filter
// tokens, flatten them to records, and publish in batches. Returns the
// number of records published.
func (r *Runner) Run(ctx context.Context, filter string) (int, error) {
	frame, err := r.source.Maximum(ctx, nil, filterTokens(filter), domain.TimeRelative)
	if err != nil {
		return 0, fmt.Errorf("query maxima: %w", err)
	}
	records := domain.BuildMaximaRecords(r.source.Name(), r.source.ReferenceTime(), frame)
	if len(records) == 0 {
		r.logger.Warn("no maxima records selected", "filter", filter)
		return 0, nil
	}
	r.logger.Info("export started",
		"store", r.source.Name(), "records", len(records), "batch_size", r.batchSize)

	published := 0
	for start := 0; start < len(records); start += r.batchSize {
		end := min(start+r.batchSize, len(records))
		if err := r.publishWithRetry(ctx, records[start:end]); err != nil {
			return published, err
		}
		published += end - start
		r.metrics.RecordsExported.Add(float64(end - start))
	}
	r.logger.Info("export finished", "records", published)
	return published, nil
}

// publishWithRetry publishes one batch, backing off exponentially on
// failure up to maxAttempts.
func (r *Runner) publishWithRetry(ctx context.Context, batch []domain.MaximaRecord) error {
	backoff := r.initialBackoff
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err = r.publisher.PublishBatch(ctx, batch); err == nil {
			return nil
		}
		r.metrics.ExportErrors.Inc()
		r.logger.Error("publish batch failed",
			"error", err, "attempt", attempt, "batch_size", len(batch))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < r.maxAttempts && !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, r.maxBackoff)
	}
	return fmt.Errorf("publish batch after %d attempts: %w", r.maxAttempts, err)
}

func filterTokens(filter string) []string {
	if filter == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(filter, "/") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
