//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-results/internal/adapter/csvstore"
	"github.com/couchcryptid/hydro-results/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-results/internal/config"
	"github.com/couchcryptid/hydro-results/internal/domain"
	"github.com/couchcryptid/hydro-results/internal/export"
	"github.com/couchcryptid/hydro-results/internal/observability"
)

// broker returns the Kafka broker address, skipping the test when none
// is configured.
func broker(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("KAFKA_BROKER")
	if addr == "" {
		t.Skip("KAFKA_BROKER not set")
	}
	return addr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTopic(t *testing.T, addr, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeStore writes a minimal CSV result store: two nodes with water
// level series and a matching maxima table.
func writeStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"wl.csv":       "Time (h),n1,n2\n0.0,10.0,9.5\n0.5,10.8,10.1\n1.0,10.2,9.8\n",
		"node_max.csv": "ID,Hmax,Time Hmax\nn1,10.8,0.5\nn2,10.1,0.5\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	index := "Simulation ID == M01_5m_001\n" +
		"Reference Time == 2024-04-26 00:00:00\n" +
		"1D Water Levels == wl.csv\n" +
		"1D Node Maximums == node_max.csv\n"
	path := filepath.Join(dir, "M01_5m_001.tpc")
	require.NoError(t, os.WriteFile(path, []byte(index), 0o644))
	return path
}

// TestExportEndToEnd loads a store, publishes its maxima through the
// Kafka writer, and verifies the records on the sink topic.
func TestExportEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	addr := broker(t)
	topic := fmt.Sprintf("test-maxima-%d", time.Now().UnixNano())
	createTopic(t, addr, topic)

	cfg := &config.Config{
		KafkaBrokers: []string{addr},
		KafkaTopic:   topic,
	}

	store := domain.NewResultStore(csvstore.New(writeStore(t), discardLogger()), discardLogger())
	require.NoError(t, store.Load(ctx))

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	runner := export.New(store, writer, discardLogger(), metrics, 100)

	published, err := runner.Run(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2, published)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{addr},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	records := make(map[string]domain.MaximaRecord, published)
	for len(records) < published {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from sink topic")

		var rec domain.MaximaRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		assert.Equal(t, rec.ID, string(msg.Key))
		records[rec.ID] = rec
	}

	n1, ok := records["n1"]
	require.True(t, ok, "expected a record for n1")
	assert.Equal(t, "M01_5m_001", n1.Store)
	assert.Equal(t, "node", n1.Kind)
	assert.Equal(t, "water level", n1.DataType)
	assert.Equal(t, 10.8, n1.Max)
	require.NotNil(t, n1.TMaxHours)
	assert.Equal(t, 0.5, *n1.TMaxHours)
	require.NotNil(t, n1.TMaxAbsolute)
	assert.Equal(t, time.Date(2024, 4, 26, 0, 30, 0, 0, time.UTC), n1.TMaxAbsolute.UTC())
	assert.False(t, n1.ExportedAt.IsZero())
}
