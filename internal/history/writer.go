// Package history persists probe samples to ClickHouse and serves range
// queries over them, so operators can correlate link flaps with the metrics
// that caused them.
package history

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"wansteer/internal/config"
	"wansteer/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS link_metrics (
    Timestamp     DateTime,
    Interface     String,
    LatencyMs     Float64,
    JitterMs      Float64,
    PacketLoss    Float64,
    BandwidthMbps Float64,
    HealthScore   Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Interface, Timestamp);
`

// sample is one buffered row.
type sample struct {
	interfaceName string
	metrics       model.LinkMetrics
}

// Writer batches probe samples into ClickHouse. Samples accumulate in memory
// and flush when the batch fills or the flush interval elapses, whichever
// comes first.
type Writer struct {
	conn          driver.Conn
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	pending []sample

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWriter connects to ClickHouse and ensures the table exists.
func NewWriter(cfg config.RecorderConfig) (*Writer, error) {
	conn, err := connect(cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &Writer{
		conn:          conn,
		batchSize:     cfg.BatchSize,
		flushInterval: config.Duration(cfg.FlushInterval, 10*time.Second),
		done:          make(chan struct{}),
	}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Start launches the periodic flusher.
func (w *Writer) Start() {
	w.wg.Add(1)
	go w.runFlusher()
}

// Stop flushes the remaining buffer and shuts the flusher down.
func (w *Writer) Stop() {
	close(w.done)
	w.wg.Wait()
	if err := w.Flush(); err != nil {
		log.Printf("Final flush failed: %v", err)
	}
	w.conn.Close()
	log.Println("History writer stopped.")
}

// Record buffers one sample, flushing if the batch is full. Implements the
// transport sample handler shape.
func (w *Writer) Record(interfaceName string, metrics model.LinkMetrics) {
	w.mu.Lock()
	w.pending = append(w.pending, sample{interfaceName: interfaceName, metrics: metrics})
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if full {
		if err := w.Flush(); err != nil {
			log.Printf("Flush failed: %v", err)
		}
	}
}

func (w *Writer) runFlusher() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Flush(); err != nil {
				log.Printf("Flush failed: %v", err)
			}
		case <-w.done:
			return
		}
	}
}

// Flush writes the buffered samples as one batch insert.
func (w *Writer) Flush() error {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO link_metrics")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, s := range pending {
		if err := batch.Append(
			s.metrics.SampledAt,
			s.interfaceName,
			s.metrics.LatencyMs,
			s.metrics.JitterMs,
			s.metrics.PacketLoss,
			s.metrics.BandwidthMbps,
			s.metrics.HealthScore(),
		); err != nil {
			return fmt.Errorf("failed to append sample to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Printf("Flushed %d samples to ClickHouse.", len(pending))
	return nil
}
