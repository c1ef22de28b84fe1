package history

import (
	"context"
	"fmt"
	"time"

	"wansteer/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Point is one historical sample row.
type Point struct {
	Timestamp     time.Time `json:"timestamp"`
	Interface     string    `json:"interface"`
	LatencyMs     float64   `json:"latency_ms"`
	JitterMs      float64   `json:"jitter_ms"`
	PacketLoss    float64   `json:"packet_loss"`
	BandwidthMbps float64   `json:"bandwidth_mbps"`
	HealthScore   float64   `json:"health_score"`
}

// Querier reads recorded samples back out of ClickHouse.
type Querier interface {
	LinkHistory(ctx context.Context, interfaceName string, from, to time.Time) ([]Point, error)
}

type clickhouseQuerier struct {
	conn driver.Conn
}

// NewQuerier creates a querier against the recorder's ClickHouse database.
func NewQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// LinkHistory returns the samples for one interface over [from, to],
// in ascending time order.
func (q *clickhouseQuerier) LinkHistory(ctx context.Context, interfaceName string, from, to time.Time) ([]Point, error) {
	const query = `
SELECT Timestamp, Interface, LatencyMs, JitterMs, PacketLoss, BandwidthMbps, HealthScore
FROM link_metrics
WHERE Interface = ? AND Timestamp BETWEEN ? AND ?
ORDER BY Timestamp`

	rows, err := q.conn.Query(ctx, query, interfaceName, from, to)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Timestamp, &p.Interface, &p.LatencyMs, &p.JitterMs,
			&p.PacketLoss, &p.BandwidthMbps, &p.HealthScore); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
