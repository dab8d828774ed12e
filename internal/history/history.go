// Package history is the append-only audit store collaborator. Ingestion
// never depends on it being available: a failed write is a logged warning,
// not a pipeline error.
package history

import (
	"database/sql"
	"fmt"
	"time"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

// DefaultMaxRows is the retained-record cap enforced by Trim.
const DefaultMaxRows = 50000

// schema is applied on startup. Trim keys on id, the reads key on time
// and mac.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS detections (
		id BIGSERIAL PRIMARY KEY,
		time TIMESTAMPTZ NOT NULL,
		event_type TEXT NOT NULL,
		mac TEXT NOT NULL,
		dest_mac TEXT,
		ssid TEXT,
		rssi INTEGER,
		channel INTEGER,
		manufacturer TEXT,
		tier TEXT,
		unit TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS detections_time_idx ON detections (time DESC)`,
	`CREATE INDEX IF NOT EXISTS detections_mac_idx ON detections (mac)`,
}

type Client struct {
	db *sql.DB
}

// New creates a history store client and ensures the detections table
// exists.
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	c := &Client{db: db}
	if err := c.EnsureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure detections schema: %w", err)
	}
	return c, nil
}

// EnsureSchema creates the detections table and its indexes if missing.
func (c *Client) EnsureSchema() error {
	for _, stmt := range schema {
		if _, err := c.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// NewWithDB wraps an existing database handle (useful for testing).
func NewWithDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// AppendDetection stores one flattened detection record.
func (c *Client) AppendDetection(rec *types.DetectionRecord) error {
	query := `
		INSERT INTO detections (
			time, event_type, mac, dest_mac, ssid, rssi,
			channel, manufacturer, tier, unit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := c.db.Exec(query,
		rec.Timestamp, string(rec.Type), rec.MAC, rec.DestMAC, rec.SSID,
		rec.RSSI, rec.Channel, rec.Manufacturer, rec.Tier.String(), rec.Unit,
	)
	return err
}

// DetectionsByMAC retrieves the most recent stored detections for one
// address, newest first.
func (c *Client) DetectionsByMAC(mac string, limit int) ([]*types.DetectionRecord, error) {
	query := `
		SELECT time, event_type, mac, dest_mac, ssid, rssi,
			channel, manufacturer, tier, unit
		FROM detections
		WHERE mac = $1
		ORDER BY time DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, types.NormalizeMAC(mac), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDetections(rows)
}

// DetectionsBetween retrieves stored detections inside a time range,
// newest first.
func (c *Client) DetectionsBetween(start, end time.Time, limit int) ([]*types.DetectionRecord, error) {
	query := `
		SELECT time, event_type, mac, dest_mac, ssid, rssi,
			channel, manufacturer, tier, unit
		FROM detections
		WHERE time BETWEEN $1 AND $2
		ORDER BY time DESC
		LIMIT $3
	`
	rows, err := c.db.Query(query, start, end, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDetections(rows)
}

func scanDetections(rows *sql.Rows) ([]*types.DetectionRecord, error) {
	var records []*types.DetectionRecord
	for rows.Next() {
		var rec types.DetectionRecord
		var eventType, tier string
		if err := rows.Scan(
			&rec.Timestamp, &eventType, &rec.MAC, &rec.DestMAC, &rec.SSID,
			&rec.RSSI, &rec.Channel, &rec.Manufacturer, &tier, &rec.Unit,
		); err != nil {
			return nil, err
		}
		rec.Type = types.EventType(eventType)
		if tier == types.TierStream.String() {
			rec.Tier = types.TierStream
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Trim deletes everything beyond the newest maxRows records. Called
// occasionally from the maintenance sweep, not on every pass.
func (c *Client) Trim(maxRows int) (int64, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	query := `
		DELETE FROM detections
		WHERE id NOT IN (
			SELECT id FROM detections ORDER BY time DESC LIMIT $1
		)
	`
	result, err := c.db.Exec(query, maxRows)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the number of retained detection records.
func (c *Client) Count() (int, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM detections`).Scan(&n)
	return n, err
}
