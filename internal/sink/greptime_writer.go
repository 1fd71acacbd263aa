package sink

import (
	"context"
	"log"
	"net"
	"strconv"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	ingesterContext "github.com/GreptimeTeam/greptimedb-ingester-go/context"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// GreptimeDBWriter archives location samples to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client *greptime.Client
	db     string
	table  string
}

// NewGreptimeDBWriter creates a GreptimeDB writer and auto-creates the table if needed.
func NewGreptimeDBWriter(endpoint, database, tableName string) (*GreptimeDBWriter, error) {
	if tableName == "" {
		tableName = "location_samples"
	}
	cfg := greptime.NewConfig(endpoint).WithDatabase(database)
	if host, portStr, err := net.SplitHostPort(endpoint); err == nil {
		cfg.Host = host
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.WithPort(port)
		}
	}
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	// GreptimeDB auto-creates the table on first write; the schema
	// (tags, fields, time index) is declared per batch in WriteBatch.

	return &GreptimeDBWriter{
		client: client,
		db:     database,
		table:  tableName,
	}, nil
}

// Write inserts a single sample record.
func (w *GreptimeDBWriter) Write(r Record) error {
	return w.WriteBatch([]Record{r})
}

// WriteBatch inserts multiple sample records.
func (w *GreptimeDBWriter) WriteBatch(rows []Record) error {
	if len(rows) == 0 {
		return nil
	}

	ctx := ingesterContext.New(context.Background())

	tbl, err := table.New(w.table)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("device_id", types.STRING)
	tbl.AddTagColumn("session_id", types.STRING)
	tbl.AddFieldColumn("lat", types.FLOAT64)
	tbl.AddFieldColumn("lng", types.FLOAT64)
	tbl.AddFieldColumn("accuracy_m", types.FLOAT64)
	tbl.AddFieldColumn("tier", types.STRING)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		if err := tbl.AddRow(r.DeviceID, r.SessionID, r.Lat, r.Lng, r.AccuracyM, r.Tier, r.CapturedAt); err != nil {
			return err
		}
	}

	if _, err := w.client.Write(ctx, tbl); err != nil {
		log.Printf("[GreptimeDBWriter] Write failed: %v", err)
		return err
	}
	return nil
}
