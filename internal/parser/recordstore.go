package parser

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// RecordStore archives the tokenized event records of one analysis in a
// temporary DuckDB file, so the raw join/leave timeline can be queried
// by time range without re-reading the uploaded log. The file lives and
// dies with the analysis.
type RecordStore struct {
	db          *sql.DB
	dbPath      string
	recordCount int
	batchSize   int
	batch       []models.LogRecord
	minTs       int64
	maxTs       int64
	lastError   error
}

// NewRecordStore creates a record store under tempDir for one analysis.
func NewRecordStore(tempDir, analysisID string) (*RecordStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("analysis_%s.duckdb", analysisID))

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE records (
			id          INTEGER PRIMARY KEY,
			ts          BIGINT NOT NULL,
			kind        VARCHAR NOT NULL,
			instance_id VARCHAR,
			room_name   VARCHAR,
			username    VARCHAR,
			user_id     VARCHAR,
			line        INTEGER
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("creating records table: %w", err)
	}

	return &RecordStore{
		db:        db,
		dbPath:    dbPath,
		batchSize: 10000,
		batch:     make([]models.LogRecord, 0, 10000),
	}, nil
}

// Add appends a record to the store. Records are batched; a flush error
// is remembered and surfaced by Finalize.
func (rs *RecordStore) Add(rec models.LogRecord) {
	rs.batch = append(rs.batch, rec)

	tsMs := rec.Timestamp.UnixMilli()
	if rs.recordCount == 0 || tsMs < rs.minTs {
		rs.minTs = tsMs
	}
	if tsMs > rs.maxTs {
		rs.maxTs = tsMs
	}
	rs.recordCount++

	if len(rs.batch) >= rs.batchSize {
		if err := rs.flushBatch(); err != nil {
			rs.lastError = err
			fmt.Printf("[RecordStore] flush error: %v\n", err)
		}
	}
}

// flushBatch writes the current batch via the native Appender API.
func (rs *RecordStore) flushBatch() error {
	if len(rs.batch) == 0 {
		return nil
	}

	conn, err := rs.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", driverConn)
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "records")
		if err != nil {
			return fmt.Errorf("creating appender: %w", err)
		}
		defer appender.Close()

		baseID := rs.recordCount - len(rs.batch)
		for i, rec := range rs.batch {
			err := appender.AppendRow(
				int32(baseID+i),
				rec.Timestamp.UnixMilli(),
				string(rec.Kind),
				rec.InstanceID,
				rec.RoomName,
				rec.Username,
				rec.UserID,
				int32(rec.Line),
			)
			if err != nil {
				return fmt.Errorf("appending record %d: %w", baseID+i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return err
	}

	rs.batch = rs.batch[:0]
	return nil
}

// Finalize flushes the remaining batch and creates the time index.
// Must be called once after the last Add and before any query.
func (rs *RecordStore) Finalize() error {
	if rs.lastError != nil {
		return rs.lastError
	}
	if err := rs.flushBatch(); err != nil {
		return err
	}
	if _, err := rs.db.Exec("CREATE INDEX idx_records_ts ON records(ts)"); err != nil {
		return fmt.Errorf("creating time index: %w", err)
	}
	return nil
}

// Len returns the number of stored records.
func (rs *RecordStore) Len() int {
	return rs.recordCount
}

// TimeRange returns the span of stored record timestamps, or ok=false
// when the store is empty.
func (rs *RecordStore) TimeRange() (start, end time.Time, ok bool) {
	if rs.recordCount == 0 {
		return time.Time{}, time.Time{}, false
	}
	return time.UnixMilli(rs.minTs).UTC(), time.UnixMilli(rs.maxTs).UTC(), true
}

// QueryRange returns the records whose timestamps fall in [from, to),
// in file order.
func (rs *RecordStore) QueryRange(ctx context.Context, from, to time.Time) ([]models.LogRecord, error) {
	rows, err := rs.db.QueryContext(ctx, `
		SELECT ts, kind, instance_id, room_name, username, user_id, line
		FROM records
		WHERE ts >= ? AND ts < ?
		ORDER BY id
	`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []models.LogRecord
	for rows.Next() {
		var (
			tsMs int64
			kind string
			line int32
			rec  models.LogRecord
		)
		if err := rows.Scan(&tsMs, &kind, &rec.InstanceID, &rec.RoomName, &rec.Username, &rec.UserID, &line); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Timestamp = time.UnixMilli(tsMs).UTC()
		rec.Kind = models.RecordKind(kind)
		rec.Line = int(line)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database and removes the backing file.
func (rs *RecordStore) Close() error {
	err := rs.db.Close()
	if rmErr := os.Remove(rs.dbPath); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
