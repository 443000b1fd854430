// Package duck provides the DuckDB-backed store: a readable, queryable
// backend for records that the metric pipeline can retrieve from.
package duck

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/store"
)

// Store persists records in a DuckDB database. It supports both write and
// filtered read, which makes it the usual Input backend for metrics.
type Store struct {
	name         string
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	queryTimeout time.Duration
}

// Config holds tunable store parameters.
type Config struct {
	QueryTimeout time.Duration
}

// New opens or creates a DuckDB database at dbPath; an empty path means an
// in-memory database.
func New(name, dbPath string, conf ...Config) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("duck: mkdir: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duck: open: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	qt := 30 * time.Second
	if len(conf) > 0 && conf[0].QueryTimeout > 0 {
		qt = conf[0].QueryTimeout
	}

	return &Store{name: name, db: db, dbPath: dbPath, queryTimeout: qt}, nil
}

// FromOptions builds a duck store from declarative options: "path" (empty
// for in-memory), "query_timeout_seconds".
func FromOptions(name string, opts store.Options) (store.Store, error) {
	path, _ := opts.String("path")
	conf := Config{}
	if s, ok := opts.Int("query_timeout_seconds"); ok {
		conf.QueryTimeout = time.Duration(s) * time.Second
	}
	return New(name, path, conf)
}

// Register installs the "duckdb" factory into a store registry.
func Register(r *store.Registry) {
	r.Register("duckdb", FromOptions)
}

func (s *Store) Name() string { return s.name }

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.queryTimeout)
}

// Write inserts one record.
func (s *Store) Write(r *record.Record) error {
	return s.WriteBatch([]*record.Record{r})
}

// WriteBatch inserts records inside one transaction with a prepared
// statement. Suppressed records are skipped.
func (s *Store) WriteBatch(recs []*record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("duck: begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (ts, hostname, level, logger, topic, value, message, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("duck: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if r.Suppressed() {
			continue
		}
		valueJSON, err := marshalOrNull(r.Value)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("duck: marshal value: %w", err)
		}
		tagsJSON, err := marshalOrNull(r.Tags)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("duck: marshal tags: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.Timestamp, r.Hostname, r.Level.String(), r.Logger, r.Topic,
			valueJSON, r.Message, tagsJSON); err != nil {
			tx.Rollback()
			return fmt.Errorf("duck: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("duck: commit: %w", err)
	}
	return nil
}

// Read returns the records matching the filter, ordered by timestamp. Tag
// filters are applied after the SQL scan since tags persist as JSON.
func (s *Store) Read(f record.Filter) ([]*record.Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT ts, hostname, level, logger, topic, value, message, tags FROM records WHERE 1=1"
	var args []any
	if f.Level != level.Unset {
		query += " AND level = ?"
		args = append(args, f.Level.String())
	}
	if f.Logger != "" {
		query += " AND logger = ?"
		args = append(args, f.Logger)
	}
	if f.Topic != "" {
		query += " AND topic = ?"
		args = append(args, f.Topic)
	}
	if !f.Start.IsZero() {
		query += " AND ts >= ?"
		args = append(args, f.Start)
	}
	if !f.Finish.IsZero() {
		query += " AND ts <= ?"
		args = append(args, f.Finish)
	}
	query += " ORDER BY ts"

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("duck: query: %w", err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		// Tag filtering happens here; every other filter field already
		// narrowed the SQL scan.
		if len(f.Tags) == 0 || (record.Filter{Tags: f.Tags}).Match(r) {
			out = append(out, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duck: rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("duck: count: %w", err)
	}
	return n, nil
}

// DeleteBefore removes records older than cutoff and returns how many went.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("duck: delete: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalOrNull(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanRecord(rows *sql.Rows) (*record.Record, error) {
	var (
		r        record.Record
		lvl      string
		hostname sql.NullString
		topic    sql.NullString
		value    sql.NullString
		tags     sql.NullString
	)
	if err := rows.Scan(&r.Timestamp, &hostname, &lvl, &r.Logger, &topic, &value, &r.Message, &tags); err != nil {
		return nil, fmt.Errorf("duck: scan: %w", err)
	}
	r.Hostname = hostname.String
	r.Topic = topic.String
	if l, err := level.Parse(lvl); err == nil {
		r.Level = l
	} else {
		log.Printf("duck: stored record has unknown level %q", lvl)
	}
	if value.Valid {
		var v any
		if err := json.Unmarshal([]byte(value.String), &v); err == nil {
			r.Value = v
		}
	}
	if tags.Valid {
		var m map[string]string
		if err := json.Unmarshal([]byte(tags.String), &m); err == nil {
			r.Tags = m
		}
	}
	return &r, nil
}
