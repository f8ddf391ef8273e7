package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLConfig selects a database/sql driver ("mysql" or "postgres") and a
// table to store one JSON blob per document row, the relational
// analogue of the teacher's file/S3 persistence backends.
type SQLConfig struct {
	Driver string // "mysql" or "postgres"
	DSN    string
	Table  string // columns: id TEXT PRIMARY KEY, doc TEXT/JSONB
}

type SQLFactory struct {
	db  *sql.DB
	cfg SQLConfig
}

func OpenSQLFactory(cfg SQLConfig) (*SQLFactory, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", cfg.Driver, err)
	}
	return &SQLFactory{db: db, cfg: cfg}, nil
}

// Open ignores collection for a single-table config; callers needing
// multiple collections construct one SQLFactory per table.
func (f *SQLFactory) Open(collection string) (Driver, error) {
	return &SQLDriver{db: f.db, table: f.cfg.Table, postgres: f.cfg.Driver == "postgres"}, nil
}

// SQLDriver stores each document as a JSON-encoded text column keyed by
// id, matching storage/persistence's "blob per logical unit" shape but
// addressed by primary key instead of shard+column name.
type SQLDriver struct {
	db       *sql.DB
	table    string
	postgres bool
}

func (d *SQLDriver) placeholder(n int) string {
	if d.postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d *SQLDriver) Query(ctx context.Context, id string, projection []string) (Document, bool, error) {
	q := fmt.Sprintf("SELECT doc FROM %s WHERE id = %s", d.table, d.placeholder(1))
	var raw string
	err := d.db.QueryRowContext(ctx, q, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("docstore: sql query %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, fmt.Errorf("docstore: decode %s: %w", id, err)
	}
	return projected(doc, projection), true, nil
}

func (d *SQLDriver) Insert(ctx context.Context, id string, doc Document) error {
	if _, ok, err := d.Query(ctx, id, nil); err != nil {
		return err
	} else if ok {
		return ErrDuplicateKey
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (%s, %s)", d.table, d.placeholder(1), d.placeholder(2))
	if _, err := d.db.ExecContext(ctx, q, id, string(data)); err != nil {
		return fmt.Errorf("docstore: sql insert %s: %w", id, err)
	}
	return nil
}

func (d *SQLDriver) Upsert(ctx context.Context, id string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var q string
	if d.postgres {
		q = fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc", d.table)
	} else {
		q = fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?) ON DUPLICATE KEY UPDATE doc = VALUES(doc)", d.table)
	}
	if _, err := d.db.ExecContext(ctx, q, id, string(data)); err != nil {
		return fmt.Errorf("docstore: sql upsert %s: %w", id, err)
	}
	return nil
}
