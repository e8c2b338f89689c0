// Package sqlite implements object.ObjectStorage backed by SQLite, or by a
// remote libSQL (Turso) database when the "libsql" driver is chosen.
package sqlite

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"filegate/pkg/object"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config defines how the SQLite storage should be initialized.
type Config struct {
	// Source is the DSN, e.g. file:objects.db?cache=shared or libsql://db.turso.io?authToken=...
	Source string
	// Driver name registered with database/sql: "sqlite" (default) or "libsql".
	Driver string
	// Table plays the role of the bucket. Defaults to "objects".
	Table string
	// DB lets callers supply an existing *sql.DB connection.
	DB *sql.DB
}

// Storage satisfies object.ObjectStorage using a single table.
type Storage struct {
	db     *sql.DB
	table  string
	ownsDB bool
}

// Init configures the storage and ensures the backing table exists.
func (s *Storage) Init(ctx context.Context, param any) error {
	cfg, ok := param.(Config)
	if !ok {
		if p, ok := param.(*Config); ok && p != nil {
			cfg = *p
		} else {
			return fmt.Errorf("sqlite: unexpected config type %T", param)
		}
	}

	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.Table == "" {
		cfg.Table = "objects"
	}
	if cfg.Source == "" && cfg.DB == nil {
		return errors.New("sqlite: Source is required")
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return fmt.Errorf("sqlite: invalid table name %q", cfg.Table)
	}
	s.table = cfg.Table

	if cfg.DB != nil {
		s.db = cfg.DB
	} else {
		db, err := sql.Open(cfg.Driver, cfg.Source)
		if err != nil {
			return fmt.Errorf("sqlite: open database: %w", err)
		}
		s.db = db
		s.ownsDB = true
	}

	createStmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		size INTEGER NOT NULL,
		etag TEXT,
		content_type TEXT,
		last_modified TEXT NOT NULL
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("sqlite: create table: %w", err)
	}
	return nil
}

// Close releases the DB connection when owned by the storage.
func (s *Storage) Close(_ context.Context) error {
	if s.db != nil && s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// Put upserts the object; the row is written in one statement so a failed
// read of r leaves the previous content intact.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (object.Object, error) {
	if err := s.ensureDB(); err != nil {
		return object.Object{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return object.Object{}, fmt.Errorf("sqlite: read content: %w", err)
	}

	now := time.Now().UTC()
	obj := object.Object{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hashETag(data),
		ContentType:  contentType,
		LastModified: now,
	}

	query := fmt.Sprintf(`INSERT INTO %s (key, data, size, etag, content_type, last_modified) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data=excluded.data, size=excluded.size, etag=excluded.etag,
		content_type=excluded.content_type, last_modified=excluded.last_modified`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		key,
		data,
		obj.Size,
		obj.ETag,
		nullIfEmpty(contentType),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return object.Object{}, fmt.Errorf("sqlite: put object: %w", err)
	}
	return obj, nil
}

// Get retrieves the object data and metadata.
func (s *Storage) Get(ctx context.Context, key string) (object.Object, io.ReadCloser, error) {
	if err := s.ensureDB(); err != nil {
		return object.Object{}, nil, err
	}

	query := fmt.Sprintf(`SELECT size, etag, content_type, last_modified, data FROM %s WHERE key = ?`, s.table)
	var (
		row  objectRow
		data []byte
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&row.size, &row.etag, &row.contentType, &row.lastModified, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return object.Object{}, nil, object.ErrNotFound
	}
	if err != nil {
		return object.Object{}, nil, fmt.Errorf("sqlite: get object: %w", err)
	}

	obj, err := row.toObject(key)
	if err != nil {
		return object.Object{}, nil, err
	}
	return obj, io.NopCloser(bytes.NewReader(data)), nil
}

// Stat fetches metadata without the blob.
func (s *Storage) Stat(ctx context.Context, key string) (object.Object, error) {
	if err := s.ensureDB(); err != nil {
		return object.Object{}, err
	}

	query := fmt.Sprintf(`SELECT size, etag, content_type, last_modified FROM %s WHERE key = ?`, s.table)
	var row objectRow
	err := s.db.QueryRowContext(ctx, query, key).Scan(&row.size, &row.etag, &row.contentType, &row.lastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return object.Object{}, object.ErrNotFound
	}
	if err != nil {
		return object.Object{}, fmt.Errorf("sqlite: stat object: %w", err)
	}
	return row.toObject(key)
}

// Delete removes an object by key. A missing key reports ErrNotFound.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.ensureDB(); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table)
	res, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("sqlite: delete object: %w", err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return object.ErrNotFound
	}
	return err
}

func (s *Storage) ensureDB() error {
	if s.db == nil {
		return errors.New("sqlite: storage not initialized")
	}
	return nil
}

type objectRow struct {
	size         int64
	etag         sql.NullString
	contentType  sql.NullString
	lastModified string
}

func (r objectRow) toObject(key string) (object.Object, error) {
	t, err := time.Parse(time.RFC3339Nano, r.lastModified)
	if err != nil {
		return object.Object{}, fmt.Errorf("sqlite: parse last_modified: %w", err)
	}
	return object.Object{
		Key:          key,
		Size:         r.size,
		ETag:         r.etag.String,
		ContentType:  r.contentType.String,
		LastModified: t,
	}, nil
}

func hashETag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure Storage implements ObjectStorage interface.
var _ object.ObjectStorage = (*Storage)(nil)
