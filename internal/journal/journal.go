// Package journal persists stored representations by content address, so
// a process restart can rehydrate its object store.
//
// The journal is the store's Recorder: it observes the first insert of
// each distinct representation and writes (address, tag, canonical bytes)
// to SQLite. Restore replays those rows into a fresh store. Addresses are
// stable across restarts; slot identifiers are not — anything resolving
// restored data does so by address.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - pre-migration
// 1 - objects table with tag index
const currentSchemaVersion = 1

// Journal is a SQLite-backed object journal. Safe for concurrent use; the
// connection pool is limited to a single writer, SQLite's own constraint.
type Journal struct {
	db *sql.DB
}

// Open creates or opens an object journal at the given path.
// Applies required pragmas and migrations automatically; idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal. Safe to call more than once.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// RecordObject writes one representation, keyed by content address.
// Idempotent: re-recording an existing address is a silent no-op, the
// natural write discipline for immutable content-addressed rows.
//
// RecordObject implements store.Recorder, so a Journal can be attached to
// a store with store.WithRecorder.
func (j *Journal) RecordObject(addr ir.Address, tag ir.Tag, canonical []byte) error {
	_, err := j.db.Exec(`
		INSERT INTO objects (address, tag, content, created_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`,
		addr.Hex(),
		string(tag),
		canonical,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record object %s: %w", addr, err)
	}
	return nil
}

// Count returns the number of journaled objects.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count objects: %w", err)
	}
	return n, nil
}

// Restore replays every journaled object into st and returns the number
// of objects restored. Each row's address is recomputed from its content
// and must match the stored one; a mismatch means the journal is corrupt
// and aborts the restore.
//
// Restored objects get fresh slot identifiers. Callers resolve them by
// content address (store.LookupAddr), never by remembered slots.
func (j *Journal) Restore(ctx context.Context, st *store.Store) (int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT address, tag, content
		FROM objects
		ORDER BY created_at_ms, address
	`)
	if err != nil {
		return 0, fmt.Errorf("restore: query objects: %w", err)
	}
	defer rows.Close()

	restored := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return restored, fmt.Errorf("restore interrupted: %w", err)
		}

		var (
			hexAddr string
			tag     string
			content []byte
		)
		if err := rows.Scan(&hexAddr, &tag, &content); err != nil {
			return restored, fmt.Errorf("restore: scan object: %w", err)
		}

		recorded, err := ir.ParseAddress(hexAddr)
		if err != nil {
			return restored, fmt.Errorf("restore: journal row %q: %w", hexAddr, err)
		}
		recomputed, err := ir.AddressOfCanonical(ir.Tag(tag), content)
		if err != nil {
			return restored, fmt.Errorf("restore: journal row %s: %w", hexAddr, err)
		}
		if recomputed != recorded {
			return restored, fmt.Errorf("restore: journal row %s: content hashes to %s, journal is corrupt", hexAddr, recomputed)
		}

		v, err := ir.Decode(content)
		if err != nil {
			return restored, fmt.Errorf("restore: journal row %s: %w", hexAddr, err)
		}
		h, err := st.Insert(ir.Tag(tag), v)
		if err != nil {
			return restored, fmt.Errorf("restore: journal row %s: %w", hexAddr, err)
		}
		if h.Addr != recorded {
			return restored, fmt.Errorf("restore: journal row %s: reinserted as %s", hexAddr, h.Addr)
		}
		restored++
	}
	if err := rows.Err(); err != nil {
		return restored, fmt.Errorf("restore: iterate objects: %w", err)
	}

	slog.Info("journal restored", "objects", restored)
	return restored, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than this build supports (%d)", version, currentSchemaVersion)
	}
	// Versions below current get their migrations here as the schema
	// evolves; v1 is fully covered by schema.sql.
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
