// Package cache is the concrete CacheHandle spec.md §6 names as an
// external collaborator: an embedded SQLite store for chunk and header
// bytes, used by source.CompositeSource's cache-first policy. Append
// only — no eviction policy, per spec.md §9's open question on cache
// sizing, which this repository leaves to external truncation.
package cache

import (
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"
)

// CacheHandle is the interface source.CompositeSource (via
// source.CacheStore) and the header path consume.
type CacheHandle interface {
	HasChunk(fileID []byte, index int) (bool, error)
	ReadChunk(fileID []byte, index int) ([]byte, error)
	WriteChunk(fileID []byte, index int, data []byte) error
	GetAllHeaders(fileID []byte) (map[byte][]byte, error)
	WriteHeader(fileID []byte, id byte, data []byte) error
	Close() error
}

// SQLiteHandle is a CacheHandle backed by modernc.org/sqlite, the
// pure-Go SQLite driver used elsewhere in the retrieved example pack
// for embedded persistence.
type SQLiteHandle struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite cache database at path.
func Open(path string) (*SQLiteHandle, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	file_id TEXT NOT NULL,
	idx     INTEGER NOT NULL,
	data    BLOB NOT NULL,
	PRIMARY KEY (file_id, idx)
);
CREATE TABLE IF NOT EXISTS headers (
	file_id TEXT NOT NULL,
	id      INTEGER NOT NULL,
	data    BLOB NOT NULL,
	PRIMARY KEY (file_id, id)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migrate schema: %w", err)
	}

	return &SQLiteHandle{db: db}, nil
}

func key(fileID []byte) string {
	return hex.EncodeToString(fileID)
}

func (h *SQLiteHandle) HasChunk(fileID []byte, index int) (bool, error) {
	var count int
	err := h.db.QueryRow(`SELECT COUNT(1) FROM chunks WHERE file_id = ? AND idx = ?`, key(fileID), index).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("cache: has_chunk: %w", err)
	}
	return count > 0, nil
}

func (h *SQLiteHandle) ReadChunk(fileID []byte, index int) ([]byte, error) {
	var data []byte
	err := h.db.QueryRow(`SELECT data FROM chunks WHERE file_id = ? AND idx = ?`, key(fileID), index).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("cache: read_chunk: %w", err)
	}
	return data, nil
}

func (h *SQLiteHandle) WriteChunk(fileID []byte, index int, data []byte) error {
	_, err := h.db.Exec(`INSERT OR REPLACE INTO chunks (file_id, idx, data) VALUES (?, ?, ?)`, key(fileID), index, data)
	if err != nil {
		return fmt.Errorf("cache: write_chunk: %w", err)
	}
	return nil
}

func (h *SQLiteHandle) GetAllHeaders(fileID []byte) (map[byte][]byte, error) {
	rows, err := h.db.Query(`SELECT id, data FROM headers WHERE file_id = ?`, key(fileID))
	if err != nil {
		return nil, fmt.Errorf("cache: get_all_headers: %w", err)
	}
	defer rows.Close()

	out := make(map[byte][]byte)
	for rows.Next() {
		var id int
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("cache: scan header row: %w", err)
		}
		out[byte(id)] = data
	}
	return out, rows.Err()
}

func (h *SQLiteHandle) WriteHeader(fileID []byte, id byte, data []byte) error {
	_, err := h.db.Exec(`INSERT OR REPLACE INTO headers (file_id, id, data) VALUES (?, ?, ?)`, key(fileID), id, data)
	if err != nil {
		return fmt.Errorf("cache: write_header: %w", err)
	}
	return nil
}

func (h *SQLiteHandle) Close() error {
	return h.db.Close()
}
