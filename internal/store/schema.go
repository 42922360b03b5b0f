package store

import (
	"database/sql"
	"fmt"
)

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS files (
    path       TEXT PRIMARY KEY,
    hash       TEXT NOT NULL,
    language   TEXT NOT NULL DEFAULT '',
    indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    size_bytes INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS blocks (
    id           INTEGER PRIMARY KEY,
    file_path    TEXT NOT NULL,
    identifier   TEXT NOT NULL DEFAULT '',
    type         TEXT NOT NULL DEFAULT '',
    start_line   INTEGER NOT NULL,
    end_line     INTEGER NOT NULL,
    content      TEXT NOT NULL,
    file_hash    TEXT NOT NULL,
    segment_hash TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS blocks_file_path ON blocks(file_path);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const vecDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_blocks USING vec0(
    block_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);
`

// Init creates the schema. dim is the embedding vector length; a vec0 table
// is sized at creation and cannot be altered, so a dimension change requires
// clearing the index.
func Init(db *sql.DB, dim int) error {
	if _, err := db.Exec(ddl); err != nil {
		return err
	}
	_, err := db.Exec(fmt.Sprintf(vecDDL, dim))
	return err
}
