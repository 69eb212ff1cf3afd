package store

// Schema contains the complete DDL for the download history table.
const Schema = `
-- Download history: one row per download handed to the engine.
-- status NULL means in-progress; otherwise completed/paused/failed.
CREATE TABLE IF NOT EXISTS downloads (
    id             TEXT PRIMARY KEY,
    filename       TEXT NOT NULL,
    status         TEXT CHECK (status IN ('completed', 'paused', 'failed')),
    size           INTEGER,
    bytes_received INTEGER NOT NULL DEFAULT 0,
    url            TEXT NOT NULL,
    etag           TEXT,
    content_type   TEXT,
    last_modified  TEXT,
    destination    TEXT NOT NULL,
    accept_ranges  INTEGER NOT NULL DEFAULT 0,
    updated_at     INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);
CREATE INDEX IF NOT EXISTS idx_downloads_updated ON downloads(updated_at DESC);
`
