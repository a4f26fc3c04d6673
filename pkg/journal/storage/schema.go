package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the journal tables. Timestamps are stored as Unix
// nanoseconds so ordering and range filters behave the same under both
// drivers.
const Schema = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    request_id TEXT NOT NULL DEFAULT '',
    limiter TEXT NOT NULL,
    strategy TEXT NOT NULL,
    identity TEXT NOT NULL,
    allowed INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);
CREATE INDEX IF NOT EXISTS idx_decisions_limiter ON decisions(limiter, timestamp);
CREATE INDEX IF NOT EXISTS idx_decisions_identity ON decisions(identity);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion returns the newest applied schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
