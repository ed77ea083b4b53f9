package ledger

// SchemaVersion is the current ledger database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the ledger schema.
const Schema = `
-- Usage ledger table: one row per provider call
CREATE TABLE IF NOT EXISTS usage_ledger (
    id TEXT PRIMARY KEY,
    recorded_at TIMESTAMP NOT NULL,
    request_id TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    engine TEXT,
    stage TEXT,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,

    -- Token counts (cached/reasoning are subsets of input/output)
    input_tokens INTEGER NOT NULL,
    output_tokens INTEGER NOT NULL,
    cached_tokens INTEGER NOT NULL,
    reasoning_tokens INTEGER NOT NULL,

    cost_usd REAL NOT NULL,
    duration_ms INTEGER NOT NULL,
    status TEXT NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for the usage CLI's time/provider/model queries
CREATE INDEX IF NOT EXISTS idx_ledger_recorded_at ON usage_ledger(recorded_at);
CREATE INDEX IF NOT EXISTS idx_ledger_provider ON usage_ledger(provider);
CREATE INDEX IF NOT EXISTS idx_ledger_model ON usage_ledger(model);
CREATE INDEX IF NOT EXISTS idx_ledger_request_id ON usage_ledger(request_id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
