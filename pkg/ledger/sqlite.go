package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite ledger backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/ledger.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a SQLite ledger backend. It initializes the schema
// and enables WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "ledger.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite ledger initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the schema and pragmas.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists a ledger record.
func (s *SQLiteStore) Store(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO usage_ledger (
			id, recorded_at, request_id, endpoint, engine, stage,
			provider, model,
			input_tokens, output_tokens, cached_tokens, reasoning_tokens,
			cost_usd, duration_ms, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.Time, record.RequestID, record.Endpoint, record.Engine, record.Stage,
		record.Provider, record.Model,
		record.Usage.InputTokens, record.Usage.OutputTokens,
		record.Usage.CachedTokens, record.Usage.ReasoningTokens,
		record.CostUSD, record.DurationMS, record.Status,
	)
	if err != nil {
		return NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves matching records, newest first.
func (s *SQLiteStore) Query(ctx context.Context, query *Query) ([]*Record, error) {
	if query == nil {
		query = &Query{}
	}
	whereClause, args := buildWhereClause(query)

	sqlQuery := `
		SELECT id, recorded_at, request_id, endpoint, engine, stage,
		       provider, model,
		       input_tokens, output_tokens, cached_tokens, reasoning_tokens,
		       cost_usd, duration_ms, status
		FROM usage_ledger`
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " ORDER BY recorded_at DESC"

	limit := 100
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of records matching the filters.
func (s *SQLiteStore) Count(ctx context.Context, query *Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM usage_ledger"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Totals aggregates matching records by provider and model.
func (s *SQLiteStore) Totals(ctx context.Context, query *Query) ([]*TotalsRow, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := `
		SELECT provider, model, COUNT(*),
		       SUM(input_tokens), SUM(output_tokens),
		       SUM(cached_tokens), SUM(reasoning_tokens),
		       SUM(cost_usd)
		FROM usage_ledger`
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " GROUP BY provider, model ORDER BY provider, model"

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "totals", err)
	}
	defer rows.Close()

	totals := []*TotalsRow{}
	for rows.Next() {
		row := &TotalsRow{}
		err := rows.Scan(
			&row.Provider, &row.Model, &row.Calls,
			&row.Usage.InputTokens, &row.Usage.OutputTokens,
			&row.Usage.CachedTokens, &row.Usage.ReasoningTokens,
			&row.CostUSD,
		)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		totals = append(totals, row)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "totals", err)
	}
	return totals, nil
}

// Delete removes matching records and returns how many were removed.
func (s *SQLiteStore) Delete(ctx context.Context, query *Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "DELETE FROM usage_ledger"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite ledger closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause from query filters. Returns the
// clause without the WHERE keyword, plus the bound arguments.
func buildWhereClause(query *Query) (string, []interface{}) {
	if query == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if query.StartTime != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, *query.StartTime)
	}
	if query.EndTime != nil {
		conditions = append(conditions, "recorded_at <= ?")
		args = append(args, *query.EndTime)
	}
	if query.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, query.RequestID)
	}
	if query.Endpoint != "" {
		conditions = append(conditions, "endpoint = ?")
		args = append(args, query.Endpoint)
	}
	if query.Engine != "" {
		conditions = append(conditions, "engine = ?")
		args = append(args, query.Engine)
	}
	if query.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, query.Provider)
	}
	if query.Model != "" {
		conditions = append(conditions, "model = ?")
		args = append(args, query.Model)
	}
	if query.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, query.Status)
	}

	return strings.Join(conditions, " AND "), args
}

// scanRecord scans a database row into a Record.
func scanRecord(rows *sql.Rows) (*Record, error) {
	var record Record
	err := rows.Scan(
		&record.ID, &record.Time, &record.RequestID, &record.Endpoint, &record.Engine, &record.Stage,
		&record.Provider, &record.Model,
		&record.Usage.InputTokens, &record.Usage.OutputTokens,
		&record.Usage.CachedTokens, &record.Usage.ReasoningTokens,
		&record.CostUSD, &record.DurationMS, &record.Status,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
