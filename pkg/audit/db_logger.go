package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Dialect selects the DDL used for the audit table. Queries themselves use
// $n placeholders, which both PostgreSQL and SQLite accept.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// DBLogger implements audit logging to a SQL database
type DBLogger struct {
	db      *sql.DB
	dialect Dialect
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB, dialect Dialect) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported audit dialect %q", dialect)
	}

	logger := &DBLogger{
		db:      db,
		dialect: dialect,
	}

	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure validation_audit table: %w", err)
	}

	return logger, nil
}

// Open connects to dsn with the driver matching dialect. The driver itself
// must be registered by the caller's imports.
func Open(dialect Dialect, dsn string) (*DBLogger, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	logger, err := NewDBLogger(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS validation_audit (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		source VARCHAR(10) NOT NULL,
		request_id VARCHAR(100),
		method TEXT,
		message VARCHAR(255) NOT NULL,
		mode VARCHAR(20) NOT NULL,
		outcome VARCHAR(10) NOT NULL,
		violation_count INTEGER NOT NULL DEFAULT 0,
		violations JSONB,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_validation_audit_timestamp ON validation_audit(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_validation_audit_message ON validation_audit(message, outcome);
	`
	if l.dialect == DialectSQLite {
		query = strings.NewReplacer(
			"BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"TIMESTAMP WITH TIME ZONE", "TIMESTAMP",
			"JSONB", "TEXT",
		).Replace(query)
	}

	_, err := l.db.Exec(query)
	return err
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var violationsJSON []byte
	if len(event.Violations) > 0 {
		var err error
		violationsJSON, err = json.Marshal(event.Violations)
		if err != nil {
			return fmt.Errorf("failed to marshal violations: %w", err)
		}
	}

	query := `
		INSERT INTO validation_audit (
			timestamp, source, request_id, method,
			message, mode, outcome,
			violation_count, violations, error_message
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10
		) RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.Source), event.RequestID, event.Method,
		event.Message, event.Mode, event.Outcome,
		len(event.Violations), nullableBytes(violationsJSON), event.Error,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// Query returns matching events, newest first.
func (l *DBLogger) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Message != "" {
		add("message = $%d", filter.Message)
	}
	if filter.Outcome != "" {
		add("outcome = $%d", filter.Outcome)
	}
	if !filter.Since.IsZero() {
		add("timestamp >= $%d", filter.Since)
	}

	query := `SELECT id, timestamp, source, request_id, method, message, mode, outcome, violations, error_message FROM validation_audit`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			event          Event
			source         string
			requestID      sql.NullString
			method         sql.NullString
			violationsJSON []byte
			errorMessage   sql.NullString
			timestamp      time.Time
		)
		if err := rows.Scan(&event.ID, &timestamp, &source, &requestID, &method,
			&event.Message, &event.Mode, &event.Outcome, &violationsJSON, &errorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		event.Timestamp = timestamp.UTC()
		event.Source = Source(source)
		event.RequestID = requestID.String
		event.Method = method.String
		event.Error = errorMessage.String
		if len(violationsJSON) > 0 {
			if err := json.Unmarshal(violationsJSON, &event.Violations); err != nil {
				return nil, fmt.Errorf("failed to unmarshal violations: %w", err)
			}
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

// Close closes the database connection
func (l *DBLogger) Close() error {
	return l.db.Close()
}

func nullableBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
