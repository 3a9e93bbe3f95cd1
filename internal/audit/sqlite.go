package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	type TEXT NOT NULL,
	session_id TEXT,
	user_id TEXT,
	intent TEXT,
	transaction_id TEXT,
	transaction_type TEXT,
	result TEXT,
	reference TEXT,
	reason TEXT,
	severity TEXT,
	message_length INTEGER,
	response_length INTEGER
);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(type);
CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events(user_id);
`

// SQLiteSink persists audit records to a SQLite table for querying.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSink opens (creating if needed) the audit database at dbPath.
func NewSQLiteSink(dbPath string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(auditSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}

	return &SQLiteSink{db: db, logger: logger}, nil
}

// Record inserts one audit row. Failures are logged, never returned.
func (s *SQLiteSink) Record(event Event) {
	_, err := s.db.Exec(`
		INSERT INTO audit_events (
			timestamp, type, session_id, user_id, intent,
			transaction_id, transaction_type, result, reference,
			reason, severity, message_length, response_length
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp, string(event.Type), event.SessionID, event.UserID,
		event.Intent, event.TransactionID, event.TransactionType,
		event.Result, event.Reference, event.Reason, event.Severity,
		event.MessageLen, event.ResponseLen)
	if err != nil {
		s.logger.Error("failed to insert audit event", "error", err, "type", event.Type)
	}
}

// CountByType returns how many events of the given type are stored.
// Used by operational tooling and tests.
func (s *SQLiteSink) CountByType(eventType EventType) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM audit_events WHERE type = ?`, string(eventType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
