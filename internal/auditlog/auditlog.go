package auditlog

// #region imports
import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region schema

const auditSchema = `
CREATE TABLE IF NOT EXISTS feedback_log (
	id               TEXT PRIMARY KEY,
	rule_id          INTEGER NOT NULL,
	outcome          TEXT NOT NULL,
	context_key      TEXT,
	chosen_lead_time INTEGER,
	snapshot_json    TEXT,
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_log_rule ON feedback_log(rule_id);

CREATE TABLE IF NOT EXISTS user_contexts (
	id            TEXT PRIMARY KEY,
	snapshot_json TEXT NOT NULL,
	source        TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
`

// #endregion

// #region init

// Init creates the append-only audit tables.
func Init(db *sql.DB) error {
	if _, err := db.Exec(auditSchema); err != nil {
		return fmt.Errorf("create audit tables: %w", err)
	}
	return nil
}

// #endregion

// #region log-feedback

// LogFeedback appends one feedback record. The id is assigned here.
func LogFeedback(db *sql.DB, entry FeedbackEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO feedback_log (id, rule_id, outcome, context_key, chosen_lead_time, snapshot_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.RuleID,
		string(entry.Outcome),
		nullIfEmpty(entry.ContextKey),
		entry.ChosenLeadTime,
		nullIfEmpty(entry.SnapshotJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("log feedback: %w", err)
	}
	return entry.ID, nil
}

// #endregion

// #region feedback-history

// RecentFeedback returns the newest feedback rows, optionally filtered by rule.
func RecentFeedback(db *sql.DB, ruleID int64, limit int) ([]FeedbackEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, rule_id, outcome, context_key, chosen_lead_time, snapshot_json, created_at
	          FROM feedback_log`
	args := []interface{}{}
	if ruleID != 0 {
		query += ` WHERE rule_id = ?`
		args = append(args, ruleID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback history: %w", err)
	}
	defer rows.Close()

	var out []FeedbackEntry
	for rows.Next() {
		var e FeedbackEntry
		var key, snapshot sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.RuleID, (*string)(&e.Outcome), &key, &e.ChosenLeadTime, &snapshot, &createdStr); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		e.ContextKey = key.String
		e.SnapshotJSON = snapshot.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountFeedback tallies accept/reject rows for one rule.
func CountFeedback(db *sql.DB, ruleID int64) (accepts, rejects int, err error) {
	err = db.QueryRow(
		`SELECT
		   COUNT(CASE WHEN outcome = 'accept' THEN 1 END),
		   COUNT(CASE WHEN outcome = 'reject' THEN 1 END)
		 FROM feedback_log WHERE rule_id = ?`, ruleID,
	).Scan(&accepts, &rejects)
	if err != nil {
		return 0, 0, fmt.Errorf("count feedback for rule %d: %w", ruleID, err)
	}
	return accepts, rejects, nil
}

// #endregion

// #region log-context

// LogContext appends one context snapshot for audit.
func LogContext(db *sql.DB, entry ContextEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO user_contexts (id, snapshot_json, source, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.SnapshotJSON, entry.Source, entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log context: %w", err)
	}
	return nil
}

// #endregion

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion
