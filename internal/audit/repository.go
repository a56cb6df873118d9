// Package audit keeps the control_log table: one row per TV control
// attempt, queried by the operator CLI for history.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sportsbar-av/internal/control"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Entry is one recorded control attempt.
type Entry struct {
	ID           string        `json:"id"`
	DeviceID     string        `json:"device_id"`
	Command      string        `json:"command"`
	Success      bool          `json:"success"`
	Method       string        `json:"method"`
	FallbackUsed bool          `json:"fallback_used"`
	Message      string        `json:"message"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration_ms"`
	CreatedAt    time.Time     `json:"created_at"`
}

// FromResult converts an orchestrator result into a log entry. The entry
// keeps the result's id so acks and history can be correlated.
func FromResult(res control.Result) *Entry {
	return &Entry{
		ID:           res.ID,
		DeviceID:     res.DeviceID,
		Command:      res.Command,
		Success:      res.Success,
		Method:       string(res.Method),
		FallbackUsed: res.FallbackUsed,
		Message:      res.Message,
		Error:        res.Error,
		Duration:     res.Duration,
		DurationMS:   res.DurationMS,
		CreatedAt:    res.Timestamp,
	}
}

// Filter controls which entries List returns.
type Filter struct {
	DeviceID string    // optional
	Command  string    // optional
	Success  *bool     // optional: only successes or only failures
	Since    time.Time // optional: entries at or after this time
	Limit    int       // default 50, max 200
	Offset   int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository records and lists control attempts.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a control log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if e.DurationMS == 0 && e.Duration > 0 {
		e.DurationMS = e.Duration.Milliseconds()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO control_log (id, device_id, command, success, method, fallback_used, message, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeviceID, e.Command, boolToInt(e.Success), e.Method,
		boolToInt(e.FallbackUsed), e.Message, nullableString(e.Error),
		e.DurationMS, e.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting control log entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, boolToInt(*filter.Success))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM control_log %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting control log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, device_id, command, success, method, fallback_used, message, error, duration_ms, created_at
		 FROM control_log %s ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying control log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var success, fallback int
		var errText sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Command, &success, &e.Method,
			&fallback, &e.Message, &errText, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning control log entry: %w", err)
		}
		e.Success = success != 0
		e.FallbackUsed = fallback != 0
		e.Error = errText.String
		e.Duration = time.Duration(e.DurationMS) * time.Millisecond

		e.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing control log timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating control log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
