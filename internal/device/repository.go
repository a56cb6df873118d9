package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines TV persistence operations.
type Repository interface {
	// GetByID returns ErrDeviceNotFound if the TV does not exist.
	GetByID(ctx context.Context, id string) (*TV, error)

	// List returns all TVs ordered by matrix output.
	List(ctx context.Context) ([]TV, error)

	// Create returns ErrDeviceExists if the ID is taken.
	Create(ctx context.Context, tv *TV) error

	// Update returns ErrDeviceNotFound if the TV does not exist.
	Update(ctx context.Context, tv *TV) error

	// Delete returns ErrDeviceNotFound if the TV does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT id, name, brand, output, cec_address, supports_cec, supports_ir,
		ir_address, preferred_method, created_at, updated_at
	FROM tv_devices`

// GetByID retrieves a TV by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*TV, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	tv, err := scanTV(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}
		return nil, fmt.Errorf("querying tv %s: %w", id, err)
	}
	return tv, nil
}

// List retrieves all TVs.
func (r *SQLiteRepository) List(ctx context.Context) ([]TV, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY output, id")
	if err != nil {
		return nil, fmt.Errorf("querying tvs: %w", err)
	}
	defer rows.Close()

	var tvs []TV
	for rows.Next() {
		tv, err := scanTV(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tv: %w", err)
		}
		tvs = append(tvs, *tv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tvs: %w", err)
	}
	return tvs, nil
}

// Create inserts a new TV. Timestamps are set here.
func (r *SQLiteRepository) Create(ctx context.Context, tv *TV) error {
	now := time.Now().UTC().Truncate(time.Second)
	tv.CreatedAt = now
	tv.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tv_devices (
			id, name, brand, output, cec_address, supports_cec, supports_ir,
			ir_address, preferred_method, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tv.ID, tv.Name, tv.Brand, tv.Output, tv.CECAddress,
		boolToInt(tv.SupportsCEC), boolToInt(tv.SupportsIR),
		nullableString(tv.IRAddress), string(tv.PreferredMethod),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDeviceExists, tv.ID)
		}
		return fmt.Errorf("inserting tv %s: %w", tv.ID, err)
	}
	return nil
}

// Update replaces every mutable column of an existing TV.
func (r *SQLiteRepository) Update(ctx context.Context, tv *TV) error {
	tv.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx, `
		UPDATE tv_devices SET
			name = ?, brand = ?, output = ?, cec_address = ?, supports_cec = ?,
			supports_ir = ?, ir_address = ?, preferred_method = ?, updated_at = ?
		WHERE id = ?`,
		tv.Name, tv.Brand, tv.Output, tv.CECAddress,
		boolToInt(tv.SupportsCEC), boolToInt(tv.SupportsIR),
		nullableString(tv.IRAddress), string(tv.PreferredMethod),
		tv.UpdatedAt.Format(time.RFC3339), tv.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tv %s: %w", tv.ID, err)
	}
	return requireOneRow(result, tv.ID)
}

// Delete removes a TV by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tv_devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting tv %s: %w", id, err)
	}
	return requireOneRow(result, id)
}

func requireOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return nil
}

// rowScanner is implemented by both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTV(scanner rowScanner) (*TV, error) {
	var (
		tv                   TV
		supportsCEC, suppIR  int
		irAddress            sql.NullString
		method               string
		createdAt, updatedAt string
	)
	if err := scanner.Scan(
		&tv.ID, &tv.Name, &tv.Brand, &tv.Output, &tv.CECAddress,
		&supportsCEC, &suppIR, &irAddress, &method, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	tv.SupportsCEC = supportsCEC != 0
	tv.SupportsIR = suppIR != 0
	tv.IRAddress = irAddress.String
	tv.PreferredMethod = Method(method)

	var err error
	if tv.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if tv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &tv, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
