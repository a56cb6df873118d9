package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/sportsbar-av/internal/control"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE control_log (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			command TEXT NOT NULL,
			success INTEGER NOT NULL,
			method TEXT NOT NULL,
			fallback_used INTEGER NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			error TEXT,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))
	base := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)

	fixtures := []control.Result{
		{ID: "r1", DeviceID: "bar-left", Command: "power_on", Success: true, Method: control.MethodCEC,
			Message: "power_on sent via CEC", Duration: 2100 * time.Millisecond, DurationMS: 2100, Timestamp: base},
		{ID: "r2", DeviceID: "bar-left", Command: "mute", Success: true, Method: control.MethodFallback,
			FallbackUsed: true, DurationMS: 450, Timestamp: base.Add(time.Minute)},
		{ID: "r3", DeviceID: "patio", Command: "mute", Success: false, Method: control.MethodIR,
			Error: "ir: command failed", Err: errors.New("ir: command failed"), DurationMS: 80, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, res := range fixtures {
		if err := repo.Record(ctx, FromResult(res)); err != nil {
			t.Fatalf("Record(%s) error = %v", res.ID, err)
		}
	}

	failed := false
	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
		total   int
	}{
		{"all newest first", Filter{}, []string{"r3", "r2", "r1"}, 3},
		{"by device", Filter{DeviceID: "bar-left"}, []string{"r2", "r1"}, 2},
		{"by command", Filter{Command: "mute"}, []string{"r3", "r2"}, 2},
		{"failures", Filter{Success: &failed}, []string{"r3"}, 1},
		{"since", Filter{Since: base.Add(30 * time.Second)}, []string{"r3", "r2"}, 2},
		{"paged", Filter{Limit: 1, Offset: 1}, []string{"r2"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.total {
				t.Errorf("Total = %d, want %d", got.Total, tt.total)
			}
			if len(got.Entries) != len(tt.wantIDs) {
				t.Fatalf("got %d entries, want %d", len(got.Entries), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got.Entries[i].ID != id {
					t.Errorf("Entries[%d].ID = %q, want %q", i, got.Entries[i].ID, id)
				}
			}
		})
	}

	page, err := repo.List(ctx, Filter{DeviceID: "patio"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	e := page.Entries[0]
	if e.Success || e.Method != "IR" || e.Error != "ir: command failed" || e.DurationMS != 80 || !e.CreatedAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("round trip = %+v", e)
	}
}

func TestRecord_GeneratesIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	e := &Entry{DeviceID: "tv", Command: "standby", Method: "CEC", Duration: 1500 * time.Millisecond}
	if err := repo.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() || e.DurationMS != 1500 {
		t.Errorf("entry = %+v", e)
	}

	if err := repo.Record(ctx, e); err == nil {
		t.Error("Record() with duplicate id should fail")
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	got, err := repo.List(context.Background(), Filter{Limit: 5000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Limit != maxLimit || got.Offset != 0 || got.Entries == nil {
		t.Errorf("List() = %+v", got)
	}
}
