package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"pharmawatch/internal/core"
)

func TestNewCreatesDatabaseFile(t *testing.T) {
	tmpDir := t.TempDir()

	r, err := New(tmpDir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	dbPath := filepath.Join(tmpDir, "pharmawatch.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file should be created")
	}
}

func TestNewInvalidDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "file.txt")
	_ = os.WriteFile(invalidPath, []byte("test"), 0o644)

	_, err := New(filepath.Join(invalidPath, "nested"))
	if err == nil {
		t.Error("expected error when creating recorder under a file path")
	}
}

func testRecord() core.RunRecord {
	stats := core.NewRunStats()
	stats.Collected = 10
	stats.Unique = 8
	stats.DuplicatesRemoved = 2
	stats.Kept = 4
	stats.Filtered = 4
	stats.Analyzed = 8
	stats.State = core.StateDone
	stats.PhaseTimings["collecting"] = 50 * time.Millisecond

	return core.RunRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		AlertName: "ozempic-watch",
		User:      "analyst",
		Keywords:  []string{"ozempic", "semaglutide"},
		StartDate: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Mode:      core.ModeStandard,
		Stats:     stats,
		Success:   true,
	}
}

func TestRecordAndGetRun(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	rec := testRecord()
	if err := r.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := r.GetRun(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row, got nil")
	}
	if got.AlertName != rec.AlertName {
		t.Errorf("AlertName = %q, want %q", got.AlertName, rec.AlertName)
	}
	if got.State != string(core.StateDone) {
		t.Errorf("State = %q, want DONE", got.State)
	}
	if !got.Success {
		t.Error("Success = false, want true")
	}
}

func TestGetRunMissingReturnsNilNotError(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	got, err := r.GetRun(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}

func TestRecordFailedRunPersistsError(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	rec := testRecord()
	rec.Success = false
	rec.Error = "context deadline exceeded"
	rec.Stats.State = core.StateCancelled

	if err := r.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := r.GetRun(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Success {
		t.Error("Success = true, want false")
	}
	if got.Error != "context deadline exceeded" {
		t.Errorf("Error = %q", got.Error)
	}
}

func TestRecentRunsOrderedNewestFirst(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	older := testRecord()
	older.ID = uuid.NewString()
	older.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := testRecord()
	newer.ID = uuid.NewString()
	newer.Timestamp = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	if err := r.Record(context.Background(), older); err != nil {
		t.Fatalf("Record(older) failed: %v", err)
	}
	if err := r.Record(context.Background(), newer); err != nil {
		t.Fatalf("Record(newer) failed: %v", err)
	}

	runs, err := r.RecentRuns(context.Background(), "ozempic-watch", 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != newer.ID {
		t.Errorf("runs[0].ID = %q, want newer run first", runs[0].ID)
	}
}

func TestRecordUpsertByID(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	rec := testRecord()
	if err := r.Record(context.Background(), rec); err != nil {
		t.Fatalf("first Record failed: %v", err)
	}

	rec.Success = false
	rec.Error = "retried and failed"
	if err := r.Record(context.Background(), rec); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}

	runs, err := r.RecentRuns(context.Background(), rec.AlertName, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("len(runs) = %d, want 1 (same ID should overwrite)", len(runs))
	}
}
