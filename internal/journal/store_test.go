package journal_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"watermark/internal/journal"
)

func openStore(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "nested", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := journal.Run{
		ID:            "run-1",
		Strategy:      "shared-memory-pool",
		Workers:       4,
		InputDir:      "/in",
		OutputDir:     "/out",
		OverlayPath:   "/in/Logo.png",
		OverlayDigest: "blake3:abc",
	}
	if err := store.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	jobs := []journal.Job{
		{RunID: "run-1", Index: 2, Source: "/in/b.png", ErrorKind: "decode", Error: "decode error: bad"},
		{RunID: "run-1", Index: 1, Source: "/in/a.png", Output: "/out/a_mk.png", Elapsed: 40 * time.Millisecond},
	}
	for _, job := range jobs {
		if err := store.RecordJob(ctx, job); err != nil {
			t.Fatalf("RecordJob: %v", err)
		}
	}
	if err := store.FinishRun(ctx, "run-1", journal.Totals{
		Attempted: 2, Completed: 1, Failed: 1, Reclaims: 3, PeakBytes: 1 << 30, Err: errors.New("terminated"),
	}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != journal.StatusFailed || got.Error != "terminated" {
		t.Fatalf("unexpected status %q / %q", got.Status, got.Error)
	}
	if got.Completed != 1 || got.Failed != 1 || got.Reclaims != 3 || got.PeakBytes != 1<<30 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if got.StartedAt.IsZero() || got.FinishedAt.IsZero() {
		t.Fatalf("timestamps not recorded: %+v", got)
	}

	recorded, err := store.Jobs(ctx, "run-1")
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(recorded) != 2 || recorded[0].Index != 1 || recorded[1].Index != 2 {
		t.Fatalf("jobs not ordered by index: %+v", recorded)
	}
	if !recorded[0].Succeeded() || recorded[0].Elapsed != 40*time.Millisecond || recorded[0].Output != "/out/a_mk.png" {
		t.Fatalf("unexpected first job %+v", recorded[0])
	}
	if recorded[1].Succeeded() || recorded[1].ErrorKind != "decode" {
		t.Fatalf("unexpected second job %+v", recorded[1])
	}
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		run := journal.Run{ID: id, Strategy: "sequential", Workers: 1, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.BeginRun(ctx, run); err != nil {
			t.Fatalf("BeginRun %s: %v", id, err)
		}
	}
	if err := store.FinishRun(ctx, "new", journal.Totals{Attempted: 1, Completed: 1}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Fatalf("unexpected order %+v", runs)
	}
	if runs[0].Status != journal.StatusCompleted || runs[1].Status != journal.StatusRunning {
		t.Fatalf("unexpected statuses %q %q", runs[0].Status, runs[1].Status)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	if err := store.FinishRun(context.Background(), "missing", journal.Totals{}); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestBeginRunRequiresID(t *testing.T) {
	store := openStore(t)
	if err := store.BeginRun(context.Background(), journal.Run{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()
	store, err := journal.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.BeginRun(ctx, journal.Run{ID: "r", Strategy: "sequential", Workers: 1}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	_ = store.Close()

	reopened, err := journal.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.ListRuns(ctx, 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected history to survive reopen, got %d runs (%v)", len(runs), err)
	}
}

func TestDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.png")
	if err := os.WriteFile(path, []byte("overlay bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	first, err := journal.Digest(path)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !strings.HasPrefix(first, "blake3:") || len(first) != len("blake3:")+64 {
		t.Fatalf("unexpected digest %q", first)
	}
	second, _ := journal.Digest(path)
	if first != second {
		t.Fatal("digest must be stable")
	}
	if _, err := journal.Digest(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := journal.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	_ = db.Close()

	if _, err := journal.Open(ctx, path); !errors.Is(err, journal.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
