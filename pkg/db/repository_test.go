package db

import (
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	database, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return NewRepository(database)
}

func TestRunLedger(t *testing.T) {
	repo := setupTestDB(t)

	// Empty at first
	run, err := repo.LatestRun()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil, got %+v", run)
	}

	start := time.Now().Truncate(time.Second)
	if err := repo.RecordRun(RunRecord{
		StartedAt:    start,
		FinishedAt:   start.Add(3 * time.Second),
		Created:      2,
		Moved:        1,
		StatusPushes: 1,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := repo.RecordRun(RunRecord{
		StartedAt:  start.Add(time.Minute),
		FinishedAt: start.Add(time.Minute + time.Second),
		Errors:     1,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	run, err = repo.LatestRun()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if run == nil || run.Errors != 1 {
		t.Fatalf("expected the later run, got %+v", run)
	}

	runs, err := repo.RecentRuns(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[1].Created != 2 || runs[1].Moved != 1 {
		t.Errorf("oldest run counters = %+v", runs[1])
	}
}

func TestRecentRunsLimit(t *testing.T) {
	repo := setupTestDB(t)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := repo.RecordRun(RunRecord{
			StartedAt:  start.Add(time.Duration(i) * time.Minute),
			FinishedAt: start.Add(time.Duration(i)*time.Minute + time.Second),
		}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	runs, err := repo.RecentRuns(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 runs, got %d", len(runs))
	}
}

func TestArchivedCards(t *testing.T) {
	repo := setupTestDB(t)

	if err := repo.RecordArchived("card-1", "WORK: acme/widgets #12 Fix the thing", "https://github.com/acme/widgets/issues/12"); err != nil {
		t.Fatalf("record: %v", err)
	}

	rec, err := repo.GetArchivedByCardID("card-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record, got nil")
	}
	if rec.SyncURL != "https://github.com/acme/widgets/issues/12" {
		t.Errorf("sync url = %q", rec.SyncURL)
	}

	// Re-archiving is a no-op
	if err := repo.RecordArchived("card-1", "renamed", ""); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	rec2, _ := repo.GetArchivedByCardID("card-1")
	if rec2.Name != "WORK: acme/widgets #12 Fix the thing" {
		t.Errorf("duplicate insert overwrote name: %q", rec2.Name)
	}

	// Not found
	rec3, err := repo.GetArchivedByCardID("nonexistent")
	if err != nil {
		t.Fatalf("get nonexistent: %v", err)
	}
	if rec3 != nil {
		t.Errorf("expected nil, got %+v", rec3)
	}
}
