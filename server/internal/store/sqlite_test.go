package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readings.db")
	db, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return db, path
}

func TestSQLite_SaveLoadDelete(t *testing.T) {
	db, _ := openTestDB(t)
	defer db.Close()
	ctx := context.Background()

	at := time.Date(2026, 2, 10, 12, 0, 0, 123, time.UTC)
	entries := []Entry{
		{Record: record("2026-02-10_12:00:00", 71.5), AgentID: "wrist-01", UpdatedAt: at},
		{Record: record("2026-02-10_12:00:10", 73), AgentID: "wrist-01", UpdatedAt: at.Add(10 * time.Second)},
	}
	for _, e := range entries {
		if err := db.Save(ctx, e); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	// Replace the first.
	entries[0].Record.BPM = 88
	if err := db.Save(ctx, entries[0]); err != nil {
		t.Fatal(err)
	}

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load: got %d rows, want 2", len(got))
	}
	if got[0].Record != entries[0].Record || got[0].AgentID != "wrist-01" || !got[0].UpdatedAt.Equal(at) {
		t.Errorf("row 0 = %+v", got[0])
	}

	if err := db.Delete(ctx, []string{"2026-02-10_12:00:00"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = db.Load(ctx)
	if len(got) != 1 || got[0].Record.Key != "2026-02-10_12:00:10" {
		t.Errorf("after Delete: %+v", got)
	}
}

func TestSQLite_StoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	db, path := openTestDB(t)

	st, err := Open(ctx, 0, db)
	if err != nil {
		t.Fatal(err)
	}
	put(t, st, "2026-02-10_12:00:00", 66)
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	db2, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	st2, err := Open(ctx, 0, db2)
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	e, ok := st2.Get("2026-02-10_12:00:00")
	if !ok || e.Record.BPM != 66 || e.AgentID != "wrist-01" {
		t.Errorf("after restart: %+v, %v", e, ok)
	}
}
