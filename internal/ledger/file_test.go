package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempLedgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "user_data.json")
}

func TestOpenFile_MissingFileIsEmptyLedger(t *testing.T) {
	s, err := OpenFile(tempLedgerPath(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, ok, err := s.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("fresh ledger must be empty")
	}
}

func TestOpenFile_CorruptFile(t *testing.T) {
	path := tempLedgerPath(t)
	if err := os.WriteFile(path, []byte("{{{ not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := OpenFile(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestUpsertName_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	s, err := OpenFile(tempLedgerPath(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.UpsertName(ctx, 42, "Ana"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec, ok, _ := s.Get(ctx, 42)
	if !ok || rec.Name != "Ana" || rec.Operations != 0 {
		t.Fatalf("wrong record after create: %+v ok=%v", rec, ok)
	}

	// empty name must not clobber the stored one
	if err := s.UpsertName(ctx, 42, ""); err != nil {
		t.Fatalf("upsert empty: %v", err)
	}
	rec, _, _ = s.Get(ctx, 42)
	if rec.Name != "Ana" {
		t.Fatalf("empty name clobbered record: %+v", rec)
	}

	if err := s.UpsertName(ctx, 42, "Ana Maria"); err != nil {
		t.Fatalf("upsert rename: %v", err)
	}
	rec, _, _ = s.Get(ctx, 42)
	if rec.Name != "Ana Maria" {
		t.Fatalf("rename not applied: %+v", rec)
	}
}

func TestIncrementOperations_MonotonicAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := tempLedgerPath(t)

	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 1; i <= 3; i++ {
		n, err := s.IncrementOperations(ctx, 42, "Ana")
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if n != i {
			t.Fatalf("expected count %d, got %d", i, n)
		}
	}

	// simulated crash: a fresh store over the same file must see the
	// persisted counts and keep counting from there
	s2, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, ok, _ := s2.Get(ctx, 42)
	if !ok || rec.Operations != 3 || rec.Name != "Ana" {
		t.Fatalf("state lost across reopen: %+v ok=%v", rec, ok)
	}
	n, err := s2.IncrementOperations(ctx, 42, "Ana")
	if err != nil {
		t.Fatalf("increment after reopen: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected count 4 after reopen, got %d", n)
	}
}

func TestIncrementOperations_CreatesRecordWithName(t *testing.T) {
	ctx := context.Background()
	s, err := OpenFile(tempLedgerPath(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	n, err := s.IncrementOperations(ctx, 7, "Boris")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	rec, _, _ := s.Get(ctx, 7)
	if rec.Name != "Boris" {
		t.Fatalf("name not set on create: %+v", rec)
	}
}

func TestPersistedLayout(t *testing.T) {
	ctx := context.Background()
	path := tempLedgerPath(t)
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := s.IncrementOperations(ctx, 42, "Ana"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	// the on-disk format is a single JSON object keyed by stringified user id
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]Record
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("persisted file not valid JSON: %v", err)
	}
	rec, ok := decoded["42"]
	if !ok || rec.Name != "Ana" || rec.Operations != 1 {
		t.Fatalf("wrong persisted layout: %s", raw)
	}

	// no stray temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the ledger file, found %d entries", len(entries))
	}
}
