package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileStore keeps the ledger in a single JSON file keyed by stringified user
// id. Every mutation rewrites the whole file via write-to-temp-then-rename so
// an external reader never observes a partial write.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
}

// OpenFile loads the ledger file at path. A missing file yields an empty
// ledger (first run); an unparseable file yields ErrCorrupt.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]Record),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	if err := json.Unmarshal(raw, &s.records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if s.records == nil {
		s.records = make(map[string]Record)
	}
	return s, nil
}

func userKey(userID int64) string { return strconv.FormatInt(userID, 10) }

// Get returns the user's record and whether it exists.
func (s *FileStore) Get(ctx context.Context, userID int64) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userKey(userID)]
	return rec, ok, nil
}

// UpsertName creates a record with count 0 if absent; an existing record's
// name is only replaced when the supplied name is non-empty.
func (s *FileStore) UpsertName(ctx context.Context, userID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(userID)
	rec, ok := s.records[key]
	if !ok {
		rec = Record{Name: name}
	} else if name != "" {
		rec.Name = name
	}
	s.records[key] = rec
	return s.persistLocked()
}

// IncrementOperations bumps the user's counter, creating the record if
// absent, and persists before returning the new count.
func (s *FileStore) IncrementOperations(ctx context.Context, userID int64, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(userID)
	rec, ok := s.records[key]
	if !ok {
		rec = Record{Name: name}
	} else if rec.Name == "" && name != "" {
		rec.Name = name
	}
	rec.Operations++
	s.records[key] = rec

	if err := s.persistLocked(); err != nil {
		// roll back the in-memory copy; the caller must not observe a count
		// the file does not carry
		rec.Operations--
		if !ok {
			delete(s.records, key)
		} else {
			s.records[key] = rec
		}
		return 0, err
	}
	return rec.Operations, nil
}

// persistLocked rewrites the whole file atomically. Callers hold s.mu.
func (s *FileStore) persistLocked() error {
	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename ledger file: %w", err)
	}
	return nil
}
