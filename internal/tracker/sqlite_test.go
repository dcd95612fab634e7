package tracker

import (
	"path/filepath"
	"testing"
)

func TestSQLiteStore_RecordAndContains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviewed.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}

	key := "I1234abcd:rev5678"
	if s.Contains(key) {
		t.Fatal("key should not be present yet")
	}
	if err := s.Record(key); err != nil {
		t.Fatal(err)
	}
	if !s.Contains(key) {
		t.Error("key should be present after Record")
	}
	// Duplicate Record is harmless
	if err := s.Record(key); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if !reopened.Contains(key) {
		t.Error("key should survive a restart")
	}
}
