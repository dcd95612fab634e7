package domain

import (
	"errors"
	"testing"
)

func TestParseFileStatus(t *testing.T) {
	tests := []struct {
		code string
		want FileStatus
	}{
		{"A", FileAdded},
		{"ADDED", FileAdded},
		{"D", FileDeleted},
		{"R", FileRenamed},
		{"M", FileModified},
		{"", FileModified},
		{"whatever", FileModified},
	}
	for _, tt := range tests {
		if got := ParseFileStatus(tt.code); got != tt.want {
			t.Errorf("ParseFileStatus(%q) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestFileEntry_LinesChanged(t *testing.T) {
	f := FileEntry{LinesAdded: 30, LinesRemoved: 10}
	if f.LinesChanged() != 40 {
		t.Errorf("LinesChanged = %d", f.LinesChanged())
	}

	// Gerrit reports deletions as negative numbers
	f = FileEntry{LinesAdded: 5, LinesRemoved: -3}
	if f.LinesChanged() != 8 {
		t.Errorf("LinesChanged with negative removals = %d", f.LinesChanged())
	}
}

func TestChange_TrackingKey(t *testing.T) {
	ch := &Change{ID: "Iabc", Revision: "deadbeef"}
	if ch.TrackingKey() != "Iabc:deadbeef" {
		t.Errorf("TrackingKey = %q", ch.TrackingKey())
	}
}

func TestChange_Ref(t *testing.T) {
	ch := &Change{Number: 42, PatchSet: 3}
	if ch.Ref() != "42,3" {
		t.Errorf("Ref = %q", ch.Ref())
	}

	// Unknown patchset falls back to 1
	ch = &Change{Number: 42}
	if ch.Ref() != "42,1" {
		t.Errorf("Ref = %q", ch.Ref())
	}
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(KindAuth, "gerrit.review", "permission denied")

	if KindOf(err) != KindAuth {
		t.Errorf("KindOf = %s", KindOf(err))
	}
	if !IsAuth(err) {
		t.Error("IsAuth should be true")
	}
	if IsRejected(err) || IsTimeout(err) {
		t.Error("wrong kind predicates matched")
	}

	wrapped := E(KindIO, "tracker.record", err)
	if KindOf(wrapped) != KindIO {
		t.Errorf("outermost kind wins, got %s", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors are unknown")
	}
}
