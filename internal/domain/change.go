package domain

import (
	"fmt"
	"time"
)

// FileStatus represents the kind of modification applied to a file
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileDeleted  FileStatus = "deleted"
	FileRenamed  FileStatus = "renamed"
)

// ParseFileStatus maps Gerrit's single-letter type codes to a FileStatus
func ParseFileStatus(code string) FileStatus {
	switch code {
	case "A", "ADDED":
		return FileAdded
	case "D", "DELETED":
		return FileDeleted
	case "R", "RENAMED":
		return FileRenamed
	default:
		return FileModified
	}
}

// FileEntry is one file touched by a Change
type FileEntry struct {
	Path         string
	LinesAdded   int
	LinesRemoved int
	Status       FileStatus
	Diff         string // synthesized change summary, filled by FetchDiff
	SizeBytes    int64  // content size when known, 0 otherwise
}

// LinesChanged returns the total line churn for this file
func (f FileEntry) LinesChanged() int {
	removed := f.LinesRemoved
	if removed < 0 {
		removed = -removed
	}
	return f.LinesAdded + removed
}

// Change is an immutable snapshot of one open review unit.
// A later pass always fetches a fresh snapshot rather than mutating this one.
type Change struct {
	ID            string
	Number        int
	PatchSet      int
	Subject       string
	Project       string
	CommitMessage string
	Revision      string
	Updated       time.Time
	Files         []FileEntry
}

// TrackingKey identifies this change+patchset for dedup purposes.
// A new patchset on the same change is a new review unit.
func (c *Change) TrackingKey() string {
	return c.ID + ":" + c.Revision
}

// TotalLinesChanged sums line churn across all files
func (c *Change) TotalLinesChanged() int {
	total := 0
	for _, f := range c.Files {
		total += f.LinesChanged()
	}
	return total
}

// Ref returns the change identifier Gerrit's review command expects
func (c *Change) Ref() string {
	patchset := c.PatchSet
	if patchset <= 0 {
		patchset = 1
	}
	return fmt.Sprintf("%d,%d", c.Number, patchset)
}
