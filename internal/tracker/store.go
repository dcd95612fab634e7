// Package tracker persists the set of already-reviewed change keys so a
// change is posted to at most once across process restarts.
package tracker

// Store is the dedup set consulted before any work is done for a change
// and appended to only after its review has been posted.
type Store interface {
	// Contains reports whether key has already been recorded. It has no
	// side effects and may be called any number of times.
	Contains(key string) bool

	// Record durably marks key as processed. The pipeline does not
	// consider a change fully handled until Record returns nil.
	Record(key string) error

	Close() error
}
