package tracker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
)

// FileStore keeps the dedup set in a newline-delimited text file. The file
// is append-only in normal operation and safe to inspect or edit by hand
// between runs; Watch picks up manual edits while the service is running.
type FileStore struct {
	path string

	mu   sync.RWMutex
	keys map[string]struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileStore opens the store at path and loads any existing entries.
// A missing file is an empty store, not an error.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		keys: make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return domain.E(domain.KindIO, "tracker.load", err)
	}
	defer f.Close()

	keys := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		keys[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return domain.E(domain.KindIO, "tracker.load", err)
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	return nil
}

// Contains reports whether key has been recorded
func (s *FileStore) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of recorded keys
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Record appends key to the file and syncs before updating the in-memory
// set, so a crash after Record cannot lose the entry.
func (s *FileStore) Record(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.E(domain.KindIO, "tracker.record", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, key); err != nil {
		return domain.E(domain.KindIO, "tracker.record", err)
	}
	if err := f.Sync(); err != nil {
		return domain.E(domain.KindIO, "tracker.record", err)
	}

	s.keys[key] = struct{}{}
	return nil
}

// Watch reloads the set when the file changes on disk, so entries removed
// by hand take effect without a restart. onReload may be nil.
func (s *FileStore) Watch(onReload func(count int)) error {
	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files rather than write in place
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				// Debounce rapid editor save sequences
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(500*time.Millisecond, func() {
					if err := s.load(); err == nil && onReload != nil {
						onReload(s.Len())
					}
				})
			case <-watcher.Errors:
			case <-s.done:
				return
			}
		}
	}()

	return nil
}

// Close stops the watcher if one is running
func (s *FileStore) Close() error {
	if s.watcher != nil {
		close(s.done)
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}

// Reload re-reads the file into memory
func (s *FileStore) Reload() error {
	return s.load()
}
