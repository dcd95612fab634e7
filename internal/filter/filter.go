// Package filter decides which changes warrant automated review.
package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/config"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
)

// Filter applies the triage policy: extension allow-set, path exclude
// patterns, and aggregate/per-file size limits. Limits apply to the whole
// change: an oversized change is rejected outright rather than reviewed
// partially, which keeps review scope and dedup tracking atomic per change.
type Filter struct {
	extensions      map[string]struct{}
	excludePatterns []string
	maxLinesChanged int
	maxFileSizeKB   int
}

// Result is the outcome of evaluating one change
type Result struct {
	Accepted   bool
	Considered []domain.FileEntry // files that passed the per-file policy
	Reason     string             // set when Accepted is false
}

// New builds a Filter from configuration
func New(cfg config.FilterConfig) *Filter {
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	patterns := make([]string, len(cfg.ExcludePatterns))
	for i, p := range cfg.ExcludePatterns {
		patterns[i] = strings.ToLower(p)
	}
	return &Filter{
		extensions:      exts,
		excludePatterns: patterns,
		maxLinesChanged: cfg.MaxLinesChanged,
		maxFileSizeKB:   cfg.MaxFileSizeKB,
	}
}

// Evaluate applies the policy file-by-file, then aggregates
func (f *Filter) Evaluate(c *domain.Change) Result {
	var considered []domain.FileEntry
	for _, file := range c.Files {
		if f.considerFile(file.Path) {
			considered = append(considered, file)
		}
	}

	if len(considered) == 0 {
		return Result{Reason: "no reviewable files"}
	}

	total := 0
	for _, file := range considered {
		if f.maxFileSizeKB > 0 && file.SizeBytes > int64(f.maxFileSizeKB)*1024 {
			return Result{Reason: fmt.Sprintf("file %s exceeds %d KB", file.Path, f.maxFileSizeKB)}
		}
		total += file.LinesChanged()
	}

	if f.maxLinesChanged > 0 && total > f.maxLinesChanged {
		return Result{Reason: fmt.Sprintf("%d lines changed exceeds limit of %d", total, f.maxLinesChanged)}
	}

	return Result{Accepted: true, Considered: considered}
}

// Accept reports whether the change passes the triage policy
func (f *Filter) Accept(c *domain.Change) bool {
	return f.Evaluate(c).Accepted
}

// considerFile checks one path against the allow-set and exclude patterns
func (f *Filter) considerFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := f.extensions[ext]; !ok {
		return false
	}

	lower := strings.ToLower(path)
	for _, pattern := range f.excludePatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}
