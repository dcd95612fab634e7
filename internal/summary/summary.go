// Package summary turns a change snapshot into the structured analysis
// text handed to the review engine.
package summary

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/config"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
)

// Scale classifies a change by aggregate line churn
type Scale string

const (
	ScaleSmall  Scale = "small"
	ScaleMedium Scale = "medium"
	ScaleLarge  Scale = "large"
)

// File categories, coarsest-grained view of what a change touches
const (
	CategoryWebsocket = "websocket"
	CategoryAPI       = "api"
	CategoryConfig    = "config"
	CategoryScript    = "script"
	CategoryDatabase  = "database"
	CategoryDocs      = "docs"
	CategorySource    = "source" // generic fallback
)

// CategoryCount is the per-category slice of a change's footprint
type CategoryCount struct {
	Category string
	Files    int
	Lines    int
}

// Summary is a derived, stateless view of one change. It is produced
// fresh per change and never cached across passes.
type Summary struct {
	Project         string
	CommitMessage   string
	FilesTouched    int
	LinesChanged    int
	Scale           Scale
	Breakdown       []CategoryCount
	Recommendations []string
}

// Builder produces summaries with configured scale thresholds
type Builder struct {
	small int
	large int
}

// NewBuilder creates a Builder from configuration
func NewBuilder(cfg config.SummaryConfig) *Builder {
	return &Builder{small: cfg.SmallThreshold, large: cfg.LargeThreshold}
}

// Classify maps aggregate line churn to a scale. Small below the low
// threshold, large above the high threshold, medium otherwise.
func (b *Builder) Classify(lines int) Scale {
	switch {
	case lines < b.small:
		return ScaleSmall
	case lines > b.large:
		return ScaleLarge
	default:
		return ScaleMedium
	}
}

// Build derives a Summary from a change. Pure and total: unknown file
// types fall into the generic source category and an empty commit message
// gets a placeholder.
func (b *Builder) Build(c *domain.Change) *Summary {
	message := strings.TrimSpace(c.CommitMessage)
	if message == "" {
		message = strings.TrimSpace(c.Subject)
	}
	if message == "" {
		message = "(no commit message)"
	}

	byCategory := make(map[string]*CategoryCount)
	total := 0
	for _, f := range c.Files {
		cat := Categorize(f.Path)
		cc, ok := byCategory[cat]
		if !ok {
			cc = &CategoryCount{Category: cat}
			byCategory[cat] = cc
		}
		cc.Files++
		cc.Lines += f.LinesChanged()
		total += f.LinesChanged()
	}

	breakdown := make([]CategoryCount, 0, len(byCategory))
	for _, cc := range byCategory {
		breakdown = append(breakdown, *cc)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].Category < breakdown[j].Category
	})

	scale := b.Classify(total)

	return &Summary{
		Project:         c.Project,
		CommitMessage:   message,
		FilesTouched:    len(c.Files),
		LinesChanged:    total,
		Scale:           scale,
		Breakdown:       breakdown,
		Recommendations: recommendationsFor(breakdown, scale),
	}
}

// Categorize buckets a file by path hints first, then extension.
// Anything unrecognized is generic source.
func Categorize(path string) string {
	lower := strings.ToLower(path)
	if strings.Contains(lower, "websocket") || strings.Contains(lower, "ws_") {
		return CategoryWebsocket
	}
	if strings.Contains(lower, "api") || strings.Contains(lower, "connector") {
		return CategoryAPI
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".xml", ".toml", ".cfg", ".ini", ".conf":
		return CategoryConfig
	case ".sh", ".bash", ".zsh", ".fish", ".bat":
		return CategoryScript
	case ".sql":
		return CategoryDatabase
	case ".md", ".txt":
		return CategoryDocs
	default:
		return CategorySource
	}
}

// recommendationTable maps (category, scale) to review guidance. Lookup is
// deterministic so summaries are snapshot-testable.
var recommendationTable = map[string]map[Scale][]string{
	CategoryWebsocket: {
		ScaleSmall:  {"Verify connection lifecycle handling for the touched websocket paths"},
		ScaleMedium: {"Verify connection lifecycle handling for the touched websocket paths", "Check reconnect and backpressure behavior under load"},
		ScaleLarge:  {"Verify connection lifecycle handling for the touched websocket paths", "Check reconnect and backpressure behavior under load", "Consider a staged rollout for protocol-level changes"},
	},
	CategoryAPI: {
		ScaleSmall:  {"Confirm request/response contracts are unchanged for callers"},
		ScaleMedium: {"Confirm request/response contracts are unchanged for callers", "Check error propagation and timeout handling on new call paths"},
		ScaleLarge:  {"Confirm request/response contracts are unchanged for callers", "Check error propagation and timeout handling on new call paths", "Review versioning and backward compatibility for the API surface"},
	},
	CategoryConfig: {
		ScaleSmall:  {"Validate changed settings against the deployment environments"},
		ScaleMedium: {"Validate changed settings against the deployment environments", "Check for secrets accidentally committed in configuration"},
		ScaleLarge:  {"Validate changed settings against the deployment environments", "Check for secrets accidentally committed in configuration", "Coordinate the rollout order of dependent configuration"},
	},
	CategoryScript: {
		ScaleSmall:  {"Check shell quoting and exit-code handling"},
		ScaleMedium: {"Check shell quoting and exit-code handling", "Verify the script is idempotent when re-run"},
		ScaleLarge:  {"Check shell quoting and exit-code handling", "Verify the script is idempotent when re-run", "Consider converting complex script logic into tested code"},
	},
	CategoryDatabase: {
		ScaleSmall:  {"Check the migration is reversible"},
		ScaleMedium: {"Check the migration is reversible", "Estimate lock time on large tables"},
		ScaleLarge:  {"Check the migration is reversible", "Estimate lock time on large tables", "Plan a backfill strategy separate from the schema change"},
	},
	CategoryDocs: {
		ScaleSmall:  {"Check that examples still match the current behavior"},
		ScaleMedium: {"Check that examples still match the current behavior"},
		ScaleLarge:  {"Check that examples still match the current behavior", "Verify the document structure still matches the navigation"},
	},
	CategorySource: {
		ScaleSmall:  {"Review logic changes for edge cases"},
		ScaleMedium: {"Review logic changes for edge cases", "Check that new code paths are covered by tests"},
		ScaleLarge:  {"Review logic changes for edge cases", "Check that new code paths are covered by tests", "Consider splitting the change for easier review"},
	},
}

// recommendationsFor composes guidance across the categories present, in
// breakdown order, deduplicated, preserving first occurrence.
func recommendationsFor(breakdown []CategoryCount, scale Scale) []string {
	seen := make(map[string]struct{})
	var recs []string
	for _, cc := range breakdown {
		for _, r := range recommendationTable[cc.Category][scale] {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			recs = append(recs, r)
		}
	}
	return recs
}
