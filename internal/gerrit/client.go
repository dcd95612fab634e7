// Package gerrit is the SSH-based channel to the review server: listing
// open changes, fetching per-file stats, and posting review comments.
package gerrit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/config"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/logger"
)

// runner executes a gerrit command over SSH and returns stdout, stderr.
// Swapped out in tests.
type runner func(ctx context.Context, args []string) ([]byte, []byte, error)

// Client talks to one Gerrit instance over SSH
type Client struct {
	host        string
	port        int
	username    string
	sshKeyPath  string
	queryAge    string
	reviewScore int

	run runner
	log *logger.Logger
}

// New creates a Client from configuration
func New(cfg config.GerritConfig, log *logger.Logger) *Client {
	c := &Client{
		host:        cfg.Host,
		port:        cfg.Port,
		username:    cfg.Username,
		sshKeyPath:  cfg.SSHKeyPath,
		queryAge:    cfg.QueryAge,
		reviewScore: cfg.ReviewScore,
		log:         log,
	}
	c.run = c.sshRun
	return c
}

// sshArgs builds the ssh invocation for one gerrit command
func (c *Client) sshArgs(gerritArgs ...string) []string {
	args := []string{
		"-p", fmt.Sprintf("%d", c.port),
		"-i", c.sshKeyPath,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		fmt.Sprintf("%s@%s", c.username, c.host),
		"gerrit",
	}
	return append(args, gerritArgs...)
}

func (c *Client) sshRun(ctx context.Context, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, "ssh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// queryRow is one JSON line from gerrit query --format=JSON
type queryRow struct {
	Type          string    `json:"type"` // "stats" on the trailer line
	ID            string    `json:"id"`
	Number        int       `json:"number"`
	Subject       string    `json:"subject"`
	Project       string    `json:"project"`
	CommitMessage string    `json:"commitMessage"`
	LastUpdated   int64     `json:"lastUpdated"`
	CurrentPS     *patchSet `json:"currentPatchSet"`
}

type patchSet struct {
	Number   int       `json:"number"`
	Revision string    `json:"revision"`
	Files    []fileRow `json:"files"`
}

type fileRow struct {
	File       string `json:"file"`
	Type       string `json:"type"`
	Insertions int    `json:"insertions"`
	Deletions  int    `json:"deletions"`
}

// Query returns the filter expression used for discovery
func (c *Client) Query() string {
	query := "status:open NOT is:wip"
	if c.queryAge != "" {
		query += " age:" + c.queryAge
	}
	return query
}

// ListOpenChanges returns snapshots of all open, non-draft changes
// matching the configured age window. File lists are not populated here;
// FetchDiff enriches one change at a time.
func (c *Client) ListOpenChanges(ctx context.Context) ([]*domain.Change, error) {
	args := c.sshArgs("query", "--format=JSON", "--current-patch-set", "--commit-message", shellQuote(c.Query()))
	stdout, stderr, err := c.run(ctx, args)
	if err != nil {
		return nil, c.classify("gerrit.list", stderr, err)
	}

	var changes []*domain.Change
	for _, line := range bytes.Split(stdout, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var row queryRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, domain.E(domain.KindProtocol, "gerrit.list", fmt.Errorf("bad query row %q: %w", truncate(line, 120), err))
		}
		// The trailer line carries query statistics, not a change
		if row.Type == "stats" {
			continue
		}
		if row.Number == 0 {
			continue
		}
		ch := &domain.Change{
			ID:            row.ID,
			Number:        row.Number,
			Subject:       row.Subject,
			Project:       row.Project,
			CommitMessage: row.CommitMessage,
			Updated:       time.Unix(row.LastUpdated, 0),
		}
		if row.CurrentPS != nil {
			ch.Revision = row.CurrentPS.Revision
			ch.PatchSet = row.CurrentPS.Number
		}
		changes = append(changes, ch)
	}
	return changes, nil
}

// FetchDiff enriches a change with its file list. Gerrit's SSH query
// channel exposes per-file stats but not hunk text, so each entry gets a
// synthesized change summary in place of a raw diff.
func (c *Client) FetchDiff(ctx context.Context, ch *domain.Change) error {
	args := c.sshArgs("query", "--format=JSON", "--files", "--current-patch-set",
		shellQuote(fmt.Sprintf("change:%d", ch.Number)))
	stdout, stderr, err := c.run(ctx, args)
	if err != nil {
		return c.classify("gerrit.fetch", stderr, err)
	}

	for _, line := range bytes.Split(stdout, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var row queryRow
		if err := json.Unmarshal(line, &row); err != nil {
			return domain.E(domain.KindProtocol, "gerrit.fetch", fmt.Errorf("bad query row %q: %w", truncate(line, 120), err))
		}
		if row.Type == "stats" || row.CurrentPS == nil {
			continue
		}

		files := make([]domain.FileEntry, 0, len(row.CurrentPS.Files))
		for _, f := range row.CurrentPS.Files {
			// Pseudo-entry for the commit message itself
			if f.File == "/COMMIT_MSG" {
				continue
			}
			deletions := f.Deletions
			if deletions < 0 {
				deletions = -deletions
			}
			entry := domain.FileEntry{
				Path:         f.File,
				LinesAdded:   f.Insertions,
				LinesRemoved: deletions,
				Status:       domain.ParseFileStatus(f.Type),
			}
			entry.Diff = fileChangeSummary(entry)
			files = append(files, entry)
		}
		ch.Files = files
		c.log.Debugf("change %d: %d file(s), %d lines changed", ch.Number, len(files), ch.TotalLinesChanged())
		return nil
	}
	return domain.Errorf(domain.KindProtocol, "gerrit.fetch", "change %d: no patch set in query output", ch.Number)
}

// PostReview posts message as a review comment on the change's current
// patchset, with the configured Code-Review score if any.
func (c *Client) PostReview(ctx context.Context, ch *domain.Change, message string) error {
	gerritArgs := []string{"review", "--message", shellQuote(message)}
	if c.reviewScore != 0 {
		gerritArgs = append(gerritArgs, "--code-review", fmt.Sprintf("%d", c.reviewScore))
	}
	gerritArgs = append(gerritArgs, ch.Ref())

	_, stderr, err := c.run(ctx, c.sshArgs(gerritArgs...))
	if err != nil {
		return c.classify("gerrit.review", stderr, err)
	}
	return nil
}

// Version runs the gerrit version command, used as a startup probe
func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := c.run(ctx, c.sshArgs("version"))
	if err != nil {
		return "", c.classify("gerrit.version", stderr, err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

// classify maps an ssh failure to the error taxonomy based on stderr
func (c *Client) classify(op string, stderr []byte, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.E(domain.KindTimeout, op, err)
	}
	msg := strings.ToLower(string(stderr))
	switch {
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "publickey") || strings.Contains(msg, "authentication"):
		return domain.E(domain.KindAuth, op, fmt.Errorf("%s: %w", strings.TrimSpace(string(stderr)), err))
	case strings.Contains(msg, "change is closed") || strings.Contains(msg, "is abandoned") || strings.Contains(msg, "is merged") || strings.Contains(msg, "no such change"):
		return domain.E(domain.KindRejected, op, fmt.Errorf("%s: %w", strings.TrimSpace(string(stderr)), err))
	default:
		return domain.E(domain.KindConnectivity, op, fmt.Errorf("%s: %w", strings.TrimSpace(string(stderr)), err))
	}
}

// fileChangeSummary synthesizes the per-file "diff" text the prompt embeds
func fileChangeSummary(f domain.FileEntry) string {
	pattern := "balanced additions and deletions"
	switch {
	case f.LinesAdded > f.LinesRemoved*2:
		pattern = "mostly additions"
	case f.LinesRemoved > f.LinesAdded*2:
		pattern = "mostly deletions"
	}
	return fmt.Sprintf(`--- a/%s
+++ b/%s
@@ File Change Summary @@
File: %s
Change Type: %s
Lines Added: %d
Lines Removed: %d
Change Pattern: %s

Note: hunk-level diff content is not available over the SSH query channel.
Review based on file path, change type, and modification statistics.`,
		f.Path, f.Path, f.Path, strings.ToUpper(string(f.Status)), f.LinesAdded, f.LinesRemoved, pattern)
}

// shellQuote wraps s in single quotes for the remote shell, escaping any
// embedded single quotes
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
