// Package pipeline composes discovery, triage, summarization, analysis,
// and publication into a single pass over open changes.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/filter"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/logger"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/notify"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/reviewer"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/summary"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/tracker"
)

// sessionNamespace seeds deterministic per-change session IDs so a rerun
// of the same change resumes the same CLI session
var sessionNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// ChangeSource lists open changes, enriches them with file diffs, and
// posts reviews. No internal retry: the next scheduled pass is the retry.
type ChangeSource interface {
	ListOpenChanges(ctx context.Context) ([]*domain.Change, error)
	FetchDiff(ctx context.Context, ch *domain.Change) error
	PostReview(ctx context.Context, ch *domain.Change, message string) error
}

// ReviewEngine produces a verdict for a prompt under its own timeout
type ReviewEngine interface {
	Analyze(ctx context.Context, prompt, sessionID string) reviewer.Verdict
}

// ContentSource optionally supplies full file contents for prompt context
type ContentSource interface {
	Enabled() bool
	Fetch(ctx context.Context, ch *domain.Change, path string) (string, error)
}

// State is a change's terminal or transient position in one pass
type State string

const (
	StateFetching    State = "fetching"
	StateFiltering   State = "filtering"
	StateSummarizing State = "summarizing"
	StateAnalyzing   State = "analyzing"
	StatePosting     State = "posting"
	StateRecording   State = "recording"
	StateDone        State = "done"
	StateSkipped     State = "skipped"
	StateFailed      State = "failed"
)

// Outcome tallies one pass. Used for logging and notifications only,
// never for control flow.
type Outcome struct {
	Reviewed int
	Skipped  int
	Failed   int
}

func (o Outcome) String() string {
	return fmt.Sprintf("reviewed=%d skipped=%d failed=%d", o.Reviewed, o.Skipped, o.Failed)
}

const reviewHeader = "🤖 **Automated Code Review**\n\n"

const reviewFooter = "\n\n---\n*This review was generated automatically. " +
	"Treat it as input for a human reviewer, not a final judgment.*"

// Orchestrator drives one pass at a time, single-threaded: the review
// engine is a shared, rate-limited resource and the tracking store gets
// exactly one writer.
type Orchestrator struct {
	source      ChangeSource
	engine      ReviewEngine
	store       tracker.Store
	filter      *filter.Filter
	builder     *summary.Builder
	content     ContentSource
	notifier    notify.Notifier
	log         *logger.Logger
	delay       time.Duration
	cleanMarker string

	// Posting is disabled for the remainder of a pass after an auth
	// failure: credentials will not recover mid-pass, and discovery and
	// analysis can still proceed in degraded mode.
	postingDisabled bool
}

// Options configures an Orchestrator
type Options struct {
	Source      ChangeSource
	Engine      ReviewEngine
	Store       tracker.Store
	Filter      *filter.Filter
	Builder     *summary.Builder
	Content     ContentSource // may be nil
	Notifier    notify.Notifier
	Log         *logger.Logger
	Delay       time.Duration // inter-call pause between changes
	CleanMarker string        // verdict text meaning "nothing to flag"
}

// New creates an Orchestrator
func New(opts Options) *Orchestrator {
	if opts.Notifier == nil {
		opts.Notifier = notify.NoopNotifier{}
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &Orchestrator{
		source:      opts.Source,
		engine:      opts.Engine,
		store:       opts.Store,
		filter:      opts.Filter,
		builder:     opts.Builder,
		content:     opts.Content,
		notifier:    opts.Notifier,
		log:         opts.Log,
		delay:       opts.Delay,
		cleanMarker: opts.CleanMarker,
	}
}

// RunPass processes all currently open changes once. One change's failure
// never aborts the pass; only discovery failure does, and that bubbles to
// the scheduler's cool-down policy.
func (o *Orchestrator) RunPass(ctx context.Context) (Outcome, error) {
	runID := uuid.New().String()
	log := o.log.With("run_id", runID)
	o.postingDisabled = false

	changes, err := o.source.ListOpenChanges(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("listing open changes: %w", err)
	}
	log.Infof("pass started: %d open change(s)", len(changes))

	var outcome Outcome
	for i, ch := range changes {
		if i > 0 && o.delay > 0 {
			select {
			case <-ctx.Done():
				return outcome, ctx.Err()
			case <-time.After(o.delay):
			}
		}

		state, detail := o.safeProcess(ctx, ch)
		switch state {
		case StateDone:
			outcome.Reviewed++
			log.Infof("reviewed %q (%s)", ch.Subject, ch.TrackingKey())
		case StateSkipped:
			outcome.Skipped++
			log.Debugf("skipped %q: %s", ch.Subject, detail)
		default:
			outcome.Failed++
			log.Errorf("failed %q: %s", ch.Subject, detail)
		}

		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
	}

	log.Infof("pass complete: %s", outcome)
	o.notifyOutcome(runID, outcome)
	return outcome, nil
}

// safeProcess isolates a single change: a panic while processing one
// change is converted to a failure rather than taking down the pass
func (o *Orchestrator) safeProcess(ctx context.Context, ch *domain.Change) (state State, detail string) {
	defer func() {
		if r := recover(); r != nil {
			state = StateFailed
			detail = fmt.Sprintf("panic: %v", r)
		}
	}()
	return o.processChange(ctx, ch)
}

// processChange walks one change through the per-pass state machine:
// Fetching → Filtering → Summarizing → Analyzing → Posting → Recording.
func (o *Orchestrator) processChange(ctx context.Context, ch *domain.Change) (State, string) {
	key := ch.TrackingKey()

	// Membership check happens before any work so already-processed
	// changes cost nothing
	if o.store.Contains(key) {
		return StateSkipped, "already reviewed"
	}

	// Fetching
	if err := o.source.FetchDiff(ctx, ch); err != nil {
		if domain.IsRejected(err) {
			return StateSkipped, err.Error()
		}
		if domain.IsTimeout(err) {
			return StateFailed, fmt.Sprintf("fetch timed out: %v", err)
		}
		return StateFailed, fmt.Sprintf("fetch: %v", err)
	}

	// Filtering
	res := o.filter.Evaluate(ch)
	if !res.Accepted {
		return StateSkipped, res.Reason
	}

	// Summarizing works from the considered subset only
	considered := *ch
	considered.Files = res.Considered
	if o.enrichContent(ctx, &considered) {
		// Fetched content reveals file sizes the SSH channel does not
		// expose, so the size cap gets a second look
		if res = o.filter.Evaluate(&considered); !res.Accepted {
			return StateSkipped, res.Reason
		}
		considered.Files = res.Considered
	}

	sum := o.builder.Build(&considered)
	prompt := o.builder.Prompt(&considered, sum, o.cleanMarker)

	// Analyzing
	sessionID := uuid.NewSHA1(sessionNamespace, []byte(key)).String()
	verdict := o.engine.Analyze(ctx, prompt, sessionID)
	if !verdict.OK {
		return StateFailed, fmt.Sprintf("analysis %s: %s", verdict.Reason, verdict.Detail)
	}

	body := strings.TrimSpace(verdict.Body)
	if body == "" || body == o.cleanMarker {
		// Nothing worth posting, but the change is handled: record it so
		// it is not re-analyzed every pass
		if err := o.store.Record(key); err != nil {
			o.log.Warnf("change %s clean but not recorded: %v", key, err)
		}
		return StateDone, ""
	}

	// Posting
	if o.postingDisabled {
		return StateFailed, "posting disabled after earlier auth failure"
	}
	message := reviewHeader + body + reviewFooter
	if err := o.source.PostReview(ctx, ch, message); err != nil {
		switch {
		case domain.IsRejected(err):
			// Change merged or abandoned while we were analyzing
			return StateSkipped, err.Error()
		case domain.IsAuth(err):
			o.postingDisabled = true
			o.log.Error("review credentials rejected, posting disabled for this pass", err)
			return StateFailed, err.Error()
		default:
			return StateFailed, fmt.Sprintf("post: %v", err)
		}
	}

	// Recording. The review is already published, so a failure here is an
	// accepted at-most-once-violation risk: log it loudly and move on.
	if err := o.store.Record(key); err != nil {
		o.log.Warnf("change %s posted but not recorded, may be re-reviewed: %v", key, err)
	}

	return StateDone, ""
}

// enrichContent appends full file contents to small files' diff text for
// better prompt context. Every failure is non-fatal. Reports whether any
// file was enriched, so callers know sizes became available.
func (o *Orchestrator) enrichContent(ctx context.Context, ch *domain.Change) bool {
	if o.content == nil || !o.content.Enabled() {
		return false
	}
	enriched := false
	for i := range ch.Files {
		content, err := o.content.Fetch(ctx, ch, ch.Files[i].Path)
		if err != nil {
			o.log.Debugf("content fetch for %s: %v", ch.Files[i].Path, err)
			continue
		}
		if content == "" {
			continue
		}
		ch.Files[i].SizeBytes = int64(len(content))
		ch.Files[i].Diff += "\n\nCurrent file content:\n```\n" + content + "\n```"
		enriched = true
	}
	return enriched
}

func (o *Orchestrator) notifyOutcome(runID string, outcome Outcome) {
	kind := notify.NotifySuccess
	if outcome.Failed > 0 {
		kind = notify.NotifyWarning
	}
	err := o.notifier.Send(notify.Notification{
		Title:   "Review pass complete",
		Message: outcome.String(),
		Type:    kind,
		RunID:   runID,
	})
	if err != nil {
		o.log.Debugf("notification failed: %v", err)
	}
}
