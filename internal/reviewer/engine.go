// Package reviewer drives the Claude CLI as an opaque review-generation
// process: one prompt in, one verdict out, under a hard wall-clock budget.
package reviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/config"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/logger"
)

// FailureReason tags why an analysis produced no usable verdict
type FailureReason string

const (
	ReasonNone    FailureReason = ""
	ReasonTimeout FailureReason = "timeout"
	ReasonLaunch  FailureReason = "launch"
	ReasonExit    FailureReason = "exit"
)

// Verdict is the engine's result. Consumed immediately by the pipeline to
// build a review post, then discarded.
type Verdict struct {
	Body       string
	Structured bool // parsed from the CLI's JSON output rather than raw text
	OK         bool
	Reason     FailureReason
	Detail     string // stderr excerpt on failure
}

// runFunc executes the CLI; swapped out in tests
type runFunc func(ctx context.Context, name string, args []string) (stdout, stderr []byte, err error)

// Engine invokes the review CLI with a timeout
type Engine struct {
	command string
	timeout time.Duration
	run     runFunc
	log     *logger.Logger
}

// New creates an Engine from configuration
func New(cfg config.ReviewerConfig, log *logger.Logger) *Engine {
	e := &Engine{
		command: cfg.Command,
		timeout: cfg.Timeout(),
		log:     log,
	}
	e.run = execRun
	return e
}

func execRun(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Analyze submits prompt to the CLI and returns a verdict. It never
// blocks past the configured timeout and never returns an error: failures
// are encoded in the verdict so one bad analysis cannot abort a pass.
// sessionID names the CLI session, keeping reruns of the same change
// resumable on the CLI side.
func (e *Engine) Analyze(ctx context.Context, prompt, sessionID string) Verdict {
	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{"--print"}
	if sessionID != "" {
		args = append(args, "--session-id", sessionID)
	}
	args = append(args, "-p", prompt)

	stdout, stderr, err := e.run(tctx, e.command, args)
	if err != nil {
		if tctx.Err() == context.DeadlineExceeded {
			return Verdict{Reason: ReasonTimeout, Detail: e.timeout.String()}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Verdict{Reason: ReasonExit, Detail: excerpt(stderr)}
		}
		return Verdict{Reason: ReasonLaunch, Detail: err.Error()}
	}

	body, structured := parseOutput(stdout)
	return Verdict{Body: body, Structured: structured, OK: true}
}

// TestConnection probes the CLI with a trivial prompt. Used once at
// startup; a failure here usually means the CLI needs re-authentication.
func (e *Engine) TestConnection(ctx context.Context) error {
	v := e.Analyze(ctx, "Reply with exactly: OK", "")
	if !v.OK {
		if v.Reason == ReasonTimeout {
			return domain.Errorf(domain.KindTimeout, "reviewer.probe", "no reply within %s", e.timeout)
		}
		return domain.Errorf(domain.KindConnectivity, "reviewer.probe", "%s: %s", v.Reason, v.Detail)
	}
	return nil
}

// cliMessage mirrors the CLI's JSON transcript format
type cliMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// cliResult mirrors the CLI's single-object JSON output format
type cliResult struct {
	Result string `json:"result"`
}

// parseOutput attempts a structured parse of the CLI output and falls
// back to the raw text. Malformed JSON is not an error: the raw output
// still makes a usable verdict body.
func parseOutput(out []byte) (string, bool) {
	trimmed := bytes.TrimSpace(out)

	var messages []cliMessage
	if err := json.Unmarshal(trimmed, &messages); err == nil {
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == "assistant" && messages[i].Content != "" {
				return messages[i].Content, true
			}
		}
	}

	var result cliResult
	if err := json.Unmarshal(trimmed, &result); err == nil && result.Result != "" {
		return result.Result, true
	}

	return string(trimmed), false
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
