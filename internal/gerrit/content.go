package gerrit

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
)

// ContentFetcher retrieves full file contents over Gerrit's REST API.
// The SSH query channel has no equivalent, so this is a separate, optional
// enrichment: callers treat every failure here as non-fatal.
type ContentFetcher struct {
	baseURL  string
	maxBytes int
	client   *http.Client
}

// NewContentFetcher creates a fetcher against baseURL (e.g.
// "http://gerrit.example.com"). Files larger than maxBytes are skipped to
// keep prompt sizes bounded.
func NewContentFetcher(baseURL string, maxBytes int) *ContentFetcher {
	return &ContentFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a base URL was configured
func (f *ContentFetcher) Enabled() bool {
	return f != nil && f.baseURL != ""
}

// Fetch returns the decoded content of path at the change's current
// revision, or "" when the file is too large.
func (f *ContentFetcher) Fetch(ctx context.Context, ch *domain.Change, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/changes/%d/revisions/current/files/%s/content",
		f.baseURL, ch.Number, url.PathEscape(path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", domain.E(domain.KindProtocol, "gerrit.content", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", domain.E(domain.KindConnectivity, "gerrit.content", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", domain.Errorf(domain.KindAuth, "gerrit.content", "status %d for %s", resp.StatusCode, path)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.Errorf(domain.KindProtocol, "gerrit.content", "status %d for %s", resp.StatusCode, path)
	}

	// Gerrit returns file content base64-encoded
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", domain.E(domain.KindConnectivity, "gerrit.content", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return "", domain.E(domain.KindProtocol, "gerrit.content", err)
	}

	if f.maxBytes > 0 && len(decoded) > f.maxBytes {
		return "", nil
	}
	return string(decoded), nil
}
