package gerrit

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
)

func contentChange() *domain.Change {
	return &domain.Change{ID: "Iaaa", Number: 42, Revision: "rev"}
}

func TestContentFetcher_Fetch(t *testing.T) {
	source := "def main():\n    pass\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Gerrit takes the file path as a single escaped segment
		want := "/changes/42/revisions/current/files/src%2Fmain.py/content"
		if r.URL.EscapedPath() != want {
			t.Errorf("path = %s, want %s", r.URL.EscapedPath(), want)
		}
		w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(source))))
	}))
	defer server.Close()

	f := NewContentFetcher(server.URL, 10240)
	got, err := f.Fetch(context.Background(), contentChange(), "src/main.py")
	if err != nil {
		t.Fatal(err)
	}
	if got != source {
		t.Errorf("content = %q, want %q", got, source)
	}
}

func TestContentFetcher_OversizedFileIsSkipped(t *testing.T) {
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(base64.StdEncoding.EncodeToString(big)))
	}))
	defer server.Close()

	f := NewContentFetcher(server.URL, 1024)
	got, err := f.Fetch(context.Background(), contentChange(), "big.py")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("oversized file should return empty content, got %d bytes", len(got))
	}
}

func TestContentFetcher_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   domain.ErrorKind
	}{
		{http.StatusUnauthorized, domain.KindAuth},
		{http.StatusForbidden, domain.KindAuth},
		{http.StatusNotFound, domain.KindProtocol},
		{http.StatusInternalServerError, domain.KindProtocol},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		f := NewContentFetcher(server.URL, 10240)
		_, err := f.Fetch(context.Background(), contentChange(), "a.py")
		if err == nil {
			t.Errorf("status %d: expected error", tt.status)
		} else if domain.KindOf(err) != tt.want {
			t.Errorf("status %d: kind = %s, want %s", tt.status, domain.KindOf(err), tt.want)
		}
		server.Close()
	}
}

func TestContentFetcher_MalformedBodyIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not valid base64 !!!"))
	}))
	defer server.Close()

	f := NewContentFetcher(server.URL, 10240)
	_, err := f.Fetch(context.Background(), contentChange(), "a.py")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.KindOf(err) != domain.KindProtocol {
		t.Errorf("kind = %s, want %s", domain.KindOf(err), domain.KindProtocol)
	}
}

func TestContentFetcher_UnreachableServerIsConnectivityError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	f := NewContentFetcher(server.URL, 10240)
	_, err := f.Fetch(context.Background(), contentChange(), "a.py")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.KindOf(err) != domain.KindConnectivity {
		t.Errorf("kind = %s, want %s", domain.KindOf(err), domain.KindConnectivity)
	}
}

func TestContentFetcher_Enabled(t *testing.T) {
	var nilFetcher *ContentFetcher
	if nilFetcher.Enabled() {
		t.Error("nil fetcher should report disabled")
	}
	if NewContentFetcher("", 0).Enabled() {
		t.Error("empty base URL should report disabled")
	}
	if !NewContentFetcher("http://gerrit.example.com/", 10240).Enabled() {
		t.Error("configured fetcher should report enabled")
	}
}
