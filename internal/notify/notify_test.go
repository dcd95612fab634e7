package notify

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackMessage_Build(t *testing.T) {
	msg := SlackMessage{
		Text: "Review pass complete",
		Attachments: []SlackAttachment{
			{
				Color: "good",
				Title: "run-1234",
				Text:  "reviewed=3 skipped=5 failed=0",
			},
		},
	}

	payload, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	if len(payload) == 0 {
		t.Error("Payload should not be empty")
	}
}

func TestSlackNotifier_Send(t *testing.T) {
	// Mock Slack server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:   "Review pass complete",
		Message: "reviewed=1 skipped=0 failed=0",
		Type:    NotifySuccess,
	})

	if err != nil {
		t.Errorf("Send failed: %v", err)
	}
}

func TestSlackNotifier_DisabledWithoutWebhook(t *testing.T) {
	notifier := NewSlackNotifier("")
	if err := notifier.Send(Notification{Title: "x"}); err != nil {
		t.Errorf("empty webhook should be a no-op, got %v", err)
	}
}

func TestSlackColor(t *testing.T) {
	tests := []struct {
		t    NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}
	for _, tt := range tests {
		if got := SlackColor(tt.t); got != tt.want {
			t.Errorf("SlackColor(%d) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestMultiNotifier(t *testing.T) {
	var sent int
	counting := notifierFunc(func(n Notification) error {
		sent++
		return nil
	})

	multi := NewMultiNotifier(counting, counting, NoopNotifier{})
	if err := multi.Send(Notification{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
}

type notifierFunc func(n Notification) error

func (f notifierFunc) Send(n Notification) error { return f(n) }
