package summary

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/config"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
)

func testBuilder() *Builder {
	return NewBuilder(config.SummaryConfig{SmallThreshold: 50, LargeThreshold: 500})
}

func TestBuilder_Classify(t *testing.T) {
	b := testBuilder()

	tests := []struct {
		lines int
		want  Scale
	}{
		{0, ScaleSmall},
		{45, ScaleSmall},
		{49, ScaleSmall},
		{50, ScaleMedium}, // boundary: small only strictly below the threshold
		{499, ScaleMedium},
		{500, ScaleMedium}, // boundary: large only strictly above the threshold
		{501, ScaleLarge},
		{6000, ScaleLarge},
	}

	for _, tt := range tests {
		if got := b.Classify(tt.lines); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.lines, got, tt.want)
		}
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"internal/ws_handler.py", CategoryWebsocket},
		{"pkg/websocket/conn.go", CategoryWebsocket},
		{"services/api/client.go", CategoryAPI},
		{"db/connector.py", CategoryAPI},
		{"deploy/values.yaml", CategoryConfig},
		{"scripts/install.sh", CategoryScript},
		{"migrations/001_init.sql", CategoryDatabase},
		{"README.md", CategoryDocs},
		{"src/main.rs", CategorySource},
		{"strange.xyz", CategorySource}, // unknown extension falls back
	}

	for _, tt := range tests {
		if got := Categorize(tt.path); got != tt.want {
			t.Errorf("Categorize(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestBuilder_Build(t *testing.T) {
	b := testBuilder()
	ch := &domain.Change{
		Project:       "infra/deploy",
		CommitMessage: "Add retry to uploader",
		Files: []domain.FileEntry{
			{Path: "uploader.py", LinesAdded: 30, LinesRemoved: 10},
			{Path: "settings.yaml", LinesAdded: 4, LinesRemoved: 1},
		},
	}

	s := b.Build(ch)

	if s.Project != "infra/deploy" {
		t.Errorf("Project = %q", s.Project)
	}
	if s.FilesTouched != 2 {
		t.Errorf("FilesTouched = %d, want 2", s.FilesTouched)
	}
	if s.LinesChanged != 45 {
		t.Errorf("LinesChanged = %d, want 45", s.LinesChanged)
	}
	if s.Scale != ScaleSmall {
		t.Errorf("Scale = %s, want small", s.Scale)
	}

	// Breakdown sorted by category name
	if len(s.Breakdown) != 2 || s.Breakdown[0].Category != CategoryConfig || s.Breakdown[1].Category != CategorySource {
		t.Errorf("Breakdown = %v", s.Breakdown)
	}
}

func TestBuilder_BuildDeterministic(t *testing.T) {
	b := testBuilder()
	ch := &domain.Change{
		Project:       "p",
		CommitMessage: "m",
		Files: []domain.FileEntry{
			{Path: "a.py", LinesAdded: 10},
			{Path: "b.sql", LinesAdded: 20},
			{Path: "c.sh", LinesAdded: 30},
		},
	}

	first := b.Build(ch)
	for i := 0; i < 5; i++ {
		again := b.Build(ch)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Build is not deterministic: %v vs %v", first, again)
		}
	}

	if len(first.Recommendations) == 0 {
		t.Error("expected recommendations")
	}
}

func TestBuilder_BuildFallbacks(t *testing.T) {
	b := testBuilder()
	s := b.Build(&domain.Change{})

	if s.CommitMessage != "(no commit message)" {
		t.Errorf("CommitMessage = %q, want placeholder", s.CommitMessage)
	}
	if s.Scale != ScaleSmall {
		t.Errorf("empty change should be small, got %s", s.Scale)
	}
}

func TestBuilder_Prompt(t *testing.T) {
	b := testBuilder()
	ch := &domain.Change{
		Project:       "infra",
		CommitMessage: "Fix uploader",
		Files: []domain.FileEntry{
			{Path: "uploader.py", LinesAdded: 12, LinesRemoved: 3, Status: domain.FileModified, Diff: "@@ stats @@"},
		},
	}
	s := b.Build(ch)

	prompt := b.Prompt(ch, s, "LGTM")

	for _, want := range []string{"infra", "Fix uploader", "uploader.py", "@@ stats @@", `"LGTM"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
