package gemini

import (
	"strings"
	"testing"

	"github.com/yuehan/english-tutor/internal/chat"
)

func TestSystemInstruction(t *testing.T) {
	t.Parallel()

	base := "You are a tutor."

	if got := systemInstruction(base, "", ""); got != base {
		t.Errorf("instruction without context = %q, want base unchanged", got)
	}

	got := systemInstruction(base, "B1", "scenario")
	if !strings.HasPrefix(got, base) {
		t.Errorf("instruction does not start with base: %q", got)
	}
	if !strings.Contains(got, "Current student level: B1") {
		t.Errorf("instruction missing level context: %q", got)
	}
	if !strings.Contains(got, "Current practice mode: scenario") {
		t.Errorf("instruction missing mode context: %q", got)
	}

	levelOnly := systemInstruction(base, "A2", "")
	if strings.Contains(levelOnly, "practice mode") {
		t.Errorf("instruction mentions mode without one: %q", levelOnly)
	}
}

func TestBuildContents(t *testing.T) {
	t.Parallel()

	history := []chat.Message{
		{Content: "I have cat", IsUser: true},
		{Content: "Almost! Say: I have a cat.", IsUser: false},
	}

	contents := buildContents(history, "I have a cat")
	if len(contents) != 3 {
		t.Fatalf("len = %d, want 3 (history + new message)", len(contents))
	}

	if contents[0].Role != "user" {
		t.Errorf("contents[0].Role = %q, want user", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Errorf("contents[1].Role = %q, want model", contents[1].Role)
	}
	if contents[2].Role != "user" {
		t.Errorf("contents[2].Role = %q, want user", contents[2].Role)
	}
	if contents[2].Parts[0].Text != "I have a cat" {
		t.Errorf("new message text = %q", contents[2].Parts[0].Text)
	}
}
