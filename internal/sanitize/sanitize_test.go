package sanitize_test

import (
	"strings"
	"testing"

	"github.com/yuehan/english-tutor/internal/sanitize"
)

func TestValidateAndSanitize_RejectsDangerousInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty string", input: ""},
		{name: "only whitespace", input: "   \t\n  "},
		{name: "script tag", input: `hello <script>alert("x")</script> world`},
		{name: "script tag mixed case", input: `<SCRIPT src="evil.js">a</SCRIPT>`},
		{name: "iframe tag", input: `<iframe src="https://evil.example"></iframe>`},
		{name: "object tag", input: `<object data="x"></object>`},
		{name: "embed tag", input: `<embed src="x.swf">`},
		{name: "event handler attribute", input: `<img src=x onerror=alert(1)>`},
		{name: "bare event handler", input: `click me onclick= doBad()`},
		{name: "javascript uri", input: `go to javascript:alert(1)`},
		{name: "javascript uri uppercase", input: `JAVASCRIPT:void(0)`},
		{name: "data uri", input: `see data:text/html;base64,xxxx`},
		{name: "vbscript uri", input: `vbscript:msgbox(1)`},
		{name: "file uri", input: `open file:///etc/passwd`},
		{name: "only tags", input: `<b><i></i></b>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := sanitize.ValidateAndSanitize(tt.input, nil)
			if ok {
				t.Errorf("ValidateAndSanitize(%q) accepted, want rejection (got %q)", tt.input, got)
			}
			if got != "" {
				t.Errorf("ValidateAndSanitize(%q) returned %q on rejection, want empty", tt.input, got)
			}
		})
	}
}

func TestValidateAndSanitize_AcceptsPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple text", input: "hello world", expected: "hello world"},
		{name: "trims whitespace", input: "  How are you?  ", expected: "How are you?"},
		{name: "chinese text", input: "这个用中文怎么说?", expected: "这个用中文怎么说?"},
		{name: "strips harmless tags", input: "I <b>really</b> like it", expected: "I really like it"},
		{name: "escapes special characters", input: "1 < 2", expected: "1 &lt; 2"},
		{name: "punctuation", input: "Well... maybe, yes!", expected: "Well... maybe, yes!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := sanitize.ValidateAndSanitize(tt.input, nil)
			if !ok {
				t.Fatalf("ValidateAndSanitize(%q) rejected, want accept", tt.input)
			}
			if got != tt.expected {
				t.Errorf("ValidateAndSanitize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// Sanitizing already-sanitized plain text must yield the same string, so a
// message can safely pass through the pipeline more than once.
func TestValidateAndSanitize_IdempotentOnPlainText(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"hello world",
		"I went there yesterday.",
		"My favorite food is dumplings! 我最喜欢饺子",
		"Numbers 123 and punctuation: commas, periods.",
		strings.Repeat("practice ", 50),
	}

	for _, input := range inputs {
		once, ok := sanitize.ValidateAndSanitize(input, nil)
		if !ok {
			t.Fatalf("ValidateAndSanitize(%q) rejected, want accept", input)
		}
		twice, ok := sanitize.ValidateAndSanitize(once, nil)
		if !ok {
			t.Fatalf("ValidateAndSanitize(%q) rejected on second pass", once)
		}
		if once != twice {
			t.Errorf("not idempotent: first %q, second %q", once, twice)
		}
	}
}
