package assess_test

import (
	"strings"
	"testing"
	"time"

	"github.com/yuehan/english-tutor/internal/assess"
	"github.com/yuehan/english-tutor/internal/chat"
)

// userMessage builds a user message with exactly the given number of
// space-separated words and total character count.
func userMessage(t *testing.T, words, chars int) chat.Message {
	t.Helper()

	// words-1 spaces, remaining characters spread over the words.
	letters := chars - (words - 1)
	if letters < words {
		t.Fatalf("cannot build message with %d words and %d chars", words, chars)
	}
	parts := make([]string, words)
	for i := range parts {
		n := letters / words
		if i < letters%words {
			n++
		}
		parts[i] = strings.Repeat("a", n)
	}
	content := strings.Join(parts, " ")
	if len(content) != chars {
		t.Fatalf("built %d chars, want %d", len(content), chars)
	}
	return chat.Message{Content: content, IsUser: true}
}

func TestAssess_RequiresMinimumInteractions(t *testing.T) {
	t.Parallel()

	history := []chat.Message{
		userMessage(t, 16, 90),
		userMessage(t, 16, 90),
		userMessage(t, 16, 90),
		userMessage(t, 16, 90),
		{Content: "assistant reply", IsUser: false},
	}

	if _, ok := assess.Assess(history, time.Now()); ok {
		t.Error("Assess produced an estimate with only 4 user messages")
	}
}

func TestAssess_Bands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		words      int
		chars      int
		level      assess.Level
		confidence float64
	}{
		{name: "long detailed messages are B2", words: 16, chars: 90, level: assess.LevelB2, confidence: 0.7},
		{name: "medium messages are B1", words: 11, chars: 55, level: assess.LevelB1, confidence: 0.7},
		{name: "short sentences are A2", words: 8, chars: 35, level: assess.LevelA2, confidence: 0.6},
		{name: "fragments are A1", words: 5, chars: 20, level: assess.LevelA1, confidence: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var history []chat.Message
			for i := 0; i < 5; i++ {
				history = append(history, userMessage(t, tt.words, tt.chars))
				history = append(history, chat.Message{Content: "ok", IsUser: false})
			}

			now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
			est, ok := assess.Assess(history, now)
			if !ok {
				t.Fatal("Assess returned no estimate")
			}
			if est.Level != tt.level {
				t.Errorf("Level = %s, want %s", est.Level, tt.level)
			}
			if est.Confidence != tt.confidence {
				t.Errorf("Confidence = %v, want %v", est.Confidence, tt.confidence)
			}
			if !est.LastAssessed.Equal(now) {
				t.Errorf("LastAssessed = %v, want %v", est.LastAssessed, now)
			}
			if est.GrammarScore != 0.7 || est.VocabularyScore != 0.6 ||
				est.FluencyScore != 0.7 || est.PronunciationScore != 0.6 {
				t.Errorf("sub-scores = %v/%v/%v/%v, want 0.7/0.6/0.7/0.6",
					est.GrammarScore, est.VocabularyScore, est.FluencyScore, est.PronunciationScore)
			}
		})
	}
}

func TestAssess_IgnoresAssistantMessages(t *testing.T) {
	t.Parallel()

	// Five short user messages plus very long assistant replies: the
	// assistant text must not inflate the estimate.
	var history []chat.Message
	for i := 0; i < 5; i++ {
		history = append(history, userMessage(t, 5, 20))
		history = append(history, chat.Message{
			Content: strings.Repeat("a very long assistant explanation ", 20),
			IsUser:  false,
		})
	}

	est, ok := assess.Assess(history, time.Now())
	if !ok {
		t.Fatal("Assess returned no estimate")
	}
	if est.Level != assess.LevelA1 {
		t.Errorf("Level = %s, want A1", est.Level)
	}
}
