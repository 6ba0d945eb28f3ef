// Package assess infers a coarse CEFR proficiency level from the student's
// message history.
package assess

import (
	"strings"
	"time"

	"github.com/yuehan/english-tutor/internal/chat"
)

// Level is a CEFR proficiency band, ordered A1 < A2 < B1 < B2 < C1 < C2.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// MinInteractions is the number of user messages required before the first
// assessment runs.
const MinInteractions = 5

// Estimate is the learner's inferred level. Reassessment replaces the whole
// value; fields are never merged.
type Estimate struct {
	Level        Level     `json:"level"`
	Confidence   float64   `json:"confidence"`
	Strengths    []string  `json:"strengths"`
	Weaknesses   []string  `json:"weaknesses"`
	LastAssessed time.Time `json:"lastAssessed"`

	GrammarScore       float64 `json:"grammarScore"`
	VocabularyScore    float64 `json:"vocabularyScore"`
	FluencyScore       float64 `json:"fluencyScore"`
	PronunciationScore float64 `json:"pronunciationScore"`
}

// Assess classifies the student from the full message history using average
// message length and word count across all user-authored messages. It
// returns false (no estimate) until MinInteractions user messages exist.
//
// Known gaps, reproduced deliberately rather than fixed: the thresholds
// never produce C1 or C2, and the four sub-scores are fixed constants rather
// than derived from observed performance.
func Assess(history []chat.Message, now time.Time) (*Estimate, bool) {
	var userMessages []chat.Message
	for _, m := range history {
		if m.IsUser {
			userMessages = append(userMessages, m)
		}
	}

	if len(userMessages) < MinInteractions {
		return nil, false
	}

	var totalChars, totalWords int
	for _, m := range userMessages {
		totalChars += len(m.Content)
		totalWords += len(strings.Split(m.Content, " "))
	}
	avgChars := float64(totalChars) / float64(len(userMessages))
	avgWords := float64(totalWords) / float64(len(userMessages))

	level := LevelA1
	confidence := 0.5

	switch {
	case avgWords > 15 && avgChars > 80:
		level = LevelB2
		confidence = 0.7
	case avgWords > 10 && avgChars > 50:
		level = LevelB1
		confidence = 0.7
	case avgWords > 7 && avgChars > 30:
		level = LevelA2
		confidence = 0.6
	}

	return &Estimate{
		Level:              level,
		Confidence:         confidence,
		Strengths:          []string{},
		Weaknesses:         []string{},
		LastAssessed:       now,
		GrammarScore:       0.7,
		VocabularyScore:    0.6,
		FluencyScore:       0.7,
		PronunciationScore: 0.6,
	}, true
}
