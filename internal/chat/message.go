// Package chat defines the conversation data model shared by the server
// endpoint and the client pipeline.
package chat

import (
	"strconv"
	"sync/atomic"
	"time"
)

// MessageType classifies an assistant message.
type MessageType string

const (
	TypeNormal        MessageType = "normal"
	TypeCorrection    MessageType = "correction"
	TypeEncouragement MessageType = "encouragement"
	TypeCultural      MessageType = "cultural"
	TypeGrammar       MessageType = "grammar"
	TypePronunciation MessageType = "pronunciation"
)

// ErrorCategory names a common Chinese→English transfer error.
type ErrorCategory string

const (
	CategoryArticles      ErrorCategory = "articles"
	CategoryPlural        ErrorCategory = "plural"
	CategoryTense         ErrorCategory = "tense"
	CategoryWordOrder     ErrorCategory = "word_order"
	CategoryPrepositions  ErrorCategory = "prepositions"
	CategoryCountable     ErrorCategory = "countable"
	CategoryModalVerbs    ErrorCategory = "modal_verbs"
	CategoryPronunciation ErrorCategory = "pronunciation"
	CategoryIdioms        ErrorCategory = "idioms"
)

// PracticeMode selects the conversation style requested from the tutor.
type PracticeMode string

const (
	ModeFreeTalk      PracticeMode = "free_talk"
	ModeScenario      PracticeMode = "scenario"
	ModeGrammarFocus  PracticeMode = "grammar_focus"
	ModePronunciation PracticeMode = "pronunciation"
	ModeVocabulary    PracticeMode = "vocabulary"
)

// ErrorHighlight flags one mistake inside an assistant message. It is owned
// by its parent Message and has no independent lifecycle.
type ErrorHighlight struct {
	Text               string        `json:"text"`
	Category           ErrorCategory `json:"category"`
	Correction         string        `json:"correction"`
	Explanation        string        `json:"explanation"`
	ChineseExplanation string        `json:"chineseExplanation,omitempty"`
}

// Message is one turn in the conversation. Messages are never mutated after
// creation; ordering by ID equals chronological order within a session.
type Message struct {
	ID                 string           `json:"id"`
	Content            string           `json:"content"`
	IsUser             bool             `json:"isUser"`
	Timestamp          time.Time        `json:"timestamp"`
	Type               MessageType      `json:"messageType,omitempty"`
	Suggestions        []string         `json:"suggestions,omitempty"`
	ChineseExplanation string           `json:"chineseExplanation,omitempty"`
	ErrorHighlights    []ErrorHighlight `json:"errorHighlights,omitempty"`
}

// lastID remembers the most recently minted identifier so that two messages
// created within the same millisecond still get strictly increasing IDs.
var lastID atomic.Int64

// NewID returns a session-unique message identifier that sorts in creation
// order. IDs are millisecond timestamps, bumped forward on collision.
func NewID(now time.Time) string {
	for {
		last := lastID.Load()
		id := now.UnixMilli()
		if id <= last {
			id = last + 1
		}
		if lastID.CompareAndSwap(last, id) {
			return strconv.FormatInt(id, 10)
		}
	}
}

// SendRequest is the body of POST /chat. Messages carries the most recent
// conversation window, oldest first.
type SendRequest struct {
	Message   string    `json:"message"`
	Messages  []Message `json:"messages"`
	UserLevel string    `json:"userLevel,omitempty"`
	Mode      string    `json:"mode,omitempty"`
}

// SendResponse is the success body of POST /chat.
type SendResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the failure body of POST /chat. Details is populated only
// in non-production builds.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
