// Package tutor implements the client-side conversation pipeline: input
// sanitization, the retried call to the chat server, local persistence, and
// periodic proficiency assessment.
package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuehan/english-tutor/internal/assess"
	"github.com/yuehan/english-tutor/internal/chat"
	"github.com/yuehan/english-tutor/internal/config"
	"github.com/yuehan/english-tutor/internal/httpretry"
	"github.com/yuehan/english-tutor/internal/sanitize"
	"github.com/yuehan/english-tutor/internal/storage"
)

// Bilingual user-facing strings shown in the conversation.
const (
	msgInvalidContent = "Invalid message content. Please try again. 消息内容无效，请重试。"
	msgTooLong        = "Message too long. Maximum %d characters. 消息太长，最多%d个字符。"
	msgSendFailed     = "Sorry, I encountered an error. Please try again. 抱歉，出现错误，请重试。"
)

// ErrInvalidMessage rejects input that failed sanitization.
var ErrInvalidMessage = errors.New(msgInvalidContent)

// Pipeline drives one student's conversation. All exported methods are safe
// for concurrent use; the conversation state behind them is guarded by a
// single mutex.
type Pipeline struct {
	log    *slog.Logger
	cfg    *config.Config
	store  *storage.Store
	client *httpretry.Client
	now    func() time.Time

	mu           sync.Mutex
	messages     []chat.Message
	level        *assess.Estimate
	mode         chat.PracticeMode
	streak       int
	lastPractice string
}

// NewPipeline creates a Pipeline and restores any persisted conversation
// state from the local cache.
func NewPipeline(ctx context.Context, log *slog.Logger, cfg *config.Config, store *storage.Store, client *httpretry.Client) *Pipeline {
	p := &Pipeline{
		log:    log.With("component", "pipeline"),
		cfg:    cfg,
		store:  store,
		client: client,
		now:    time.Now,
		mode:   chat.PracticeMode(cfg.Client.Mode),
	}

	store.GetJSON(ctx, storage.KeyMessages, &p.messages)
	var level assess.Estimate
	if store.GetJSON(ctx, storage.KeyLevel, &level) {
		p.level = &level
	}
	store.GetJSON(ctx, storage.KeyStreak, &p.streak)
	store.GetJSON(ctx, storage.KeyLastPractice, &p.lastPractice)

	p.log.InfoContext(ctx, "Conversation state restored",
		"messages", len(p.messages), "has_level", p.level != nil, "streak", p.streak)
	return p
}

// Send runs one conversation turn: sanitize the input, call the server with
// the recent history window, record both sides of the exchange, and reassess
// the student's level on schedule.
//
// A server failure does not surface as an error; the assistant turn becomes
// an apology (or the server's own error message) so the conversation keeps
// its shape. Errors are reserved for input the pipeline refuses to send.
func (p *Pipeline) Send(ctx context.Context, raw string) (chat.Message, error) {
	clean, ok := sanitize.ValidateAndSanitize(raw, p.log)
	if !ok || clean == "" {
		return chat.Message{}, ErrInvalidMessage
	}
	if len(clean) > p.cfg.Chat.MaxMessageLength {
		return chat.Message{}, fmt.Errorf(msgTooLong, p.cfg.Chat.MaxMessageLength, p.cfg.Chat.MaxMessageLength)
	}

	p.mu.Lock()
	history := storage.TruncateTail(p.messages, p.cfg.Chat.HistoryLimit)
	userLevel := ""
	if p.level != nil {
		userLevel = string(p.level.Level)
	}
	mode := string(p.mode)

	userMsg := chat.Message{
		ID:        chat.NewID(p.now()),
		Content:   clean,
		IsUser:    true,
		Timestamp: p.now(),
	}
	p.messages = append(p.messages, userMsg)
	p.updateStreakLocked(ctx)
	p.persistMessagesLocked()
	p.mu.Unlock()

	reply, err := p.callServer(ctx, history, clean, userLevel, mode)
	assistantMsg := chat.Message{
		ID:        chat.NewID(p.now()),
		IsUser:    false,
		Timestamp: p.now(),
		Type:      chat.TypeNormal,
	}
	if err != nil {
		p.log.WarnContext(ctx, "Chat request failed", "error", err)
		assistantMsg.Content = failureMessage(err)
	} else {
		assistantMsg.Content = reply
	}

	p.mu.Lock()
	p.messages = append(p.messages, assistantMsg)
	p.persistMessagesLocked()
	p.maybeAssessLocked(ctx)
	p.mu.Unlock()

	return assistantMsg, nil
}

// callServer posts the turn to the chat endpoint through the retrying client.
func (p *Pipeline) callServer(ctx context.Context, history []chat.Message, message, userLevel, mode string) (string, error) {
	req := chat.SendRequest{
		Message:   message,
		Messages:  history,
		UserLevel: userLevel,
		Mode:      mode,
	}

	var resp chat.SendResponse
	if err := p.client.PostJSON(ctx, p.cfg.Client.ServerURL+"/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// failureMessage prefers the server's own bilingual error text when the
// failure carried one, falling back to a generic apology.
func failureMessage(err error) string {
	var statusErr *httpretry.StatusError
	if errors.As(err, &statusErr) {
		var resp chat.ErrorResponse
		if jsonErr := json.Unmarshal([]byte(statusErr.Body), &resp); jsonErr == nil && resp.Error != "" {
			return resp.Error
		}
	}
	return msgSendFailed
}

// persistMessagesLocked schedules a debounced write of the conversation.
// Callers must hold p.mu.
func (p *Pipeline) persistMessagesLocked() {
	snapshot := make([]chat.Message, len(p.messages))
	copy(snapshot, p.messages)
	p.store.SetDebounced(storage.KeyMessages, snapshot)
}

// maybeAssessLocked reruns the proficiency estimate on every assess_every-th
// user message. The stored estimate is replaced wholesale. Callers must hold
// p.mu.
func (p *Pipeline) maybeAssessLocked(ctx context.Context) {
	userCount := 0
	for _, m := range p.messages {
		if m.IsUser {
			userCount++
		}
	}
	if userCount == 0 || userCount%p.cfg.Chat.AssessEvery != 0 {
		return
	}

	estimate, ok := assess.Assess(p.messages, p.now())
	if !ok {
		return
	}

	p.level = estimate
	p.store.SetSafe(ctx, storage.KeyLevel, estimate)
	p.log.InfoContext(ctx, "Proficiency reassessed",
		"level", estimate.Level, "confidence", estimate.Confidence, "user_messages", userCount)
}

// Messages returns a copy of the conversation so far, oldest first.
func (p *Pipeline) Messages() []chat.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]chat.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Level returns the current proficiency estimate, or nil before the first
// assessment.
func (p *Pipeline) Level() *assess.Estimate {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.level == nil {
		return nil
	}
	level := *p.level
	return &level
}

// Streak returns the current consecutive-day practice streak.
func (p *Pipeline) Streak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streak
}

// Mode returns the active practice mode.
func (p *Pipeline) Mode() chat.PracticeMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetMode switches the practice mode for subsequent turns.
func (p *Pipeline) SetMode(mode chat.PracticeMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

// Clear wipes the conversation from memory and the cache. The level, streak,
// and other progress keys survive.
func (p *Pipeline) Clear(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = nil
	p.store.Remove(ctx, storage.KeyMessages)
	p.log.InfoContext(ctx, "Conversation cleared")
}

// Reset wipes everything the app has stored: the conversation, the level
// estimate, the streak, and every other key in the app namespace.
func (p *Pipeline) Reset(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = nil
	p.level = nil
	p.streak = 0
	p.lastPractice = ""
	p.store.ClearNamespace(ctx, storage.Namespace)
	p.log.InfoContext(ctx, "All stored progress reset")
}

// Flush forces any debounced writes out. Called on shutdown.
func (p *Pipeline) Flush(ctx context.Context) {
	p.store.Flush(ctx)
}
