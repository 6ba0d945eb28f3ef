package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yuehan/english-tutor/internal/chat"
	"github.com/yuehan/english-tutor/internal/config"
	"github.com/yuehan/english-tutor/internal/ratelimit"
)

// fakeModel records the last request and returns a canned reply or error.
type fakeModel struct {
	reply       string
	err         error
	lastHistory []chat.Message
	lastMessage string
	lastLevel   string
	lastMode    string
}

func (f *fakeModel) GenerateReply(_ context.Context, history []chat.Message, message, userLevel, mode string) (string, error) {
	f.lastHistory = history
	f.lastMessage = message
	f.lastLevel = userLevel
	f.lastMode = mode
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func testConfig(env string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0", Env: env},
		Chat: config.ChatConfig{
			MaxMessageLength: 1000,
			HistoryLimit:     25,
			MaxStored:        150,
			MinInteractions:  5,
			AssessEvery:      5,
		},
	}
}

func newTestRouter(cfg *config.Config, model *fakeModel, maxRequests int) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), time.Minute, maxRequests)
	h := NewHandler(log, cfg, model, limiter)

	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func postChat(t *testing.T, router http.Handler, req chat.SendRequest, clientIP string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if clientIP != "" {
		r.Header.Set("X-Forwarded-For", clientIP)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestChat_Success(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "Hi! How can I help you practice today?"}
	router := newTestRouter(testConfig("development"), model, 30)

	w := postChat(t, router, chat.SendRequest{
		Message:   "Hello",
		UserLevel: "B1",
		Mode:      "free_talk",
	}, "203.0.113.7")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var resp chat.SendResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Response != model.reply {
		t.Errorf("response = %q, want %q", resp.Response, model.reply)
	}
	if model.lastMessage != "Hello" || model.lastLevel != "B1" || model.lastMode != "free_talk" {
		t.Errorf("model saw message=%q level=%q mode=%q", model.lastMessage, model.lastLevel, model.lastMode)
	}
}

func TestChat_TruncatesHistoryWindow(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "ok"}
	router := newTestRouter(testConfig("development"), model, 30)

	history := make([]chat.Message, 40)
	for i := range history {
		history[i] = chat.Message{ID: fmt.Sprintf("%d", i), Content: fmt.Sprintf("msg %d", i), IsUser: i%2 == 0}
	}

	w := postChat(t, router, chat.SendRequest{Message: "next", Messages: history}, "203.0.113.7")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	if len(model.lastHistory) != 25 {
		t.Fatalf("model saw %d history messages, want 25", len(model.lastHistory))
	}
	if model.lastHistory[0].Content != "msg 15" || model.lastHistory[24].Content != "msg 39" {
		t.Errorf("wrong window: first %q last %q",
			model.lastHistory[0].Content, model.lastHistory[24].Content)
	}
}

func TestChat_RateLimited(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "ok"}
	router := newTestRouter(testConfig("development"), model, 2)

	for i := 0; i < 2; i++ {
		if w := postChat(t, router, chat.SendRequest{Message: "hi"}, "203.0.113.7"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}

	w := postChat(t, router, chat.SendRequest{Message: "hi"}, "203.0.113.7")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	var resp chat.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == "" {
		t.Error("429 response has empty error message")
	}

	// A different client is unaffected.
	if w := postChat(t, router, chat.SendRequest{Message: "hi"}, "198.51.100.9"); w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestChat_ModelFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		env         string
		wantDetails bool
	}{
		{name: "development exposes details", env: "development", wantDetails: true},
		{name: "production hides details", env: "production", wantDetails: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			model := &fakeModel{err: errors.New("model exploded")}
			router := newTestRouter(testConfig(tt.env), model, 30)

			w := postChat(t, router, chat.SendRequest{Message: "hi"}, "203.0.113.7")
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", w.Code)
			}

			var resp chat.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error == "" {
				t.Error("500 response has empty error message")
			}
			if tt.wantDetails && resp.Details != "model exploded" {
				t.Errorf("details = %q, want model error", resp.Details)
			}
			if !tt.wantDetails && resp.Details != "" {
				t.Errorf("details = %q leaked in production", resp.Details)
			}
		})
	}
}

func TestChat_RejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "ok"}
	router := newTestRouter(testConfig("development"), model, 30)

	w := postChat(t, router, chat.SendRequest{Message: ""}, "203.0.113.7")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router := newTestRouter(testConfig("development"), &fakeModel{}, 30)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
