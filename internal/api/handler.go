// Package api provides the HTTP handlers for the tutor server.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yuehan/english-tutor/internal/chat"
	"github.com/yuehan/english-tutor/internal/config"
	"github.com/yuehan/english-tutor/internal/gemini"
	"github.com/yuehan/english-tutor/internal/ratelimit"
	"github.com/yuehan/english-tutor/internal/storage"
)

// Bilingual user-facing error strings.
const (
	msgRateLimited = "Too many requests. Please wait a moment before trying again. 请求过多，请稍后再试。"
	msgServerError = "Failed to get response. 无法获取响应。"
	msgBadRequest  = "Invalid request. 请求无效。"
)

// Handler serves the chat API.
type Handler struct {
	log     *slog.Logger
	cfg     *config.Config
	model   gemini.Client
	limiter *ratelimit.Limiter
}

// NewHandler creates a Handler with its dependencies.
func NewHandler(log *slog.Logger, cfg *config.Config, model gemini.Client, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		log:     log.With("component", "api"),
		cfg:     cfg,
		model:   model,
		limiter: limiter,
	}
}

// Routes mounts the API on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/chat", h.Chat)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Chat handles one conversation turn: rate limit, truncate the history
// window, ask the model, return the reply.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientKey := ratelimit.ClientKey(r)
	if !h.limiter.Allow(clientKey) {
		h.log.WarnContext(ctx, "Rate limit exceeded", "client", clientKey)
		JSON(w, http.StatusTooManyRequests, chat.ErrorResponse{Error: msgRateLimited})
		return
	}

	var req chat.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSON(w, http.StatusBadRequest, chat.ErrorResponse{Error: msgBadRequest})
		return
	}
	if req.Message == "" {
		JSON(w, http.StatusBadRequest, chat.ErrorResponse{Error: msgBadRequest})
		return
	}

	// Bound the request payload sent to the model regardless of what the
	// client chose to include.
	history := storage.TruncateTail(req.Messages, h.cfg.Chat.HistoryLimit)

	reply, err := h.model.GenerateReply(ctx, history, req.Message, req.UserLevel, req.Mode)
	if err != nil {
		h.log.ErrorContext(ctx, "Model call failed", "client", clientKey, "error", err)

		resp := chat.ErrorResponse{Error: msgServerError}
		if h.cfg.Server.Env != "production" {
			resp.Details = err.Error()
		}
		JSON(w, http.StatusInternalServerError, resp)
		return
	}

	JSON(w, http.StatusOK, chat.SendResponse{Response: reply})
}
