// Package gemini implements the hosted-model integration. It translates a
// conversation window into a Gemini request and returns the tutor's reply.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/yuehan/english-tutor/internal/chat"
	"github.com/yuehan/english-tutor/internal/config"
)

// Client defines the model operations used by the chat endpoint.
type Client interface {
	// GenerateReply produces the tutor's answer to message given the
	// recent conversation window, the student's assessed level (may be
	// empty), and the active practice mode (may be empty).
	GenerateReply(ctx context.Context, history []chat.Message, message, userLevel, mode string) (string, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	cfg         config.GeminiConfig
	retryDelay  time.Duration
}

// NewClient creates a Gemini client from the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized", "model", cfg.Model)
	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		cfg:         cfg,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

// systemInstruction appends the student's level and practice mode to the
// configured tutor instruction so the model adapts its teaching.
func systemInstruction(base, userLevel, mode string) string {
	instruction := base
	if userLevel != "" {
		instruction += fmt.Sprintf("\n\nCurrent student level: %s. Adjust your teaching accordingly.", userLevel)
	}
	if mode != "" {
		instruction += fmt.Sprintf("\n\nCurrent practice mode: %s", mode)
	}
	return instruction
}

// buildContents converts the conversation window plus the new user message
// into genai contents, oldest first.
func buildContents(history []chat.Message, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		var role genai.Role = genai.RoleModel
		if m.IsUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(message, genai.RoleUser))
}

func (c *sdkClient) generateWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.cfg.MaxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.cfg.Model, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry",
			"attempt", i+1, "max_retries", c.cfg.MaxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.cfg.MaxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w",
				c.cfg.MaxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	return nil, err
}

func (c *sdkClient) GenerateReply(ctx context.Context, history []chat.Message, message, userLevel, mode string) (string, error) {
	c.log.DebugContext(ctx, "Generating reply",
		"history_count", len(history), "user_level", userLevel, "mode", mode)

	contentCfg := &genai.GenerateContentConfig{
		Temperature:     &c.cfg.Temperature,
		MaxOutputTokens: c.cfg.MaxTokens,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction(c.cfg.Instruction, userLevel, mode)}},
		},
	}

	resp, err := c.generateWithRetries(ctx, buildContents(history, message), contentCfg)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini reply generation failed", "error", err)
		return "", err
	}

	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("request blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("model returned no content")
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("model returned empty text")
	}
	return text, nil
}
