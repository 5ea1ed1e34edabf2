package providers

import (
	"context"
	"errors"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
}

// chatCompletion calls an OpenAI-compatible /v1/chat/completions endpoint
func (b *base) chatCompletion(ctx context.Context, apiKey string, req generation.Request) (*domain.JobResult, error) {
	var messages []chatMessage
	if system := generation.String(req.Parameters, "system", ""); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   generation.Int(req.Parameters, "max_tokens", 4096),
		Temperature: generation.Float(req.Parameters, "temperature", 1.0),
	}

	data, err := b.postJSON(ctx, "/v1/chat/completions", bearer(apiKey), body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if _, err := decode(data, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(b.label + " returned no choices")
	}

	return &domain.JobResult{
		OutputData: resp.Choices[0].Message.Content,
		Metadata: map[string]any{
			"id":            resp.ID,
			"model":         resp.Model,
			"finish_reason": resp.Choices[0].FinishReason,
			"usage":         resp.Usage,
		},
	}, nil
}
