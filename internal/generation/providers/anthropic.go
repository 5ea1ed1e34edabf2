package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

const anthropicVersion = "2023-06-01"

// Anthropic serves text completions through the messages API
type Anthropic struct {
	base
	apiKey string
}

// NewAnthropic creates the anthropic provider; an empty key leaves it unavailable
func NewAnthropic(apiKey string, opts ...Option) *Anthropic {
	return &Anthropic{
		base:   newBase("anthropic", "Anthropic", "https://api.anthropic.com", pollSchedule{}, opts),
		apiKey: apiKey,
	}
}

func (p *Anthropic) Available() bool { return p.apiKey != "" }

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      map[string]any `json:"usage"`
}

func (p *Anthropic) Generate(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	if !p.Available() {
		return nil, fmt.Errorf("Anthropic API key not configured: %w", generation.ErrNotConfigured)
	}

	body := map[string]any{
		"model":       req.Model,
		"max_tokens":  generation.Int(req.Parameters, "max_tokens", 4096),
		"temperature": generation.Float(req.Parameters, "temperature", 1.0),
		"messages": []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	if system := generation.String(req.Parameters, "system", ""); system != "" {
		body["system"] = system
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}

	data, err := p.postJSON(ctx, "/v1/messages", headers, body)
	if err != nil {
		return nil, err
	}

	var resp messagesResponse
	if _, err := decode(data, &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		text.WriteString(block.Text)
	}

	return &domain.JobResult{
		OutputData: text.String(),
		Metadata: map[string]any{
			"id":          resp.ID,
			"model":       resp.Model,
			"stop_reason": resp.StopReason,
			"usage":       resp.Usage,
		},
	}, nil
}
