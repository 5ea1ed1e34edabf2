package providers

import (
	"context"
	"fmt"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// grokImageModels are the names accepted for image generation; every one of
// them is served by grok-2-image.
var grokImageModels = map[string]bool{
	"grok-2-image":      true,
	"grok-2-image-1212": true,
	"grok-image":        true,
	"aurora":            true,
	"grok":              true,
	"grok-1":            true,
	"flux":              true,
}

const grokMaxImages = 10

// Grok serves xAI image generation and chat completions
type Grok struct {
	base
	apiKey string
}

// NewGrok creates the grok provider; an empty key leaves it unavailable
func NewGrok(apiKey string, opts ...Option) *Grok {
	return &Grok{
		base:   newBase("grok", "xAI Grok", "https://api.x.ai", pollSchedule{}, opts),
		apiKey: apiKey,
	}
}

func (p *Grok) Available() bool { return p.apiKey != "" }

func (p *Grok) Generate(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	if !p.Available() {
		return nil, fmt.Errorf("xAI API key not configured: %w", generation.ErrNotConfigured)
	}

	if grokImageModels[req.Model] {
		return p.generateImage(ctx, req)
	}
	req.Model = resolveGrokTextModel(req.Model)
	return p.chatCompletion(ctx, p.apiKey, req)
}

func resolveGrokTextModel(model string) string {
	if model == "" || model == "default" {
		return "grok-3"
	}
	return model
}

func (p *Grok) generateImage(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	n := generation.Int(req.Parameters, "n", 1)
	if n > grokMaxImages {
		n = grokMaxImages
	}
	if n < 1 {
		n = 1
	}

	body := map[string]any{
		"model":           "grok-2-image",
		"prompt":          req.Prompt,
		"n":               n,
		"response_format": generation.String(req.Parameters, "response_format", "url"),
	}

	data, err := p.postJSON(ctx, "/v1/images/generations", bearer(p.apiKey), body)
	if err != nil {
		return nil, err
	}

	var resp imageResponse
	meta, err := decode(data, &resp)
	if err != nil {
		return nil, err
	}

	result := &domain.JobResult{Metadata: meta}
	if len(resp.Data) > 0 {
		result.OutputURL = resp.Data[0].URL
		result.OutputData = resp.Data[0].B64JSON
	}
	return result, nil
}
