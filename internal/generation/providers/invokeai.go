package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// InvokeAI drives an InvokeAI server
type InvokeAI struct {
	base
}

// NewInvokeAI creates the invokeai provider against apiURL, e.g. http://127.0.0.1:9090
func NewInvokeAI(apiURL string, opts ...Option) *InvokeAI {
	return &InvokeAI{base: newBase("invokeai", "InvokeAI", "", pollSchedule{}, append([]Option{WithBaseURL(apiURL)}, opts...))}
}

func (p *InvokeAI) Available() bool { return p.baseURL != "" }

type invokeResponse struct {
	Image struct {
		URL  string `json:"url"`
		Data string `json:"data"`
	} `json:"image"`
}

func (p *InvokeAI) Generate(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	if !p.Available() {
		return nil, fmt.Errorf("InvokeAI API URL not configured: %w", generation.ErrNotConfigured)
	}

	params := req.Parameters
	model := checkpointName(params, req.Model)
	if model == "" {
		return nil, errors.New("model required for InvokeAI")
	}

	body := map[string]any{
		"model":           model,
		"prompt":          req.Prompt,
		"negative_prompt": generation.String(params, "negative_prompt", ""),
		"steps":           generation.Int(params, "steps", 20),
		"cfg_scale":       generation.Float(params, "cfg_scale", 7.0),
		"width":           generation.Int(params, "width", 512),
		"height":          generation.Int(params, "height", 512),
		"scheduler":       generation.FirstString(params, "euler", "sampler_name", "sampler"),
		"seed":            generation.Int(params, "seed", -1),
	}

	data, err := p.postJSON(ctx, "/api/v1/generate", nil, body)
	if err != nil {
		return nil, err
	}

	var resp invokeResponse
	if _, err := decode(data, &resp); err != nil {
		return nil, err
	}

	return &domain.JobResult{
		OutputURL:  resp.Image.URL,
		OutputData: resp.Image.Data,
		Metadata: map[string]any{
			"provider":   "invokeai",
			"parameters": body,
		},
	}, nil
}
