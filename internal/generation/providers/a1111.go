package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// A1111 drives an Automatic1111 WebUI. Output is returned as base64 image data.
type A1111 struct {
	base
}

// NewA1111 creates the a1111 provider against apiURL, e.g. http://127.0.0.1:7860
func NewA1111(apiURL string, opts ...Option) *A1111 {
	return &A1111{base: newBase("a1111", "A1111", "", pollSchedule{}, append([]Option{WithBaseURL(apiURL)}, opts...))}
}

func (p *A1111) Available() bool { return p.baseURL != "" }

// a1111 resize_mode: 0 just resize, 1 crop and resize, 2 resize and fill
var a1111ResizeModes = map[string]int{
	"resize": 0,
	"crop":   1,
	"fill":   2,
}

type sdResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
}

func (p *A1111) Generate(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	if !p.Available() {
		return nil, fmt.Errorf("A1111 API URL not configured: %w", generation.ErrNotConfigured)
	}

	params := req.Parameters
	body := map[string]any{
		"prompt":          req.Prompt,
		"negative_prompt": generation.String(params, "negative_prompt", ""),
		"steps":           generation.Int(params, "steps", 20),
		"cfg_scale":       generation.Float(params, "cfg_scale", 7.0),
		"width":           generation.Int(params, "width", 512),
		"height":          generation.Int(params, "height", 512),
		"sampler_name":    generation.FirstString(params, "Euler a", "sampler_name", "sampler"),
		"seed":            generation.Int(params, "seed", -1),
		"n_iter":          1,
		"batch_size":      1,
	}
	if checkpoint := checkpointName(params, req.Model); checkpoint != "" {
		body["override_settings"] = map[string]any{"sd_model_checkpoint": checkpoint}
	}

	endpoint := "/sdapi/v1/txt2img"
	if ref, ok := generation.ExtractReferenceImage(params); ok {
		refParams := generation.GetReferenceParams(params)
		endpoint = "/sdapi/v1/img2img"
		body["init_images"] = []string{ref.Data}
		body["denoising_strength"] = refParams.DenoisingStrength
		body["resize_mode"] = a1111ResizeModes[refParams.ResizeMode]
	}

	data, err := p.postJSON(ctx, endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	var resp sdResponse
	if _, err := decode(data, &resp); err != nil {
		return nil, err
	}
	if len(resp.Images) == 0 {
		return nil, errors.New("no images in response")
	}

	delete(body, "init_images")
	return &domain.JobResult{
		OutputData: resp.Images[0],
		Metadata: map[string]any{
			"provider":   "a1111",
			"info":       resp.Info,
			"parameters": body,
		},
	}, nil
}

// checkpointName picks the model checkpoint: an explicit parameter wins over
// the request model, and the "default" placeholder means the server's current one.
func checkpointName(params map[string]any, model string) string {
	if name := generation.String(params, "model", ""); name != "" {
		return name
	}
	if model == "" || model == "default" {
		return ""
	}
	return model
}
