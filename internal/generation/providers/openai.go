package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// OpenAI serves DALL-E and GPT Image images, Sora videos and chat completions
type OpenAI struct {
	base
	apiKey       string
	organization string
}

// NewOpenAI creates the openai provider; an empty key leaves it unavailable
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	return &OpenAI{
		base:   newBase("openai", "OpenAI", "https://api.openai.com", pollSchedule{initial: 10 * time.Second, step: 5 * time.Second, max: 30 * time.Second, attempts: 90}, opts),
		apiKey: apiKey,
	}
}

// WithOrganization sets the OpenAI-Organization header
func (p *OpenAI) WithOrganization(org string) *OpenAI {
	p.organization = org
	return p
}

func (p *OpenAI) Available() bool { return p.apiKey != "" }

func (p *OpenAI) headers() map[string]string {
	h := bearer(p.apiKey)
	if p.organization != "" {
		h["OpenAI-Organization"] = p.organization
	}
	return h
}

func (p *OpenAI) Generate(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	if !p.Available() {
		return nil, fmt.Errorf("OpenAI API key not configured: %w", generation.ErrNotConfigured)
	}

	switch {
	case req.Model == "dall-e-3" || req.Model == "dall-e-2" || isGPTImage(req.Model):
		return p.generateImage(ctx, req)
	case strings.HasPrefix(req.Model, "sora"):
		return p.generateVideo(ctx, req)
	case strings.HasPrefix(req.Model, "gpt-") || strings.HasPrefix(req.Model, "o"):
		return p.chatCompletion(ctx, p.apiKey, req)
	default:
		return nil, fmt.Errorf("unsupported OpenAI model: %s", req.Model)
	}
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func isGPTImage(model string) bool {
	return strings.HasPrefix(model, "gpt-image")
}

// gptImageQuality maps DALL-E quality names onto low/medium/high/auto
func gptImageQuality(quality string) string {
	switch quality {
	case "", "standard":
		return "auto"
	case "hd":
		return "high"
	default:
		return quality
	}
}

func (p *OpenAI) generateImage(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	quality := generation.String(req.Parameters, "quality", "standard")
	if isGPTImage(req.Model) {
		quality = gptImageQuality(quality)
	}
	body := map[string]any{
		"model":   req.Model,
		"prompt":  req.Prompt,
		"n":       generation.Int(req.Parameters, "n", 1),
		"size":    generation.String(req.Parameters, "size", "1024x1024"),
		"quality": quality,
	}
	if style := generation.String(req.Parameters, "style", ""); style != "" && req.Model == "dall-e-3" {
		body["style"] = style
	}

	data, err := p.postJSON(ctx, "/v1/images/generations", p.headers(), body)
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

type videoJob struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAI) generateVideo(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	body := map[string]any{
		"model":   req.Model,
		"prompt":  req.Prompt,
		"seconds": strconv.Itoa(generation.FirstInt(req.Parameters, 4, "duration", "seconds")),
	}
	if size := soraSize(req.Parameters); size != "" {
		body["size"] = size
	}

	data, err := p.postJSON(ctx, "/v1/videos", p.headers(), body)
	if err != nil {
		return nil, err
	}

	var job videoJob
	if _, err := decode(data, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, errors.New("no video id in Sora response")
	}

	for attempt := 0; attempt < p.poll.attempts; attempt++ {
		if err := p.poll.wait(ctx, attempt); err != nil {
			return nil, err
		}

		data, err := p.getJSON(ctx, "/v1/videos/"+job.ID, p.headers())
		if err != nil {
			return nil, err
		}
		meta, err := decode(data, &job)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case "completed":
			return &domain.JobResult{
				OutputURL: p.baseURL + "/v1/videos/" + job.ID + "/content",
				Metadata:  meta,
			}, nil
		case "failed":
			msg := "video generation failed"
			if job.Error != nil && job.Error.Message != "" {
				msg = job.Error.Message
			}
			return nil, fmt.Errorf("Sora generation failed: %s", msg)
		}

		p.logger.Debug("Sora generation in progress",
			slog.String("video_id", job.ID),
			slog.Int("progress", job.Progress),
		)
	}

	return nil, fmt.Errorf("video generation timed out after %d attempts", p.poll.attempts)
}

// soraSize maps an aspect ratio and resolution onto Sora's WxH sizes
func soraSize(params map[string]any) string {
	if size := generation.String(params, "size", ""); size != "" {
		return size
	}
	portrait := generation.FirstString(params, "16:9", "aspect_ratio", "aspectRatio") == "9:16"
	hd := generation.String(params, "resolution", "720p") == "1080p"

	switch {
	case portrait && hd:
		return "1024x1792"
	case portrait:
		return "720x1280"
	case hd:
		return "1792x1024"
	default:
		return "1280x720"
	}
}
