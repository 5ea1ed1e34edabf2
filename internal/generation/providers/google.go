package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// Google serves Gemini text and images, Imagen images and Veo videos through the genai SDK
type Google struct {
	base
	apiKey string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// NewGoogle creates the google provider; an empty key leaves it unavailable.
// The SDK client is created on first use.
func NewGoogle(apiKey string, opts ...Option) *Google {
	veo := pollSchedule{initial: 10 * time.Second, step: 5 * time.Second, max: 60 * time.Second, attempts: 60}
	return &Google{
		base:   newBase("google", "Google", "", veo, opts),
		apiKey: apiKey,
	}
}

func (p *Google) Available() bool { return p.apiKey != "" }

func (p *Google) sdk(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      p.apiKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPClient:  p.base.client,
			HTTPOptions: genai.HTTPOptions{BaseURL: p.baseURL},
		})
	})
	if p.clientErr != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", p.clientErr)
	}
	return p.client, nil
}

func (p *Google) Generate(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	if !p.Available() {
		return nil, fmt.Errorf("Google API key not configured: %w", generation.ErrNotConfigured)
	}

	client, err := p.sdk(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(req.Model, "veo"):
		return p.generateVideo(ctx, client, req)
	case strings.HasPrefix(req.Model, "imagen"):
		return p.generateImage(ctx, client, req)
	case strings.HasPrefix(req.Model, "gemini") && strings.Contains(req.Model, "image"):
		return p.generateGeminiImage(ctx, client, req)
	case strings.HasPrefix(req.Model, "gemini"):
		return p.generateText(ctx, client, req)
	default:
		return nil, fmt.Errorf("unsupported Google model: %s", req.Model)
	}
}

func (p *Google) generateText(ctx context.Context, client *genai.Client, req generation.Request) (*domain.JobResult, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(generation.Float(req.Parameters, "temperature", 1.0))),
		MaxOutputTokens: int32(generation.Int(req.Parameters, "max_tokens", 4096)),
	}
	if system := generation.String(req.Parameters, "system", ""); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("Gemini request failed: %w", err)
	}

	meta := map[string]any{"model": req.Model}
	if resp.UsageMetadata != nil {
		meta["usage"] = map[string]any{
			"prompt_tokens":     resp.UsageMetadata.PromptTokenCount,
			"completion_tokens": resp.UsageMetadata.CandidatesTokenCount,
			"total_tokens":      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return &domain.JobResult{OutputData: resp.Text(), Metadata: meta}, nil
}

// generateGeminiImage asks a Gemini image model for inline image output. A
// reference image is sent as a second part of the user turn.
func (p *Google) generateGeminiImage(ctx context.Context, client *genai.Client, req generation.Request) (*domain.JobResult, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if ref, ok := generation.ExtractReferenceImage(req.Parameters); ok {
		raw, err := ref.Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to decode reference image: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(raw, ref.MIMEType))
	}

	config := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini image request failed: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &domain.JobResult{
				OutputData: base64.StdEncoding.EncodeToString(part.InlineData.Data),
				Metadata: map[string]any{
					"model":     req.Model,
					"mime_type": mimeType,
					"text":      resp.Text(),
				},
			}, nil
		}
	}
	return nil, errors.New("no image in Gemini response")
}

func (p *Google) generateImage(ctx context.Context, client *genai.Client, req generation.Request) (*domain.JobResult, error) {
	params := req.Parameters
	config := &genai.GenerateImagesConfig{
		NumberOfImages: int32(generation.FirstInt(params, 1, "number_of_images", "n")),
		AspectRatio:    generation.FirstString(params, "", "aspect_ratio", "aspectRatio"),
		NegativePrompt: generation.String(params, "negative_prompt", ""),
		ImageSize:      generation.String(params, "image_size", ""),
		OutputMIMEType: generation.String(params, "output_mime_type", ""),
	}

	resp, err := client.Models.GenerateImages(ctx, req.Model, req.Prompt, config)
	if err != nil {
		return nil, fmt.Errorf("Imagen request failed: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, errors.New("no images in Imagen response")
	}

	img := resp.GeneratedImages[0]
	mimeType := img.Image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}

	return &domain.JobResult{
		OutputData: base64.StdEncoding.EncodeToString(img.Image.ImageBytes),
		Metadata: map[string]any{
			"model":        req.Model,
			"mime_type":    mimeType,
			"image_count":  len(resp.GeneratedImages),
			"rai_filtered": img.RAIFilteredReason,
		},
	}, nil
}

func (p *Google) generateVideo(ctx context.Context, client *genai.Client, req generation.Request) (*domain.JobResult, error) {
	params := req.Parameters
	config := &genai.GenerateVideosConfig{
		NumberOfVideos:  1,
		DurationSeconds: genai.Ptr(int32(generation.FirstInt(params, 8, "duration", "duration_seconds"))),
		AspectRatio:     generation.FirstString(params, "16:9", "aspect_ratio", "aspectRatio"),
		Resolution:      generation.String(params, "resolution", ""),
		NegativePrompt:  generation.String(params, "negative_prompt", ""),
	}

	var image *genai.Image
	if ref, ok := generation.ExtractReferenceImage(params); ok {
		raw, err := ref.Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to decode reference image: %w", err)
		}
		image = &genai.Image{ImageBytes: raw, MIMEType: ref.MIMEType}
	}

	op, err := client.Models.GenerateVideos(ctx, req.Model, req.Prompt, image, config)
	if err != nil {
		return nil, fmt.Errorf("Veo request failed: %w", err)
	}

	op, err = p.waitForVideo(ctx, op, func(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
		return client.Operations.GetVideosOperation(ctx, op, nil)
	})
	if err != nil {
		return nil, err
	}

	return videoResult(req.Model, op)
}

type videoOperationGetter func(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)

// waitForVideo refreshes op on the poll schedule until the operation is done
func (p *Google) waitForVideo(ctx context.Context, op *genai.GenerateVideosOperation, get videoOperationGetter) (*genai.GenerateVideosOperation, error) {
	for attempt := 0; !op.Done; attempt++ {
		if attempt >= p.poll.attempts {
			return nil, fmt.Errorf("video generation timed out after %d attempts", p.poll.attempts)
		}
		if err := p.poll.wait(ctx, attempt); err != nil {
			return nil, err
		}

		next, err := get(ctx, op)
		if err != nil {
			return nil, fmt.Errorf("failed to poll Veo operation: %w", err)
		}
		op = next

		p.logger.Debug("Veo generation in progress",
			slog.String("operation", op.Name),
			slog.Int("attempt", attempt+1),
			slog.Bool("done", op.Done),
		)
	}
	return op, nil
}

func videoResult(model string, op *genai.GenerateVideosOperation) (*domain.JobResult, error) {
	if len(op.Error) > 0 {
		msg, _ := op.Error["message"].(string)
		if msg == "" {
			msg = fmt.Sprint(op.Error)
		}
		return nil, fmt.Errorf("Veo generation failed: %s", msg)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return nil, errors.New("no video in Veo response")
	}

	video := op.Response.GeneratedVideos[0].Video
	result := &domain.JobResult{
		OutputURL: video.URI,
		Metadata: map[string]any{
			"model":     model,
			"operation": op.Name,
			"mime_type": video.MIMEType,
		},
	}
	if len(video.VideoBytes) > 0 {
		result.OutputData = base64.StdEncoding.EncodeToString(video.VideoBytes)
	}
	return result, nil
}
