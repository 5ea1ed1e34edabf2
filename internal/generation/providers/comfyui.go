package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// ComfyUI queues a node graph and polls its history for saved images
type ComfyUI struct {
	base
}

// NewComfyUI creates the comfyui provider against apiURL, e.g. http://127.0.0.1:8188
func NewComfyUI(apiURL string, opts ...Option) *ComfyUI {
	schedule := pollSchedule{initial: time.Second, attempts: 60}
	return &ComfyUI{base: newBase("comfyui", "ComfyUI", "", schedule, append([]Option{WithBaseURL(apiURL)}, opts...))}
}

func (p *ComfyUI) Available() bool { return p.baseURL != "" }

type comfyPromptResponse struct {
	PromptID string `json:"prompt_id"`
}

type comfyHistoryEntry struct {
	Outputs map[string]struct {
		Images []struct {
			Filename  string `json:"filename"`
			Subfolder string `json:"subfolder"`
			Type      string `json:"type"`
		} `json:"images"`
	} `json:"outputs"`
}

func (p *ComfyUI) Generate(ctx context.Context, req generation.Request) (*domain.JobResult, error) {
	if !p.Available() {
		return nil, fmt.Errorf("ComfyUI API URL not configured: %w", generation.ErrNotConfigured)
	}

	graph, settings, err := p.graph(req)
	if err != nil {
		return nil, err
	}

	data, err := p.postJSON(ctx, "/prompt", nil, map[string]any{"prompt": graph})
	if err != nil {
		return nil, err
	}

	var queued comfyPromptResponse
	if _, err := decode(data, &queued); err != nil {
		return nil, err
	}
	if queued.PromptID == "" {
		return nil, errors.New("no prompt_id in response")
	}

	images, err := p.waitForImages(ctx, queued.PromptID)
	if err != nil {
		return nil, err
	}

	return &domain.JobResult{
		OutputURL: images[0],
		Metadata: map[string]any{
			"provider":   "comfyui",
			"prompt_id":  queued.PromptID,
			"images":     images,
			"parameters": settings,
		},
	}, nil
}

// graph returns the caller's node graph when one is supplied, otherwise the
// standard seven-node txt2img graph.
func (p *ComfyUI) graph(req generation.Request) (map[string]any, map[string]any, error) {
	params := req.Parameters
	if nodes, ok := params["nodes"].(map[string]any); ok && len(nodes) > 0 {
		return nodes, map[string]any{"prompt": req.Prompt, "custom_graph": true}, nil
	}

	model := checkpointName(params, req.Model)
	if model == "" {
		return nil, nil, errors.New("model checkpoint required for ComfyUI")
	}

	settings := map[string]any{
		"prompt":          req.Prompt,
		"negative_prompt": generation.String(params, "negative_prompt", ""),
		"model":           model,
		"steps":           generation.Int(params, "steps", 20),
		"cfg_scale":       generation.Float(params, "cfg_scale", 7.0),
		"width":           generation.Int(params, "width", 512),
		"height":          generation.Int(params, "height", 512),
		"sampler":         generation.FirstString(params, "euler", "sampler_name", "sampler"),
		"seed":            generation.Int(params, "seed", -1),
	}

	return txt2imgGraph(settings), settings, nil
}

func txt2imgGraph(s map[string]any) map[string]any {
	return map[string]any{
		"1": map[string]any{
			"class_type": "CheckpointLoaderSimple",
			"inputs":     map[string]any{"ckpt_name": s["model"]},
		},
		"2": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": s["prompt"], "clip": []any{"1", 1}},
		},
		"3": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": s["negative_prompt"], "clip": []any{"1", 1}},
		},
		"4": map[string]any{
			"class_type": "EmptyLatentImage",
			"inputs":     map[string]any{"width": s["width"], "height": s["height"], "batch_size": 1},
		},
		"5": map[string]any{
			"class_type": "KSampler",
			"inputs": map[string]any{
				"seed":         s["seed"],
				"steps":        s["steps"],
				"cfg":          s["cfg_scale"],
				"sampler_name": s["sampler"],
				"scheduler":    "normal",
				"denoise":      1.0,
				"model":        []any{"1", 0},
				"positive":     []any{"2", 0},
				"negative":     []any{"3", 0},
				"latent_image": []any{"4", 0},
			},
		},
		"6": map[string]any{
			"class_type": "VAEDecode",
			"inputs":     map[string]any{"samples": []any{"5", 0}, "vae": []any{"1", 2}},
		},
		"7": map[string]any{
			"class_type": "SaveImage",
			"inputs":     map[string]any{"filename_prefix": "ComfyUI", "images": []any{"6", 0}},
		},
	}
}

// waitForImages polls /history/{id} until an output node lists saved images.
// Non-2xx history responses are treated as not ready yet.
func (p *ComfyUI) waitForImages(ctx context.Context, promptID string) ([]string, error) {
	for attempt := 0; attempt < p.poll.attempts; attempt++ {
		// fixed interval
		if err := p.poll.wait(ctx, 0); err != nil {
			return nil, err
		}

		data, err := p.getJSON(ctx, "/history/"+url.PathEscape(promptID), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Debug("ComfyUI history not ready",
				slog.String("prompt_id", promptID),
				slog.Any("error", err),
			)
			continue
		}

		var history map[string]comfyHistoryEntry
		if _, err := decode(data, &history); err != nil {
			return nil, err
		}

		entry, ok := history[promptID]
		if !ok {
			continue
		}

		if urls := p.imageURLs(entry); len(urls) > 0 {
			return urls, nil
		}
	}

	return nil, errors.New("timeout waiting for generation")
}

// imageURLs lists /view URLs for every saved image, SaveImage node "7" first
func (p *ComfyUI) imageURLs(entry comfyHistoryEntry) []string {
	nodeIDs := make([]string, 0, len(entry.Outputs))
	for id := range entry.Outputs {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool {
		if nodeIDs[i] == "7" || nodeIDs[j] == "7" {
			return nodeIDs[i] == "7"
		}
		return nodeIDs[i] < nodeIDs[j]
	})

	var urls []string
	for _, id := range nodeIDs {
		for _, img := range entry.Outputs[id].Images {
			kind := img.Type
			if kind == "" {
				kind = "output"
			}
			q := url.Values{}
			q.Set("filename", img.Filename)
			q.Set("subfolder", img.Subfolder)
			q.Set("type", kind)
			urls = append(urls, p.baseURL+"/view?"+q.Encode())
		}
	}
	return urls
}
