package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/domain"
)

// ErrEmptyPrompt is the only validation done before submitting
var ErrEmptyPrompt = errors.New("please enter a prompt")

// Family groups providers that take the same parameters
type Family string

const (
	FamilyOpenAIImage     Family = "openai-image"
	FamilyGoogleImage     Family = "google-image"
	FamilyStableDiffusion Family = "stable-diffusion"
	FamilyComfyUI         Family = "comfyui"
	FamilyVideo           Family = "video"
)

// Options are the generation controls. Each family reads the ones it uses.
type Options struct {
	// OpenAI-style
	Size    string
	Quality string
	Style   string
	N       int

	// Google-style
	AspectRatio string
	ImageSize   string

	// Stable Diffusion
	Steps    int
	CFGScale float64
	Width    int
	Height   int
	Sampler  string

	// Video; Duration is a label such as "8s" or "8 seconds"
	Duration   string
	Resolution string

	// ReferenceImage is a data URL or http(s) URL
	ReferenceImage string
}

type paramBuilder func(slot Slot, opts Options) (map[string]any, error)

var paramBuilders = map[Family]paramBuilder{
	FamilyOpenAIImage: func(_ Slot, o Options) (map[string]any, error) {
		return map[string]any{
			"size":    or(o.Size, "1024x1024"),
			"quality": or(o.Quality, "standard"),
			"style":   or(o.Style, "vivid"),
			"n":       orInt(o.N, 1),
		}, nil
	},
	FamilyGoogleImage: func(_ Slot, o Options) (map[string]any, error) {
		return map[string]any{
			"aspect_ratio": or(o.AspectRatio, "1:1"),
			"image_size":   or(o.ImageSize, "1K"),
			"n":            orInt(o.N, 1),
		}, nil
	},
	FamilyStableDiffusion: func(s Slot, o Options) (map[string]any, error) {
		cfg := o.CFGScale
		if cfg <= 0 {
			cfg = 7
		}
		return map[string]any{
			"prompt":          s.Text(),
			"negative_prompt": s.Negative,
			"steps":           orInt(o.Steps, 20),
			"cfg_scale":       cfg,
			"width":           orInt(o.Width, 512),
			"height":          orInt(o.Height, 512),
			"sampler_name":    or(o.Sampler, "Euler a"),
		}, nil
	},
	FamilyComfyUI: func(s Slot, _ Options) (map[string]any, error) {
		nodes := s.Nodes
		if nodes == nil {
			nodes = []map[string]any{}
		}
		return map[string]any{
			"nodes":  nodes,
			"prompt": s.Text(),
		}, nil
	},
	FamilyVideo: func(_ Slot, o Options) (map[string]any, error) {
		duration := 8
		if o.Duration != "" {
			d, err := ParseDuration(o.Duration)
			if err != nil {
				return nil, err
			}
			duration = d
		}
		return map[string]any{
			"duration":     duration,
			"aspect_ratio": or(o.AspectRatio, "16:9"),
			"resolution":   or(o.Resolution, "720p"),
		}, nil
	},
}

// FamilyFor picks the parameter family of a provider and model
func FamilyFor(provider, model string) Family {
	if CategoryForModel(model) == domain.CategoryVideo {
		return FamilyVideo
	}
	switch provider {
	case "google":
		return FamilyGoogleImage
	case "a1111", "invokeai":
		return FamilyStableDiffusion
	case "comfyui":
		return FamilyComfyUI
	default:
		return FamilyOpenAIImage
	}
}

// BuildParameters assembles the provider parameters for family
func BuildParameters(family Family, slot Slot, opts Options) (map[string]any, error) {
	build, ok := paramBuilders[family]
	if !ok {
		return nil, fmt.Errorf("unknown provider family: %s", family)
	}
	params, err := build(slot, opts)
	if err != nil {
		return nil, err
	}
	if opts.ReferenceImage != "" {
		params["reference_image"] = map[string]any{"data": opts.ReferenceImage}
	}
	return params, nil
}

// ParseDuration reads the seconds out of a label like "8s", "8 seconds" or "8"
func ParseDuration(label string) (int, error) {
	label = strings.TrimSpace(label)
	end := strings.IndexFunc(label, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(label)
	}
	seconds, err := strconv.Atoi(label[:end])
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid duration: %q", label)
	}
	return seconds, nil
}

// Submission is one generation request built from the current state
type Submission struct {
	Provider string
	Model    string
	Slot     Slot
	Options  Options
	SceneID  string
	Metadata domain.RecordMetadata
}

// Submit validates the prompt, builds the parameters and hands the job to
// the bridge. Failures are also recorded as the state's last error.
func Submit(ctx context.Context, state *State, sub Submission) (*domain.Job, error) {
	if strings.TrimSpace(sub.Slot.Main) == "" {
		state.SetError(ErrEmptyPrompt.Error())
		return nil, ErrEmptyPrompt
	}
	prompt := sub.Slot.Text()

	bridge, err := state.Bridge()
	if err != nil {
		state.SetError(err.Error())
		return nil, err
	}

	params, err := BuildParameters(FamilyFor(sub.Provider, sub.Model), sub.Slot, sub.Options)
	if err != nil {
		state.SetError(err.Error())
		return nil, err
	}

	job, err := bridge.SubmitGeneration(ctx, dto.GenerationRequest{
		WorkflowID:     state.WorkflowID,
		SceneID:        sub.SceneID,
		Provider:       sub.Provider,
		Model:          sub.Model,
		Category:       CategoryForModel(sub.Model),
		Prompt:         prompt,
		NegativePrompt: sub.Slot.Negative,
		Parameters:     params,
		Metadata:       sub.Metadata,
	})
	if err != nil {
		state.SetError(Classify(err, sub.Provider).String())
		return nil, err
	}

	state.ClearError()
	return job, nil
}

// Retry submits job's parameters again as a new job
func Retry(ctx context.Context, state *State, job domain.Job) (*domain.Job, error) {
	bridge, err := state.Bridge()
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(job.Data.Parameters))
	for k, v := range job.Data.Parameters {
		params[k] = v
	}

	retried, err := bridge.SubmitGeneration(ctx, dto.GenerationRequest{
		WorkflowID:     job.WorkflowID,
		SceneID:        job.SceneID,
		Provider:       job.Data.Provider,
		Model:          job.Data.Model,
		Category:       job.Data.Category,
		Prompt:         job.Data.Prompt,
		NegativePrompt: job.Data.NegativePrompt,
		Parameters:     params,
		Metadata:       job.Data.Metadata,
	})
	if err != nil {
		state.SetError(Classify(err, job.Data.Provider).String())
		return nil, err
	}
	state.ClearError()
	return retried, nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
