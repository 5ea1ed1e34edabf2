package client

import (
	"context"
	"strings"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
)

const (
	// settings naming the text provider used for enhancement
	SettingEnhanceProvider = "ai_provider"
	SettingEnhanceModel    = "ai_model"

	defaultEnhanceProvider = "anthropic"
)

// enhanceInstructions holds the system instruction per target family
var enhanceInstructions = map[Family]string{
	FamilyOpenAIImage: "Rewrite the user's idea as a single vivid image prompt for DALL-E. " +
		"Describe subject, setting, lighting, composition and style in natural sentences. " +
		"Reply with the prompt only.",
	FamilyGoogleImage: "Rewrite the user's idea as a detailed Imagen prompt. Lead with the subject, " +
		"then camera, lighting and mood. Reply with the prompt only.",
	FamilyStableDiffusion: "Rewrite the user's idea as a Stable Diffusion prompt: comma-separated " +
		"tags, most important first, with quality tags at the end. Reply with the prompt only.",
	FamilyComfyUI: "Rewrite the user's idea as a Stable Diffusion prompt for a ComfyUI workflow: " +
		"comma-separated tags, most important first. Reply with the prompt only.",
	FamilyVideo: "Rewrite the user's idea as a prompt for a short video clip. Describe the shot, " +
		"the camera movement, the action over time and the audio. Reply with the prompt only.",
}

// EnhanceRequest asks for a better prompt for the target provider and model
type EnhanceRequest struct {
	Prompt         string
	TargetProvider string
	TargetModel    string
}

// Enhance rewrites a prompt through the configured text provider. On failure
// the classified message becomes the state's last error.
func Enhance(ctx context.Context, state *State, req EnhanceRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		state.SetError(ErrEmptyPrompt.Error())
		return "", ErrEmptyPrompt
	}

	bridge, err := state.Bridge()
	if err != nil {
		state.SetError(err.Error())
		return "", err
	}

	provider, ok, err := state.Setting(ctx, SettingEnhanceProvider)
	if err != nil || !ok || provider == "" {
		provider = defaultEnhanceProvider
	}
	model, _, _ := state.Setting(ctx, SettingEnhanceModel)

	text, err := bridge.Complete(ctx, dto.CompleteRequest{
		Provider: provider,
		Model:    model,
		Prompt:   req.Prompt,
		System:   enhanceInstructions[FamilyFor(req.TargetProvider, req.TargetModel)],
	})
	if err != nil {
		state.SetError(Classify(err, provider).String())
		return "", err
	}

	state.ClearError()
	return strings.TrimSpace(text), nil
}
