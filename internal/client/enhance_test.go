package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhance(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to anthropic with the family wording", func(t *testing.T) {
		bridge := newFakeBridge()
		bridge.completion = "  a weathered lighthouse at dusk, volumetric fog \n"
		state := NewState(bridge, nil)

		text, err := Enhance(ctx, state, EnhanceRequest{Prompt: "lighthouse", TargetProvider: "a1111", TargetModel: "sd_xl"})
		require.NoError(t, err)
		assert.Equal(t, "a weathered lighthouse at dusk, volumetric fog", text)

		require.Len(t, bridge.completions, 1)
		req := bridge.completions[0]
		assert.Equal(t, "anthropic", req.Provider)
		assert.Equal(t, "lighthouse", req.Prompt)
		assert.Equal(t, enhanceInstructions[FamilyStableDiffusion], req.System)
	})

	t.Run("uses the configured provider", func(t *testing.T) {
		bridge := newFakeBridge()
		bridge.completion = "ok"
		bridge.settings[SettingEnhanceProvider] = "openai"
		bridge.settings[SettingEnhanceModel] = "gpt-4o"
		state := NewState(bridge, nil)

		_, err := Enhance(ctx, state, EnhanceRequest{Prompt: "waves", TargetProvider: "google", TargetModel: "veo-3.0-generate-001"})
		require.NoError(t, err)

		req := bridge.completions[0]
		assert.Equal(t, "openai", req.Provider)
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, enhanceInstructions[FamilyVideo], req.System)
	})

	t.Run("empty prompt", func(t *testing.T) {
		bridge := newFakeBridge()
		state := NewState(bridge, nil)
		_, err := Enhance(ctx, state, EnhanceRequest{Prompt: " "})
		assert.ErrorIs(t, err, ErrEmptyPrompt)
		assert.Empty(t, bridge.completions)
	})

	t.Run("failure is classified", func(t *testing.T) {
		bridge := newFakeBridge()
		bridge.completeErr = errors.New("Anthropic API error (429 Too Many Requests): rate limit")
		state := NewState(bridge, nil)

		_, err := Enhance(ctx, state, EnhanceRequest{Prompt: "a cat", TargetProvider: "openai", TargetModel: "dall-e-3"})
		require.Error(t, err)
		assert.Contains(t, state.LastError(), "quota")
	})
}

func TestEnhanceInstructions_CoverEveryFamily(t *testing.T) {
	for family := range paramBuilders {
		assert.NotEmpty(t, enhanceInstructions[family], family)
	}
}
