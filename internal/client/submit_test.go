package client

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

func TestFamilyFor(t *testing.T) {
	tests := []struct {
		provider, model string
		want            Family
	}{
		{"openai", "dall-e-3", FamilyOpenAIImage},
		{"openai", "sora-2-pro", FamilyVideo},
		{"google", "imagen-4.0-generate-001", FamilyGoogleImage},
		{"google", "veo-3.1-generate-preview", FamilyVideo},
		{"grok", "grok-2-image", FamilyOpenAIImage},
		{"a1111", "sd_xl_base_1.0", FamilyStableDiffusion},
		{"invokeai", "juggernaut", FamilyStableDiffusion},
		{"comfyui", "default", FamilyComfyUI},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, FamilyFor(tt.provider, tt.model))
		})
	}
}

func TestBuildParameters(t *testing.T) {
	slot := Slot{
		Main:      "a castle",
		Negative:  "blurry",
		Modifiers: []string{"dramatic sky"},
		Nodes:     []map[string]any{{"id": "1", "type": "KSampler"}},
	}

	tests := []struct {
		name   string
		family Family
		opts   Options
		want   map[string]any
	}{
		{
			name:   "openai defaults",
			family: FamilyOpenAIImage,
			want:   map[string]any{"size": "1024x1024", "quality": "standard", "style": "vivid", "n": 1},
		},
		{
			name:   "openai explicit",
			family: FamilyOpenAIImage,
			opts:   Options{Size: "1792x1024", Quality: "hd", Style: "natural", N: 2},
			want:   map[string]any{"size": "1792x1024", "quality": "hd", "style": "natural", "n": 2},
		},
		{
			name:   "google",
			family: FamilyGoogleImage,
			opts:   Options{AspectRatio: "16:9", N: 4},
			want:   map[string]any{"aspect_ratio": "16:9", "image_size": "1K", "n": 4},
		},
		{
			name:   "stable diffusion",
			family: FamilyStableDiffusion,
			opts:   Options{Steps: 30, CFGScale: 5.5, Width: 768, Height: 1024, Sampler: "DPM++ 2M"},
			want: map[string]any{
				"prompt":          "a castle, dramatic sky",
				"negative_prompt": "blurry",
				"steps":           30,
				"cfg_scale":       5.5,
				"width":           768,
				"height":          1024,
				"sampler_name":    "DPM++ 2M",
			},
		},
		{
			name:   "comfyui",
			family: FamilyComfyUI,
			want: map[string]any{
				"nodes":  []map[string]any{{"id": "1", "type": "KSampler"}},
				"prompt": "a castle, dramatic sky",
			},
		},
		{
			name:   "video with label",
			family: FamilyVideo,
			opts:   Options{Duration: "4 seconds", Resolution: "1080p", ReferenceImage: "data:image/png;base64,AAAA"},
			want: map[string]any{
				"duration":        4,
				"aspect_ratio":    "16:9",
				"resolution":      "1080p",
				"reference_image": map[string]any{"data": "data:image/png;base64,AAAA"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildParameters(tt.family, slot, tt.opts)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parameters mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := BuildParameters("midi", slot, Options{})
	assert.Error(t, err)

	_, err = BuildParameters(FamilyVideo, slot, Options{Duration: "long"})
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		label   string
		want    int
		wantErr bool
	}{
		{"8s", 8, false},
		{"8 seconds", 8, false},
		{" 12 ", 12, false},
		{"5", 5, false},
		{"s", 0, true},
		{"0s", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseDuration(tt.label)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("empty prompt never reaches the bridge", func(t *testing.T) {
		bridge := newFakeBridge()
		state := NewState(bridge, nil)

		job, err := Submit(ctx, state, Submission{Provider: "openai", Model: "dall-e-3", Slot: Slot{Main: "   ", Modifiers: []string{"bokeh"}}})
		assert.ErrorIs(t, err, ErrEmptyPrompt)
		assert.Nil(t, job)
		assert.Equal(t, "please enter a prompt", state.LastError())
		assert.Empty(t, bridge.generations)
	})

	t.Run("web mode", func(t *testing.T) {
		state := NewState(nil, nil)
		_, err := Submit(ctx, state, Submission{Provider: "openai", Model: "dall-e-3", Slot: Slot{Main: "a cat"}})
		assert.ErrorIs(t, err, ErrBridgeUnavailable)
	})

	t.Run("submits the built request", func(t *testing.T) {
		bridge := newFakeBridge()
		state := NewState(bridge, nil)
		state.WorkflowID = "wf-1"
		state.SetError("stale")

		job, err := Submit(ctx, state, Submission{
			Provider: "google",
			Model:    "veo-3.1-generate-preview",
			Slot:     Slot{Main: "a wave", Negative: "people", Modifiers: []string{"drone shot"}},
			Options:  Options{Duration: "6s", AspectRatio: "9:16"},
			Metadata: domain.RecordMetadata{VariationOf: "job-0", SequenceID: "seq", SequenceOrder: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusPending, job.Status)
		assert.Empty(t, state.LastError())

		require.Len(t, bridge.generations, 1)
		req := bridge.generations[0]
		assert.Equal(t, "wf-1", req.WorkflowID)
		assert.Equal(t, "a wave, drone shot", req.Prompt)
		assert.Equal(t, "people", req.NegativePrompt)
		assert.Equal(t, domain.CategoryVideo, req.Category)
		assert.Equal(t, "job-0", req.Metadata.VariationOf)
		assert.Equal(t, map[string]any{"duration": 6, "aspect_ratio": "9:16", "resolution": "720p"}, req.Parameters)
	})

	t.Run("bridge failure is classified", func(t *testing.T) {
		bridge := newFakeBridge()
		bridge.submitErr = errors.New("OpenAI API error (401 Unauthorized): bad key")
		state := NewState(bridge, nil)

		_, err := Submit(ctx, state, Submission{Provider: "openai", Model: "dall-e-3", Slot: Slot{Main: "a cat"}})
		require.Error(t, err)
		assert.Contains(t, state.LastError(), "Authentication failed")
	})
}

func TestRetry(t *testing.T) {
	bridge := newFakeBridge()
	state := NewState(bridge, nil)

	failed := domain.Job{
		ID:         "job-1",
		WorkflowID: "wf-1",
		SceneID:    "scene-1",
		Status:     domain.JobStatusFailed,
		Error:      "timeout",
		Data: domain.JobData{
			Provider:       "a1111",
			Model:          "sd_xl",
			Category:       domain.CategoryImage,
			Prompt:         "a castle",
			NegativePrompt: "blurry",
			Parameters:     map[string]any{"steps": 20},
			Metadata:       domain.RecordMetadata{Tags: []string{"keep"}},
		},
	}

	job, err := Retry(context.Background(), state, failed)
	require.NoError(t, err)
	assert.NotEqual(t, failed.ID, job.ID)

	require.Len(t, bridge.generations, 1)
	req := bridge.generations[0]
	assert.Equal(t, "wf-1", req.WorkflowID)
	assert.Equal(t, "scene-1", req.SceneID)
	assert.Equal(t, "a1111", req.Provider)
	assert.Equal(t, "a castle", req.Prompt)
	assert.Equal(t, "blurry", req.NegativePrompt)
	assert.Equal(t, map[string]any{"steps": 20}, req.Parameters)
	assert.Equal(t, []string{"keep"}, req.Metadata.Tags)

	// the copy is independent of the original job
	req.Parameters["steps"] = 40
	assert.Equal(t, 20, failed.Data.Parameters["steps"])

	_, err = Retry(context.Background(), NewState(nil, nil), failed)
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
}

func TestRetry_ErrorLifecycle(t *testing.T) {
	bridge := newFakeBridge()
	state := NewState(bridge, nil)
	failed := domain.Job{
		ID:     "job-1",
		Status: domain.JobStatusFailed,
		Data:   domain.JobData{Provider: "openai", Model: "dall-e-3", Prompt: "a fox"},
	}

	bridge.submitErr = errors.New("dial tcp: connection refused")
	_, err := Retry(context.Background(), state, failed)
	require.Error(t, err)
	assert.NotEmpty(t, state.LastError())

	bridge.submitErr = nil
	_, err = Retry(context.Background(), state, failed)
	require.NoError(t, err)
	assert.Empty(t, state.LastError())
}

func TestBuildParameters_ReferenceImageReadableByProviders(t *testing.T) {
	slot := Slot{Main: "a lighthouse at dusk"}
	families := []Family{FamilyOpenAIImage, FamilyGoogleImage, FamilyStableDiffusion, FamilyComfyUI, FamilyVideo}

	for _, family := range families {
		t.Run(string(family), func(t *testing.T) {
			params, err := BuildParameters(family, slot, Options{Duration: "8s", ReferenceImage: "data:image/png;base64,aGVsbG8="})
			require.NoError(t, err)

			ref, ok := generation.ExtractReferenceImage(params)
			require.True(t, ok, "reference_image: %#v", params["reference_image"])
			assert.Equal(t, "image/png", ref.MIMEType)
			raw, err := ref.Bytes()
			require.NoError(t, err)
			assert.Equal(t, []byte("hello"), raw)
		})
	}
}
