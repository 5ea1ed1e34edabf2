package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/cuongbtq/promptcraft/internal/generation"
	"github.com/cuongbtq/promptcraft/shared/logger"
)

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func fastPolling() Option {
	return WithPolling(time.Millisecond, 0, 0, 5)
}

func TestProviders_NotConfigured(t *testing.T) {
	tests := []struct {
		name     string
		provider generation.Provider
	}{
		{"openai", NewOpenAI("")},
		{"grok", NewGrok("")},
		{"anthropic", NewAnthropic("")},
		{"google", NewGoogle("")},
		{"a1111", NewA1111("")},
		{"comfyui", NewComfyUI("")},
		{"invokeai", NewInvokeAI("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.provider.Available())
			assert.Equal(t, tt.name, tt.provider.Name())

			_, err := tt.provider.Generate(context.Background(), generation.Request{Prompt: "x", Model: "m", Parameters: map[string]any{}})
			assert.ErrorIs(t, err, generation.ErrNotConfigured)
		})
	}
}

func TestOpenAI_Image(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body := readBody(t, r)
		assert.Equal(t, "dall-e-3", body["model"])
		assert.Equal(t, "a red fox", body["prompt"])
		assert.Equal(t, "1024x1024", body["size"])
		assert.Equal(t, "vivid", body["style"])

		writeJSON(w, map[string]any{"data": []map[string]any{{"url": "https://img/fox.png"}}})
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithBaseURL(srv.URL))
	result, err := p.Generate(context.Background(), generation.Request{
		Prompt:     "a red fox",
		Model:      "dall-e-3",
		Parameters: map[string]any{"style": "vivid"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://img/fox.png", result.OutputURL)
}

func TestOpenAI_GPTImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)

		body := readBody(t, r)
		assert.Equal(t, "gpt-image-1", body["model"])
		assert.Equal(t, "auto", body["quality"])
		assert.NotContains(t, body, "style")

		writeJSON(w, map[string]any{"data": []map[string]any{{"b64_json": "aGVsbG8="}}})
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithBaseURL(srv.URL))
	result, err := p.Generate(context.Background(), generation.Request{
		Prompt:     "a paper crane",
		Model:      "gpt-image-1",
		Parameters: map[string]any{"quality": "standard", "style": "vivid"},
	})
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", result.OutputData)
}

func TestGPTImageQuality(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "auto"},
		{"standard", "auto"},
		{"hd", "high"},
		{"medium", "medium"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gptImageQuality(tt.in), tt.in)
	}
}

func TestOpenAI_UnsupportedModel(t *testing.T) {
	p := NewOpenAI("sk-test", WithBaseURL("http://127.0.0.1:1"))
	_, err := p.Generate(context.Background(), generation.Request{Model: "whisper-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported OpenAI model")
}

func TestOpenAI_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), generation.Request{Model: "gpt-4o", Prompt: "hi", Parameters: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OpenAI API error (429")
}

func TestOpenAI_SoraPollsUntilComplete(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/videos":
			body := readBody(t, r)
			assert.Equal(t, "8", body["seconds"])
			assert.Equal(t, "720x1280", body["size"])
			writeJSON(w, map[string]any{"id": "vid_1", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/videos/vid_1":
			status := "in_progress"
			if polls.Add(1) >= 2 {
				status = "completed"
			}
			writeJSON(w, map[string]any{"id": "vid_1", "status": status})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithBaseURL(srv.URL), fastPolling())
	result, err := p.Generate(context.Background(), generation.Request{
		Model:      "sora-2",
		Prompt:     "waves",
		Parameters: map[string]any{"duration": 8.0, "aspect_ratio": "9:16"},
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/v1/videos/vid_1/content", result.OutputURL)
	assert.EqualValues(t, 2, polls.Load())
}

func TestOpenAI_SoraFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			writeJSON(w, map[string]any{"id": "vid_2", "status": "queued"})
			return
		}
		writeJSON(w, map[string]any{"id": "vid_2", "status": "failed", "error": map[string]any{"message": "moderation"}})
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithBaseURL(srv.URL), fastPolling())
	_, err := p.Generate(context.Background(), generation.Request{Model: "sora-2", Prompt: "x", Parameters: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moderation")
}

func TestSoraSize(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"default landscape", map[string]any{}, "1280x720"},
		{"portrait", map[string]any{"aspect_ratio": "9:16"}, "720x1280"},
		{"landscape hd", map[string]any{"resolution": "1080p"}, "1792x1024"},
		{"portrait hd", map[string]any{"aspectRatio": "9:16", "resolution": "1080p"}, "1024x1792"},
		{"explicit size", map[string]any{"size": "480x480"}, "480x480"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, soraSize(tt.params))
		})
	}
}

func TestGrok_ImageAliases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		body := readBody(t, r)
		assert.Equal(t, "grok-2-image", body["model"])
		assert.EqualValues(t, 10, body["n"])
		assert.Equal(t, "url", body["response_format"])
		writeJSON(w, map[string]any{"data": []map[string]any{{"url": "https://x.ai/1.png"}}})
	}))
	defer srv.Close()

	p := NewGrok("xai-key", WithBaseURL(srv.URL))
	for _, model := range []string{"aurora", "grok-image", "flux"} {
		result, err := p.Generate(context.Background(), generation.Request{
			Model:      model,
			Prompt:     "city",
			Parameters: map[string]any{"n": 42.0},
		})
		require.NoError(t, err, model)
		assert.Equal(t, "https://x.ai/1.png", result.OutputURL)
	}
}

func TestGrok_ChatDefaultsModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body := readBody(t, r)
		assert.Equal(t, "grok-3", body["model"])
		assert.EqualValues(t, 4096, body["max_tokens"])
		writeJSON(w, map[string]any{"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "enhanced"}}}})
	}))
	defer srv.Close()

	p := NewGrok("xai-key", WithBaseURL(srv.URL))
	result, err := p.Generate(context.Background(), generation.Request{Model: "default", Prompt: "improve", Parameters: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "enhanced", result.OutputData)
}

func TestAnthropic_Messages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		writeJSON(w, map[string]any{
			"id": "msg_1",
			"content": []map[string]any{
				{"type": "text", "text": "Hello "},
				{"type": "text", "text": "world"},
			},
		})
	}))
	defer srv.Close()

	p := NewAnthropic("ak", WithBaseURL(srv.URL))
	result, err := p.Generate(context.Background(), generation.Request{Model: "claude-sonnet-4", Prompt: "hi", Parameters: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", result.OutputData)
}

func TestA1111_Routes(t *testing.T) {
	tests := []struct {
		name     string
		params   map[string]any
		wantPath string
	}{
		{
			name:     "txt2img",
			params:   map[string]any{"steps": 30.0},
			wantPath: "/sdapi/v1/txt2img",
		},
		{
			name: "img2img with reference",
			params: map[string]any{
				"reference_image": map[string]any{"data": "data:image/png;base64,aGVsbG8=", "resizeMode": "fill"},
			},
			wantPath: "/sdapi/v1/img2img",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				body := readBody(t, r)
				assert.Equal(t, "Euler a", body["sampler_name"])
				assert.Equal(t, map[string]any{"sd_model_checkpoint": "sdxl.safetensors"}, body["override_settings"])
				if tt.wantPath == "/sdapi/v1/img2img" {
					assert.Equal(t, []any{"aGVsbG8="}, body["init_images"])
				}
				writeJSON(w, map[string]any{"images": []string{"iVBORw0"}, "info": "{}"})
			}))
			defer srv.Close()

			p := NewA1111(srv.URL)
			result, err := p.Generate(context.Background(), generation.Request{Model: "sdxl.safetensors", Prompt: "castle", Parameters: tt.params})
			require.NoError(t, err)
			assert.Equal(t, "iVBORw0", result.OutputData)
			assert.Equal(t, "{}", result.Metadata["info"])
		})
	}
}

func TestA1111_NoImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"images": []string{}})
	}))
	defer srv.Close()

	_, err := NewA1111(srv.URL).Generate(context.Background(), generation.Request{Prompt: "x", Parameters: map[string]any{}})
	require.Error(t, err)
}

func TestComfyUI_QueueAndPoll(t *testing.T) {
	var historyCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prompt":
			body := readBody(t, r)
			graph := body["prompt"].(map[string]any)
			assert.Len(t, graph, 7)
			loader := graph["1"].(map[string]any)["inputs"].(map[string]any)
			assert.Equal(t, "v15.ckpt", loader["ckpt_name"])
			writeJSON(w, map[string]any{"prompt_id": "p-1"})
		case "/history/p-1":
			if historyCalls.Add(1) == 1 {
				writeJSON(w, map[string]any{})
				return
			}
			writeJSON(w, map[string]any{
				"p-1": map[string]any{
					"outputs": map[string]any{
						"7": map[string]any{"images": []map[string]any{{"filename": "out_0001.png", "subfolder": "", "type": "output"}}},
					},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewComfyUI(srv.URL, fastPolling())
	result, err := p.Generate(context.Background(), generation.Request{
		Prompt:     "forest",
		Parameters: map[string]any{"model": "v15.ckpt"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.OutputURL, srv.URL+"/view?"))
	assert.Contains(t, result.OutputURL, "filename=out_0001.png")
	assert.Contains(t, result.OutputURL, "type=output")
	assert.EqualValues(t, 2, historyCalls.Load())
}

func TestComfyUI_RequiresCheckpoint(t *testing.T) {
	p := NewComfyUI("http://127.0.0.1:1")
	_, err := p.Generate(context.Background(), generation.Request{Prompt: "x", Model: "default", Parameters: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint required")
}

func TestComfyUI_TimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/prompt" {
			writeJSON(w, map[string]any{"prompt_id": "p-2"})
			return
		}
		writeJSON(w, map[string]any{})
	}))
	defer srv.Close()

	p := NewComfyUI(srv.URL, fastPolling())
	_, err := p.Generate(context.Background(), generation.Request{Prompt: "x", Parameters: map[string]any{"model": "a.ckpt"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestInvokeAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/generate", r.URL.Path)
		body := readBody(t, r)
		assert.Equal(t, "euler", body["scheduler"])
		writeJSON(w, map[string]any{"image": map[string]any{"url": "http://invoke/1.png"}})
	}))
	defer srv.Close()

	p := NewInvokeAI(srv.URL)
	result, err := p.Generate(context.Background(), generation.Request{Model: "sd-1.5", Prompt: "x", Parameters: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "http://invoke/1.png", result.OutputURL)

	_, err = p.Generate(context.Background(), generation.Request{Prompt: "x", Parameters: map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model required")
}

func TestMidjourney(t *testing.T) {
	_, err := Midjourney{}.Generate(context.Background(), generation.Request{})
	assert.ErrorIs(t, err, ErrMidjourneyUnsupported)
}

func TestGoogle_GeminiText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "gk", r.Header.Get("x-goog-api-key"))
		writeJSON(w, map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": "a misty valley"}}}},
			},
		})
	}))
	defer srv.Close()

	p := NewGoogle("gk", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	result, err := p.Generate(context.Background(), generation.Request{Model: "gemini-2.0-flash", Prompt: "describe", Parameters: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "a misty valley", result.OutputData)
}

func TestGoogle_GeminiImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash-image:generateContent"), r.URL.Path)

		body := readBody(t, r)
		config, ok := body["generationConfig"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, []any{"TEXT", "IMAGE"}, config["responseModalities"])

		contents := body["contents"].([]any)
		parts := contents[0].(map[string]any)["parts"].([]any)
		require.Len(t, parts, 2)
		assert.Equal(t, "a koi pond", parts[0].(map[string]any)["text"])
		inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
		assert.Equal(t, "image/jpeg", inline["mimeType"])

		writeJSON(w, map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{
					{"text": "here it is"},
					{"inlineData": map[string]any{"mimeType": "image/png", "data": "aGVsbG8="}},
				}}},
			},
		})
	}))
	defer srv.Close()

	p := NewGoogle("gk", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	result, err := p.Generate(context.Background(), generation.Request{
		Model:  "gemini-2.5-flash-image",
		Prompt: "a koi pond",
		Parameters: map[string]any{
			"reference_image": map[string]any{"data": "data:image/jpeg;base64,QUJD"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", result.OutputData)
	assert.Equal(t, "image/png", result.Metadata["mime_type"])
}

func TestGoogle_GeminiImageWithoutImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": "I cannot draw"}}}},
			},
		})
	}))
	defer srv.Close()

	p := NewGoogle("gk", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := p.Generate(context.Background(), generation.Request{Model: "gemini-2.5-flash-image-preview", Prompt: "x", Parameters: map[string]any{}})
	assert.EqualError(t, err, "no image in Gemini response")
}

func TestGoogle_UnsupportedModel(t *testing.T) {
	p := NewGoogle("gk", WithBaseURL("http://127.0.0.1:1"))
	_, err := p.Generate(context.Background(), generation.Request{Model: "palm-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported Google model")
}

func TestGoogle_WaitForVideo(t *testing.T) {
	p := NewGoogle("gk", fastPolling())

	t.Run("completes", func(t *testing.T) {
		calls := 0
		op, err := p.waitForVideo(context.Background(), &genai.GenerateVideosOperation{Name: "ops/1"},
			func(_ context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
				calls++
				next := *op
				if calls == 3 {
					next.Done = true
					next.Response = &genai.GenerateVideosResponse{
						GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{URI: "https://veo/1.mp4", MIMEType: "video/mp4"}}},
					}
				}
				return &next, nil
			})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)

		result, err := videoResult("veo-3.0", op)
		require.NoError(t, err)
		assert.Equal(t, "https://veo/1.mp4", result.OutputURL)
	})

	t.Run("times out", func(t *testing.T) {
		_, err := p.waitForVideo(context.Background(), &genai.GenerateVideosOperation{Name: "ops/2"},
			func(_ context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
				return op, nil
			})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out after 5 attempts")
	})

	t.Run("poll error", func(t *testing.T) {
		_, err := p.waitForVideo(context.Background(), &genai.GenerateVideosOperation{Name: "ops/3"},
			func(context.Context, *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
				return nil, errors.New("boom")
			})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.waitForVideo(ctx, &genai.GenerateVideosOperation{}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestVideoResult_Error(t *testing.T) {
	_, err := videoResult("veo", &genai.GenerateVideosOperation{Done: true, Error: map[string]any{"message": "quota"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")

	_, err = videoResult("veo", &genai.GenerateVideosOperation{Done: true})
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	svc := generation.NewService(logger.NewDiscard().Logger)
	Register(svc, Config{OpenAIKey: "sk", A1111URL: "http://127.0.0.1:7860"})

	assert.Equal(t, []string{"a1111", "anthropic", "google", "grok", "midjourney", "openai"}, svc.List())

	p, ok := svc.Get("openai")
	require.True(t, ok)
	assert.True(t, p.Available())

	p, ok = svc.Get("google")
	require.True(t, ok)
	assert.False(t, p.Available())

	require.NoError(t, svc.Configure("google", "gk"))
	p, _ = svc.Get("google")
	assert.True(t, p.Available())

	require.NoError(t, svc.ConfigureLocal("comfyui", "http://127.0.0.1:8188"))
	_, ok = svc.Get("comfyui")
	assert.True(t, ok)

	err := svc.Configure("midjourney", "key")
	assert.ErrorIs(t, err, generation.ErrUnknownProvider)
}
