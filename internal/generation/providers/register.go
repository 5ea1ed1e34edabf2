package providers

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/promptcraft/internal/generation"
)

// Config carries the credentials and endpoints the registry starts with
type Config struct {
	OpenAIKey    string
	GoogleKey    string
	GrokKey      string
	AnthropicKey string

	A1111URL    string
	ComfyUIURL  string
	InvokeAIURL string

	// BaseURLs overrides cloud endpoints by provider name
	BaseURLs map[string]string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c Config) options(name string) []Option {
	return []Option{
		WithHTTPClient(c.HTTPClient),
		WithLogger(c.Logger),
		WithBaseURL(c.BaseURLs[name]),
	}
}

// Register installs every known provider into svc. Cloud providers start with
// the configured key (possibly empty); local providers are only registered
// when a URL is known, and can be added later through ConfigureLocal.
func Register(svc *generation.Service, cfg Config) {
	cloud := map[string]generation.Factory{
		"openai":    func(key string) generation.Provider { return NewOpenAI(key, cfg.options("openai")...) },
		"google":    func(key string) generation.Provider { return NewGoogle(key, cfg.options("google")...) },
		"grok":      func(key string) generation.Provider { return NewGrok(key, cfg.options("grok")...) },
		"anthropic": func(key string) generation.Provider { return NewAnthropic(key, cfg.options("anthropic")...) },
	}
	keys := map[string]string{
		"openai":    cfg.OpenAIKey,
		"google":    cfg.GoogleKey,
		"grok":      cfg.GrokKey,
		"anthropic": cfg.AnthropicKey,
	}
	for name, factory := range cloud {
		svc.RegisterCloudFactory(name, factory)
		svc.Register(factory(keys[name]))
	}

	local := map[string]generation.Factory{
		"a1111":    func(url string) generation.Provider { return NewA1111(url, cfg.options("")...) },
		"comfyui":  func(url string) generation.Provider { return NewComfyUI(url, cfg.options("")...) },
		"invokeai": func(url string) generation.Provider { return NewInvokeAI(url, cfg.options("")...) },
	}
	urls := map[string]string{
		"a1111":    cfg.A1111URL,
		"comfyui":  cfg.ComfyUIURL,
		"invokeai": cfg.InvokeAIURL,
	}
	for name, factory := range local {
		svc.RegisterLocalFactory(name, factory)
		if urls[name] != "" {
			svc.Register(factory(urls[name]))
		}
	}

	svc.Register(Midjourney{})
}
