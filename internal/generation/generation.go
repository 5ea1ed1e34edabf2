// Package generation routes generation requests to image, video and text
// backends registered by name.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

var (
	// ErrProviderNotFound is returned when no provider is registered under a name
	ErrProviderNotFound = errors.New("provider not found")

	// ErrUnknownProvider is returned when configuring a name no factory knows
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNotConfigured is returned by providers that have no credential or URL yet
	ErrNotConfigured = errors.New("provider not configured")
)

// Request is one generation call
type Request struct {
	Prompt     string
	Model      string
	Parameters map[string]any
}

// Provider is a generation backend
type Provider interface {
	Name() string
	// Available reports whether the provider has the credential or URL it needs
	Available() bool
	Generate(ctx context.Context, req Request) (*domain.JobResult, error)
}

// Factory builds a provider from an API key (cloud) or a base URL (local)
type Factory func(value string) Provider

// ProviderInfo describes a registered provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Local     bool   `json:"local"`
	Available bool   `json:"available"`
}

// Service is the provider registry. Configure replaces the registered entry,
// so in-flight calls keep the provider instance they started with.
type Service struct {
	mu        sync.RWMutex
	providers map[string]Provider
	cloud     map[string]Factory
	local     map[string]Factory
	logger    *slog.Logger
}

// NewService creates an empty registry
func NewService(logger *slog.Logger) *Service {
	return &Service{
		providers: make(map[string]Provider),
		cloud:     make(map[string]Factory),
		local:     make(map[string]Factory),
		logger:    logger,
	}
}

// Register adds or replaces a provider under its own name
func (s *Service) Register(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.Name()] = p
}

// RegisterCloudFactory makes name configurable with an API key
func (s *Service) RegisterCloudFactory(name string, f Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cloud[name] = f
}

// RegisterLocalFactory makes name configurable with a base URL
func (s *Service) RegisterLocalFactory(name string, f Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[name] = f
}

// Configure rebuilds a cloud provider with a new API key
func (s *Service) Configure(name, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	factory, ok := s.cloud[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	s.providers[name] = factory(apiKey)

	s.logger.Info("Provider configured",
		slog.String("provider", name),
	)
	return nil
}

// ConfigureLocal rebuilds a local provider against a new base URL
func (s *Service) ConfigureLocal(name, apiURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	factory, ok := s.local[name]
	if !ok {
		return fmt.Errorf("%w: unknown local provider %s", ErrUnknownProvider, name)
	}
	s.providers[name] = factory(apiURL)

	s.logger.Info("Local provider configured",
		slog.String("provider", name),
		slog.String("api_url", apiURL),
	)
	return nil
}

// Get returns the provider registered under name
func (s *Service) Get(name string) (Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[name]
	return p, ok
}

// List returns registered provider names, sorted
func (s *Service) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns every registered provider with its availability
func (s *Service) Describe() []ProviderInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(s.providers))
	for name, p := range s.providers {
		_, local := s.local[name]
		infos = append(infos, ProviderInfo{Name: name, Local: local, Available: p.Available()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Generate runs req on the named provider
func (s *Service) Generate(ctx context.Context, name string, req Request) (*domain.JobResult, error) {
	p, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}
	return p.Generate(ctx, req)
}

// Completion is a one-shot text completion
type Completion struct {
	Model  string
	Prompt string
	// System is an optional instruction sent ahead of the prompt
	System    string
	MaxTokens int
	// Temperature defaults to 1.0 when nil
	Temperature *float64
}

// Complete runs a text completion and returns the produced text
func (s *Service) Complete(ctx context.Context, name string, c Completion) (string, error) {
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temperature := 1.0
	if c.Temperature != nil {
		temperature = *c.Temperature
	}

	params := map[string]any{
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	if c.System != "" {
		params["system"] = c.System
	}

	result, err := s.Generate(ctx, name, Request{
		Prompt:     c.Prompt,
		Model:      c.Model,
		Parameters: params,
	})
	if err != nil {
		return "", err
	}
	if result == nil || result.OutputData == "" {
		return "", errors.New("no text output received")
	}
	return result.OutputData, nil
}
