package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

type modelInfo struct {
	key      string
	category string
}

// models maps every known model id to its shared prompt slot and category
var models = map[string]modelInfo{
	// OpenAI
	"dall-e-3":    {"dalle", domain.CategoryImage},
	"dall-e-2":    {"dalle", domain.CategoryImage},
	"gpt-image-1": {"gpt-image", domain.CategoryImage},
	"sora-2":      {"sora", domain.CategoryVideo},
	"sora-2-pro":  {"sora", domain.CategoryVideo},

	// Google
	"imagen-4.0-generate-001":        {"imagen", domain.CategoryImage},
	"imagen-4.0-ultra-generate-001":  {"imagen", domain.CategoryImage},
	"imagen-4.0-fast-generate-001":   {"imagen", domain.CategoryImage},
	"imagen-3.0-generate-002":        {"imagen", domain.CategoryImage},
	"gemini-2.5-flash-image":         {"gemini-image", domain.CategoryImage},
	"gemini-2.5-flash-image-preview": {"gemini-image", domain.CategoryImage},
	"veo-3.1-generate-preview":       {"veo", domain.CategoryVideo},
	"veo-3.1-fast-generate-preview":  {"veo", domain.CategoryVideo},
	"veo-3.0-generate-001":           {"veo", domain.CategoryVideo},
	"veo-3.0-fast-generate-001":      {"veo", domain.CategoryVideo},
	"veo-2.0-generate-001":           {"veo", domain.CategoryVideo},

	// xAI
	"grok-2-image":      {"grok-image", domain.CategoryImage},
	"grok-2-image-1212": {"grok-image", domain.CategoryImage},

	"midjourney": {"midjourney", domain.CategoryImage},

	// local tools share one slot per tool
	"a1111":    {"stable-diffusion", domain.CategoryImage},
	"invokeai": {"stable-diffusion", domain.CategoryImage},
	"comfyui":  {"comfyui", domain.CategoryImage},
}

// KeyForModel returns the prompt slot key for a model id. Unknown ids are
// their own key.
func KeyForModel(model string) string {
	if info, ok := models[model]; ok {
		return info.key
	}
	return model
}

// CategoryForModel returns the category of a model id. Unknown ids are
// treated as video when the name says so, image otherwise.
func CategoryForModel(model string) string {
	if info, ok := models[model]; ok {
		return info.category
	}
	lower := strings.ToLower(model)
	if strings.Contains(lower, "video") || strings.HasPrefix(lower, "veo") || strings.HasPrefix(lower, "sora") {
		return domain.CategoryVideo
	}
	return domain.CategoryImage
}

// providerPrefixes maps model id prefixes to the provider serving them
var providerPrefixes = []struct{ prefix, provider string }{
	{"dall-e", "openai"},
	{"gpt-image", "openai"},
	{"sora", "openai"},
	{"imagen", "google"},
	{"gemini", "google"},
	{"veo", "google"},
	{"grok", "grok"},
	{"midjourney", "midjourney"},
	{"a1111", "a1111"},
	{"comfyui", "comfyui"},
	{"invokeai", "invokeai"},
}

// ProviderForModel guesses the provider of a model id from its prefix
func ProviderForModel(model string) (string, bool) {
	lower := strings.ToLower(model)
	for _, p := range providerPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.provider, true
		}
	}
	return "", false
}

// Slot is the editable prompt of one key
type Slot struct {
	Main      string           `json:"main"`
	Negative  string           `json:"negative,omitempty"`
	Modifiers []string         `json:"modifiers,omitempty"`
	Nodes     []map[string]any `json:"nodes,omitempty"`
	Params    map[string]any   `json:"params,omitempty"`
}

// Text is the main prompt followed by its modifiers
func (s Slot) Text() string {
	parts := make([]string, 0, len(s.Modifiers)+1)
	if main := strings.TrimSpace(s.Main); main != "" {
		parts = append(parts, main)
	}
	for _, m := range s.Modifiers {
		if m = strings.TrimSpace(m); m != "" {
			parts = append(parts, m)
		}
	}
	return strings.Join(parts, ", ")
}

// Snapshot freezes the slot for a saved scene
func (s Slot) Snapshot() domain.PromptSnapshot {
	return domain.PromptSnapshot{
		Main:      s.Main,
		Negative:  s.Negative,
		Modifiers: append([]string(nil), s.Modifiers...),
		Nodes:     s.Nodes,
		Params:    s.Params,
	}
}

// PromptStore holds the prompt slots by key
type PromptStore struct {
	mu    sync.RWMutex
	slots map[string]Slot
}

// NewPromptStore creates an empty store
func NewPromptStore() *PromptStore {
	return &PromptStore{slots: map[string]Slot{}}
}

// Get returns the slot for key, empty when unset
func (p *PromptStore) Get(key string) Slot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slots[key]
}

func (p *PromptStore) Set(key string, slot Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[key] = slot
}

// Update applies fn to the slot for key
func (p *PromptStore) Update(key string, fn func(*Slot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot := p.slots[key]
	fn(&slot)
	p.slots[key] = slot
}

func (p *PromptStore) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.slots))
	for k := range p.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SwitchCategory carries the main text and modifiers of fromKey into toKey
// when toKey has no main text yet. It reports whether anything was copied.
func (p *PromptStore) SwitchCategory(fromKey, toKey string) bool {
	if fromKey == toKey {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	from := p.slots[fromKey]
	to := p.slots[toKey]
	if to.Main != "" || from.Main == "" {
		return false
	}

	to.Main = from.Main
	to.Modifiers = append([]string(nil), from.Modifiers...)
	p.slots[toKey] = to
	return true
}

// MarshalJSON encodes the slots as an object keyed by slot key
func (p *PromptStore) MarshalJSON() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return json.Marshal(p.slots)
}

func (p *PromptStore) UnmarshalJSON(data []byte) error {
	slots := map[string]Slot{}
	if err := json.Unmarshal(data, &slots); err != nil {
		return fmt.Errorf("failed to decode prompt slots: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots = slots
	return nil
}
