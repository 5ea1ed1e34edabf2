package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

// ErrBridgeUnavailable is returned by job, scene and workflow operations in web mode
var ErrBridgeUnavailable = errors.New("desktop bridge unavailable: jobs and scenes need the PromptCraft backend")

// Capability is what the running client can reach
type Capability string

const (
	CapabilityDesktop Capability = "desktop"
	CapabilityWeb     Capability = "web"
)

// Mode selects cloud providers or a local tool
type Mode string

const (
	ModeCloud Mode = "cloud"
	ModeLocal Mode = "local"
)

// keys of the locally persisted settings
const (
	settingMode       = "generation_mode"
	settingLocalModel = "selected_local_model"
	settingCategory   = "active_category"
	settingModel      = "selected_model"
	settingDarkMode   = "dark_mode"
	settingPrompts    = "prompts"
)

// KV is a string key-value store
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// FileStore is a KV persisted as a YAML map on the local device
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// OpenFileStore loads path, starting empty when the file does not exist yet
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: map[string]string{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if s.values == nil {
		s.values = map[string]string{}
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value and rewrites the file
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

// MemoryStore is a KV that lives only in memory
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// State is the client's application state. It is created once and handed to
// everything that reads or changes it.
type State struct {
	Prompts    *PromptStore
	Category   string
	Model      string
	Mode       Mode
	LocalModel string
	DarkMode   bool
	WorkflowID string

	bridge Bridge
	local  KV

	mu        sync.RWMutex
	lastError string
	jobs      []domain.Job
	scenes    []domain.Scene
}

// NewState creates the state. A nil bridge puts the client in web mode.
func NewState(bridge Bridge, local KV) *State {
	if local == nil {
		local = NewMemoryStore()
	}
	return &State{
		Prompts:  NewPromptStore(),
		Category: domain.CategoryImage,
		Mode:     ModeCloud,
		bridge:   bridge,
		local:    local,
	}
}

func (s *State) Capability() Capability {
	if s.bridge == nil {
		return CapabilityWeb
	}
	return CapabilityDesktop
}

// Bridge returns the backend bridge, or ErrBridgeUnavailable in web mode
func (s *State) Bridge() (Bridge, error) {
	if s.bridge == nil {
		return nil, ErrBridgeUnavailable
	}
	return s.bridge, nil
}

// PromptKey is the slot key of the model currently in use
func (s *State) PromptKey() string {
	if s.Mode == ModeLocal && s.LocalModel != "" {
		return KeyForModel(s.LocalModel)
	}
	return KeyForModel(s.Model)
}

// ActivePrompt returns the slot of the model currently in use
func (s *State) ActivePrompt() Slot {
	return s.Prompts.Get(s.PromptKey())
}

// SelectModel switches to model, carrying the prompt forward when the
// category changes and the new slot is empty.
func (s *State) SelectModel(model string) {
	fromKey := s.PromptKey()
	category := CategoryForModel(model)

	s.Model = model
	if category != s.Category {
		s.Prompts.SwitchCategory(fromKey, s.PromptKey())
	}
	s.Category = category
}

func (s *State) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *State) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *State) ClearError() { s.SetError("") }

// SetJobs replaces the job snapshot
func (s *State) SetJobs(jobs []domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = jobs
}

// Jobs returns the current job snapshot
func (s *State) Jobs() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs
}

func (s *State) SetScenes(scenes []domain.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = scenes
}

func (s *State) Scenes() []domain.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenes
}

// ReloadJobs fetches the workflow's jobs into the snapshot
func (s *State) ReloadJobs(ctx context.Context) ([]domain.Job, error) {
	bridge, err := s.Bridge()
	if err != nil {
		return nil, err
	}
	jobs, err := bridge.ListJobs(ctx, s.WorkflowID)
	if err != nil {
		return nil, err
	}
	s.SetJobs(jobs)
	return jobs, nil
}

// ReloadScenes fetches the workflow's scenes into the snapshot
func (s *State) ReloadScenes(ctx context.Context) ([]domain.Scene, error) {
	bridge, err := s.Bridge()
	if err != nil {
		return nil, err
	}
	scenes, err := bridge.ListScenes(ctx, s.WorkflowID)
	if err != nil {
		return nil, err
	}
	s.SetScenes(scenes)
	return scenes, nil
}

// Setting reads key from the bridge in desktop mode, the local store otherwise
func (s *State) Setting(ctx context.Context, key string) (string, bool, error) {
	if s.bridge != nil {
		return s.bridge.GetSetting(ctx, key)
	}
	return s.local.Get(key)
}

// SetSetting writes key to the bridge in desktop mode, the local store otherwise
func (s *State) SetSetting(ctx context.Context, key, value string) error {
	if s.bridge != nil {
		return s.bridge.SetSetting(ctx, key, value)
	}
	return s.local.Set(key, value)
}

// Load restores the device-local preferences and prompt slots
func (s *State) Load() error {
	get := func(key string) (string, bool) {
		v, ok, err := s.local.Get(key)
		return v, ok && err == nil
	}

	if v, ok := get(settingMode); ok && (Mode(v) == ModeCloud || Mode(v) == ModeLocal) {
		s.Mode = Mode(v)
	}
	if v, ok := get(settingLocalModel); ok {
		s.LocalModel = v
	}
	if v, ok := get(settingCategory); ok && v != "" {
		s.Category = v
	}
	if v, ok := get(settingModel); ok {
		s.Model = v
	}
	if v, ok := get(settingDarkMode); ok {
		s.DarkMode, _ = strconv.ParseBool(v)
	}
	if v, ok := get(settingPrompts); ok && v != "" {
		if err := json.Unmarshal([]byte(v), s.Prompts); err != nil {
			return err
		}
	}
	return nil
}

// Save persists the device-local preferences and prompt slots
func (s *State) Save() error {
	prompts, err := json.Marshal(s.Prompts)
	if err != nil {
		return fmt.Errorf("failed to encode prompt slots: %w", err)
	}

	values := [][2]string{
		{settingMode, string(s.Mode)},
		{settingLocalModel, s.LocalModel},
		{settingCategory, s.Category},
		{settingModel, s.Model},
		{settingDarkMode, strconv.FormatBool(s.DarkMode)},
		{settingPrompts, string(prompts)},
	}
	for _, kv := range values {
		if err := s.local.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save %s: %w", kv[0], err)
		}
	}
	return nil
}
