package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// ChatProvider names a chat backend.
type ChatProvider string

const (
	ProviderOllama     ChatProvider = "ollama"
	ProviderOpenRouter ChatProvider = "openrouter"
	ProviderAnthropic  ChatProvider = "anthropic"
)

const (
	DefaultOllamaBaseURL     = "http://localhost:11434"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultMCPConfigPath     = "~/.cursor/mcp.json"
	DefaultOllamaModel       = "qwen2.5:14b"
	DefaultVoice             = "af_bella"

	settingsLockTimeout = 2 * time.Second
)

// ErrSettingsLocked is returned when a writer holds the settings lock for
// longer than the read timeout.
var ErrSettingsLocked = errors.New("config: settings file is locked")

// Settings are the user preferences persisted in settings.json.
type Settings struct {
	ChatProvider       ChatProvider `json:"chatProvider,omitempty"`
	OllamaBaseURL      string       `json:"ollamaBaseUrl,omitempty"`
	OpenRouterBaseURL  string       `json:"openrouterBaseUrl,omitempty"`
	OpenRouterAPIKey   string       `json:"openrouterApiKey,omitempty"`
	OpenRouterModel    string       `json:"openrouterModel,omitempty"`
	AnthropicAPIKey    string       `json:"anthropicApiKey,omitempty"`
	AnthropicModel     string       `json:"anthropicModel,omitempty"`
	MCPConfigPath      string       `json:"mcpConfigPath,omitempty"`
	DefaultOllamaModel string       `json:"defaultOllamaModel,omitempty"`
	DefaultVoice       string       `json:"defaultVoice,omitempty"`
	UseNarrationForTTS bool         `json:"useNarrationForTTS,omitempty"`

	// NarrationModel is the model used for the narration pass. Empty means
	// the chat model.
	NarrationModel string `json:"narrationModel,omitempty"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		ChatProvider:       ProviderOllama,
		OllamaBaseURL:      DefaultOllamaBaseURL,
		OpenRouterBaseURL:  DefaultOpenRouterBaseURL,
		MCPConfigPath:      DefaultMCPConfigPath,
		DefaultOllamaModel: DefaultOllamaModel,
		DefaultVoice:       DefaultVoice,
	}
}

// ChatModel returns the model configured for the selected provider.
func (s Settings) ChatModel() string {
	switch s.ChatProvider {
	case ProviderOpenRouter:
		return s.OpenRouterModel
	case ProviderAnthropic:
		return s.AnthropicModel
	default:
		return s.DefaultOllamaModel
	}
}

// EffectiveNarrationModel returns the narration model, falling back to the
// chat model.
func (s Settings) EffectiveNarrationModel() string {
	if s.NarrationModel != "" {
		return s.NarrationModel
	}
	return s.ChatModel()
}

// DefaultSettingsPath returns ~/.yappr/settings.json.
func DefaultSettingsPath() string {
	return ExpandPath(filepath.Join("~", ".yappr", "settings.json"))
}

// LoadSettings reads the settings file at path, layering its fields over
// DefaultSettings and then applying environment overrides. A missing file
// yields the defaults.
//
// The read happens under a shared lock on path+".lock", the same lock
// SaveSettings writes under.
func LoadSettings(ctx context.Context, path string) (Settings, error) {
	s := DefaultSettings()
	path = ExpandPath(path)

	data, err := readLocked(ctx, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return s, err
	default:
		if err := json.Unmarshal(data, &s); err != nil {
			return DefaultSettings(), fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&s)
	fillDefaults(&s)
	return s, nil
}

func readLocked(ctx context.Context, path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	fl := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(ctx, settingsLockTimeout)
	defer cancel()

	locked, err := fl.TryRLockContext(ctx, 50*time.Millisecond)
	switch err := lockResult(path, locked, err); {
	case errors.Is(err, ErrSettingsLocked):
		return nil, err
	case err != nil:
		// The lock file is unusable; the lock is advisory, so read anyway.
		return os.ReadFile(path)
	}
	defer fl.Unlock()

	return os.ReadFile(path)
}

// lockResult maps a TryLockContext outcome. Running out of time while a
// writer holds the lock is ErrSettingsLocked; anything else is the lock
// file's own failure.
func lockResult(path string, locked bool, err error) error {
	switch {
	case locked:
		return nil
	case err == nil, errors.Is(err, context.DeadlineExceeded):
		return ErrSettingsLocked
	default:
		return fmt.Errorf("config: lock %s: %w", path, err)
	}
}

// SaveSettings applies update to the settings stored at path and writes the
// result back under an exclusive lock. The stored value starts from
// DefaultSettings layered with the file, without environment overrides, so
// keys from the environment are never persisted. Keys the file holds that
// Settings does not know are kept.
func SaveSettings(ctx context.Context, path string, update func(*Settings)) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	fl := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(ctx, settingsLockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err := lockResult(path, locked, err); err != nil {
		return err
	}
	defer fl.Unlock()

	raw := map[string]json.RawMessage{}
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("config: %w", err)
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	update(&s)

	for _, k := range settingsKeys() {
		delete(raw, k)
	}
	fields, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(fields, &raw); err != nil {
		return err
	}
	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(out, '\n'), 0o600); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// settingsKeys lists the JSON keys Settings owns.
func settingsKeys() []string {
	t := reflect.TypeFor[Settings]()
	keys := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys = append(keys, name)
		}
	}
	return keys
}

func applyEnv(s *Settings) {
	if v := os.Getenv("YAPPR_OLLAMA_URL"); v != "" {
		s.OllamaBaseURL = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" && s.OpenRouterAPIKey == "" {
		s.OpenRouterAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && s.AnthropicAPIKey == "" {
		s.AnthropicAPIKey = v
	}
}

// fillDefaults restores defaults for fields a settings file set to "".
func fillDefaults(s *Settings) {
	d := DefaultSettings()
	if s.ChatProvider == "" {
		s.ChatProvider = d.ChatProvider
	}
	if s.OllamaBaseURL == "" {
		s.OllamaBaseURL = d.OllamaBaseURL
	}
	if s.OpenRouterBaseURL == "" {
		s.OpenRouterBaseURL = d.OpenRouterBaseURL
	}
	if s.MCPConfigPath == "" {
		s.MCPConfigPath = d.MCPConfigPath
	}
	if s.DefaultOllamaModel == "" {
		s.DefaultOllamaModel = d.DefaultOllamaModel
	}
	if s.DefaultVoice == "" {
		s.DefaultVoice = d.DefaultVoice
	}
}
