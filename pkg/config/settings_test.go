package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings(t *testing.T) {
	t.Setenv("YAPPR_OLLAMA_URL", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	t.Run("missing file yields defaults", func(t *testing.T) {
		s, err := LoadSettings(context.Background(), filepath.Join(t.TempDir(), "settings.json"))
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s)
		assert.Equal(t, DefaultOllamaModel, s.ChatModel())
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "settings.json", `{
  "chatProvider": "openrouter",
  "openrouterModel": "openai/gpt-4o-mini",
  "useNarrationForTTS": true,
  "ollamaBaseUrl": ""
}`)
		s, err := LoadSettings(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenRouter, s.ChatProvider)
		assert.Equal(t, "openai/gpt-4o-mini", s.ChatModel())
		assert.True(t, s.UseNarrationForTTS)
		assert.Equal(t, DefaultOllamaBaseURL, s.OllamaBaseURL, "empty value falls back to default")
		assert.Equal(t, "openai/gpt-4o-mini", s.EffectiveNarrationModel())
	})

	t.Run("narration model wins when set", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "settings.json", `{"narrationModel": "llama3.2:3b"}`)
		s, err := LoadSettings(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "llama3.2:3b", s.EffectiveNarrationModel())
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("YAPPR_OLLAMA_URL", "http://gpu-box:11434")
		t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
		s, err := LoadSettings(context.Background(), filepath.Join(t.TempDir(), "settings.json"))
		require.NoError(t, err)
		assert.Equal(t, "http://gpu-box:11434", s.OllamaBaseURL)
		assert.Equal(t, "sk-or-test", s.OpenRouterAPIKey)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "settings.json", `{`)
		_, err := LoadSettings(context.Background(), path)
		require.Error(t, err)
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "mcp.json", `{"mcpServers": {}}`)
	writeFile(t, dir, "mcp.json", `{"mcpServers": {"a": {}}}`)
	writeFile(t, dir, "unrelated.json", `{}`)

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("onChange not called")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestLoadSettingsLocking(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	t.Run("held write lock reports locked", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "settings.json", `{"chatProvider": "openrouter"}`)
		writer := flock.New(path + ".lock")
		require.NoError(t, writer.Lock())
		defer writer.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()
		_, err := LoadSettings(ctx, path)
		assert.ErrorIs(t, err, ErrSettingsLocked)
	})

	t.Run("unusable lock file still reads settings", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "settings.json", `{"chatProvider": "openrouter"}`)
		require.NoError(t, os.Mkdir(path+".lock", 0o755))

		s, err := LoadSettings(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenRouter, s.ChatProvider)
	})
}

func TestSaveSettings(t *testing.T) {
	t.Run("creates file and directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "settings.json")
		require.NoError(t, SaveSettings(context.Background(), path, func(s *Settings) {
			s.ChatProvider = ProviderAnthropic
			s.AnthropicModel = "claude-haiku-4-5"
		}))

		s, err := LoadSettings(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, ProviderAnthropic, s.ChatProvider)
		assert.Equal(t, "claude-haiku-4-5", s.ChatModel())
		assert.Equal(t, DefaultVoice, s.DefaultVoice)
	})

	t.Run("merges over existing values", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "sk-from-env")
		path := writeFile(t, t.TempDir(), "settings.json", `{
  "openrouterModel": "openai/gpt-4o-mini",
  "narrationModel": "llama3.2:3b",
  "defaultInputDeviceIndex": 2
}`)
		require.NoError(t, SaveSettings(context.Background(), path, func(s *Settings) {
			s.ChatProvider = ProviderOpenRouter
			s.NarrationModel = ""
		}))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var stored map[string]any
		require.NoError(t, json.Unmarshal(data, &stored))
		assert.Equal(t, "openrouter", stored["chatProvider"])
		assert.Equal(t, "openai/gpt-4o-mini", stored["openrouterModel"])
		assert.EqualValues(t, 2, stored["defaultInputDeviceIndex"], "unknown keys survive")
		assert.NotContains(t, stored, "narrationModel", "cleared field is removed")
		assert.NotContains(t, stored, "openrouterApiKey", "environment keys are not persisted")
	})

	t.Run("held lock reports locked", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "settings.json", `{}`)
		other := flock.New(path + ".lock")
		require.NoError(t, other.RLock())
		defer other.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()
		err := SaveSettings(ctx, path, func(s *Settings) { s.DefaultVoice = "am_adam" })
		assert.ErrorIs(t, err, ErrSettingsLocked)
	})

	t.Run("lock file failure is not reported as locked", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "settings.json", `{}`)
		require.NoError(t, os.Mkdir(path+".lock", 0o755))

		err := SaveSettings(context.Background(), path, func(s *Settings) {})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSettingsLocked)
	})
}

func TestWatchMissingDirectory(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Watch(ctx, filepath.Join(t.TempDir(), "absent", "mcp.json"), func() {})
	require.Error(t, err)
	assert.NoError(t, ctx.Err(), "Watch returns the error instead of waiting for ctx")
}
