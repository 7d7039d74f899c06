// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points ECHOFLOW_HOME at a temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ECHOFLOW_HOME", dir)
	for _, name := range []string{
		"ECHOFLOW_BACKEND_URL", "ECHOFLOW_STORAGE", "ECHOFLOW_STORAGE_PATH",
		"ECHOFLOW_LANG", "ECHOFLOW_AUTOPLAY", "ECHOFLOW_LOG_LEVEL",
		"ECHOFLOW_PROVIDER", "ECHOFLOW_MODEL", "ECHOFLOW_ADDR",
		"ECHOFLOW_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(name, "")
	}
	return dir
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:9002", cfg.Backend.URL)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "gemini", cfg.Server.Provider)
	assert.Equal(t, "en", cfg.Speech.Language)
	assert.True(t, cfg.Speech.Autoplay)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, Default().Backend, cfg.Backend)
}

func TestLoad_TOML(t *testing.T) {
	dir := isolate(t)
	content := `
[backend]
url = "https://chat.example.com"

[storage]
driver = "sqlite"

[server]
provider = "ollama"
model = "llava"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.Backend.URL)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 120, cfg.Backend.TimeoutSecs, "missing values are filled from defaults")
	assert.Equal(t, "openai", cfg.Server.Provider, "ollama migrates to the OpenAI-compatible provider")
	assert.Equal(t, "http://127.0.0.1:11434/v1", cfg.Server.BaseURL)
	assert.Equal(t, "llava", cfg.Server.Model)

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"log":{"level":"debug"}}`), 0600))

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[storage]\ndriver = \"floppy\"\n"), 0600))

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.Server.APIKey = "secret"
	cfg.UI.Bell = true
	cfg.Share.Command = []string{"wl-copy"}

	require.NoError(t, Save(cfg))

	path := filepath.Join(dir, "config.toml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# echoflow configuration file"))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.Server.APIKey)
	assert.True(t, loaded.UI.Bell)
	assert.Equal(t, []string{"wl-copy"}, loaded.Share.Command)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ECHOFLOW_BACKEND_URL", "http://10.0.0.2:9002")
	t.Setenv("ECHOFLOW_AUTOPLAY", "false")
	t.Setenv("ECHOFLOW_PROVIDER", "echo")
	t.Setenv("GEMINI_API_KEY", "from-gemini")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://10.0.0.2:9002", cfg.Backend.URL)
	assert.False(t, cfg.Speech.Autoplay)
	assert.Equal(t, "echo", cfg.Server.Provider)
	assert.Equal(t, "from-gemini", cfg.Server.APIKey)

	t.Setenv("ECHOFLOW_API_KEY", "explicit")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "explicit", cfg.Server.APIKey)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad backend url", func(c *Config) { c.Backend.URL = "ftp://x" }, "backend.url"},
		{"timeout", func(c *Config) { c.Backend.TimeoutSecs = 0 }, "backend.timeout_secs"},
		{"driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"record placeholder", func(c *Config) { c.Voice.RecordCommand = []string{"arecord", "out.wav"} }, "voice.record_command"},
		{"speak placeholder", func(c *Config) { c.Speech.SpeakCommand = []string{"say"} }, "speech.speak_command"},
		{"style", func(c *Config) { c.UI.Style = "neon" }, "ui.style"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"addr", func(c *Config) { c.Server.Addr = "9002" }, "server.addr"},
		{"provider", func(c *Config) { c.Server.Provider = "claude" }, "server.provider"},
		{"temperature", func(c *Config) { c.Server.Temperature = 3 }, "server.temperature"},
		{"body limit", func(c *Config) { c.Server.BodyLimitMB = 500 }, "server.body_limit_mb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "x"
	cfg.Log.Format = "xml"

	err := cfg.Validate()

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "; ")
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("server.provider")
	require.NoError(t, err)
	assert.Equal(t, "gemini", v)

	require.NoError(t, cfg.Set("server.api_key", "k"))
	assert.Equal(t, "k", cfg.Server.APIKey)

	require.NoError(t, cfg.Set("ui.bell", "yes"))
	assert.True(t, cfg.UI.Bell)

	require.NoError(t, cfg.Set("backend.max_retries", "5"))
	assert.Equal(t, 5, cfg.Backend.MaxRetries)

	require.NoError(t, cfg.Set("server.temperature", "0.2"))
	assert.InDelta(t, 0.2, cfg.Server.Temperature, 1e-9)

	require.NoError(t, cfg.Set("share.command", "xclip -selection clipboard"))
	assert.Equal(t, []string{"xclip", "-selection", "clipboard"}, cfg.Share.Command)

	_, err = cfg.Get("server.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("backend.url.host", "x"))
	assert.Error(t, cfg.Set("backend.timeout_secs", "soon"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()

	clone.Voice.RecordCommand[0] = "sox"
	clone.Backend.URL = "http://other"

	assert.Equal(t, "arecord", cfg.Voice.RecordCommand[0])
	assert.Equal(t, "http://127.0.0.1:9002", cfg.Backend.URL)
}

func TestConfig_StringRedactsKey(t *testing.T) {
	cfg := Default()
	cfg.Server.APIKey = "super-secret"

	s := cfg.String()

	assert.NotContains(t, s, "super-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "super-secret", cfg.Server.APIKey)
}

func TestStorageAndLogPaths(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	p, err := cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), p)

	cfg.Storage.Driver = "sqlite"
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "echoflow.db"), p)

	cfg.Storage.Path = "/var/lib/echoflow"
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/echoflow", p)

	p, err = cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "echoflow.log"), p)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "notes"), ExpandPath("~/notes"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, "rel", ExpandPath("rel"))
}
