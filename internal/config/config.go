// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/echoflow/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete echoflow configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend is the chat/transcription API the client talks to.
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Storage holds the conversation store.
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Voice configures voice note recording.
	Voice VoiceConfig `toml:"voice" json:"voice"`

	// Speech configures read-aloud.
	Speech SpeechConfig `toml:"speech" json:"speech"`

	// Share configures the share command.
	Share ShareConfig `toml:"share" json:"share"`

	UI  UIConfig  `toml:"ui" json:"ui"`
	Log LogConfig `toml:"log" json:"log"`

	// Server configures `echoflow serve` and its model provider.
	Server ServerConfig `toml:"server" json:"server"`
}

// BackendConfig contains backend client configuration.
type BackendConfig struct {
	// URL is the base URL of the backend, without the /api suffix.
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds a single request.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// MaxRetries is the attempt count for 429 and 5xx responses.
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// RequestsPerSecond limits outgoing requests (0 = unlimited).
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
}

// StorageConfig contains conversation storage configuration.
type StorageConfig struct {
	// Driver is "file", "sqlite" or "memory".
	Driver string `toml:"driver" json:"driver"`
	// Path is a directory for "file" and a database file for "sqlite".
	Path string `toml:"path" json:"path"`
	// WatchDebounceMs coalesces external change events for the file driver.
	WatchDebounceMs int `toml:"watch_debounce_ms" json:"watch_debounce_ms"`
}

// VoiceConfig contains voice note configuration.
type VoiceConfig struct {
	// RecordCommand writes audio to "{file}" until interrupted.
	RecordCommand []string `toml:"record_command" json:"record_command"`
	// MIMEType is the media type RecordCommand produces.
	MIMEType string `toml:"mime_type" json:"mime_type"`
}

// SpeechConfig contains read-aloud configuration.
type SpeechConfig struct {
	// SpeakCommand speaks "{text}" with optional "{voice}".
	SpeakCommand []string `toml:"speak_command" json:"speak_command"`
	// VoicesCommand lists installed voices.
	VoicesCommand []string `toml:"voices_command" json:"voices_command"`
	// Language is the preferred voice language (BCP 47 prefix).
	Language string `toml:"language" json:"language"`
	// Autoplay reads bot replies aloud as they arrive.
	Autoplay bool `toml:"autoplay" json:"autoplay"`
}

// ShareConfig contains share configuration.
type ShareConfig struct {
	// Command receives the shared text on stdin. "{title}" is substituted.
	Command []string `toml:"command" json:"command"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	// Markdown renders bot replies with glamour when stdout is a terminal.
	Markdown bool `toml:"markdown" json:"markdown"`
	// Style is the glamour style: "auto", "dark", "light" or "notty".
	Style string `toml:"style" json:"style"`
	// Bell rings the terminal bell as haptic feedback.
	Bell bool `toml:"bell" json:"bell"`
	// ExportDir is where /export writes files.
	ExportDir string `toml:"export_dir" json:"export_dir"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level"`
	// Format is "console" or "json".
	Format string `toml:"format" json:"format"`
	// File receives interactive session logs (empty = default).
	File string `toml:"file" json:"file"`
}

// ServerConfig contains backend server configuration.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
	// Provider is "gemini", "openai" or "echo".
	Provider    string  `toml:"provider" json:"provider"`
	Model       string  `toml:"model" json:"model"`
	APIKey      string  `toml:"api_key" json:"api_key"`
	BaseURL     string  `toml:"base_url" json:"base_url"`
	Temperature float64 `toml:"temperature" json:"temperature"`
	// RateLimit is requests per second per client IP (0 = unlimited).
	RateLimit          float64  `toml:"rate_limit" json:"rate_limit"`
	RateBurst          int      `toml:"rate_burst" json:"rate_burst"`
	BodyLimitMB        int      `toml:"body_limit_mb" json:"body_limit_mb"`
	RequestTimeoutSecs int      `toml:"request_timeout_secs" json:"request_timeout_secs"`
	AllowedOrigins     []string `toml:"allowed_origins" json:"allowed_origins"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Backend: BackendConfig{
			URL:               "http://127.0.0.1:9002",
			TimeoutSecs:       120,
			MaxRetries:        3,
			RequestsPerSecond: 2,
		},

		Storage: StorageConfig{
			Driver:          "file",
			Path:            "", // resolved to ~/.echoflow/data
			WatchDebounceMs: 100,
		},

		Voice: VoiceConfig{
			RecordCommand: []string{"arecord", "-q", "-f", "cd", "-t", "wav", "{file}"},
			MIMEType:      "audio/wav",
		},

		Speech: SpeechConfig{
			SpeakCommand:  []string{"espeak-ng", "-v", "{voice}", "{text}"},
			VoicesCommand: []string{"espeak-ng", "--voices"},
			Language:      "en",
			Autoplay:      true,
		},

		Share: ShareConfig{
			Command: nil, // sharing falls back to the clipboard
		},

		UI: UIConfig{
			Markdown:  true,
			Style:     "auto",
			Bell:      false,
			ExportDir: ".",
		},

		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},

		Server: ServerConfig{
			Addr:               "127.0.0.1:9002",
			Provider:           "gemini",
			Model:              "gemini-2.5-flash",
			Temperature:        0.7,
			RateLimit:          2,
			RateBurst:          10,
			BodyLimitMB:        20,
			RequestTimeoutSecs: 120,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the echoflow configuration directory. ECHOFLOW_HOME
// overrides the default ~/.echoflow.
func ConfigDir() (string, error) {
	if dir := os.Getenv("ECHOFLOW_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".echoflow"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ExpandPath replaces a leading "~" with the home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// StoragePath returns the resolved storage location for the configured driver.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return ExpandPath(c.Storage.Path), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if strings.EqualFold(c.Storage.Driver, "sqlite") {
		return filepath.Join(dir, "echoflow.db"), nil
	}
	return filepath.Join(dir, "data"), nil
}

// LogPath returns the resolved log file for interactive sessions.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return ExpandPath(c.Log.File), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "echoflow.log"), nil
}

// ensureSecurePermissions tightens config files to 0600. They may hold an
// API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default location.
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies env overrides, migration and validation.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	if err := c.Migrate(); err != nil {
		return fmt.Errorf("config migration failed: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults. Booleans cannot
// be told apart from an explicit false and are left alone.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Backend
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaults.Backend.URL
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}
	if cfg.Backend.MaxRetries == 0 {
		cfg.Backend.MaxRetries = defaults.Backend.MaxRetries
	}

	// Storage
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}
	if cfg.Storage.WatchDebounceMs == 0 {
		cfg.Storage.WatchDebounceMs = defaults.Storage.WatchDebounceMs
	}

	// Voice
	if cfg.Voice.RecordCommand == nil {
		cfg.Voice.RecordCommand = defaults.Voice.RecordCommand
	}
	if cfg.Voice.MIMEType == "" {
		cfg.Voice.MIMEType = defaults.Voice.MIMEType
	}

	// Speech
	if cfg.Speech.SpeakCommand == nil {
		cfg.Speech.SpeakCommand = defaults.Speech.SpeakCommand
	}
	if cfg.Speech.VoicesCommand == nil {
		cfg.Speech.VoicesCommand = defaults.Speech.VoicesCommand
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = defaults.Speech.Language
	}

	// UI
	if cfg.UI.Style == "" {
		cfg.UI.Style = defaults.UI.Style
	}
	if cfg.UI.ExportDir == "" {
		cfg.UI.ExportDir = defaults.UI.ExportDir
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}

	// Server
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.Provider == "" {
		cfg.Server.Provider = defaults.Server.Provider
	}
	if cfg.Server.Temperature == 0 {
		cfg.Server.Temperature = defaults.Server.Temperature
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = defaults.Server.RateBurst
	}
	if cfg.Server.BodyLimitMB == 0 {
		cfg.Server.BodyLimitMB = defaults.Server.BodyLimitMB
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = defaults.Server.RequestTimeoutSecs
	}

	return nil
}

// Migrate rewrites settings from older formats.
func (c *Config) Migrate() error {
	// "ollama" was accepted as its own provider before the OpenAI-compatible
	// provider covered it.
	if strings.EqualFold(c.Server.Provider, "ollama") {
		c.Server.Provider = "openai"
		if c.Server.BaseURL == "" {
			c.Server.BaseURL = "http://127.0.0.1:11434/v1"
		}
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	c.Server.Provider = strings.ToLower(c.Server.Provider)

	// The gemini default model means nothing to other providers.
	if c.Server.Provider != "gemini" && c.Server.Model == Default().Server.Model {
		c.Server.Model = ""
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# echoflow configuration file")
	fmt.Fprintln(&buf, "# Generated by echoflow - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

// Validate checks the configuration and returns ValidateErrors listing every
// problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// Backend
	// ==========================================================================

	if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("backend.url", "invalid URL '%s', must be http(s)://host[:port]", c.Backend.URL)
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 600 {
		add("backend.timeout_secs", "must be between 1 and 600, got %d", c.Backend.TimeoutSecs)
	}
	if c.Backend.MaxRetries < 1 || c.Backend.MaxRetries > 10 {
		add("backend.max_retries", "must be between 1 and 10, got %d", c.Backend.MaxRetries)
	}
	if c.Backend.RequestsPerSecond < 0 {
		add("backend.requests_per_second", "must not be negative")
	}

	// ==========================================================================
	// Storage
	// ==========================================================================

	if !oneOf(c.Storage.Driver, "file", "sqlite", "memory") {
		add("storage.driver", "invalid driver '%s', must be one of: file, sqlite, memory", c.Storage.Driver)
	}
	if c.Storage.WatchDebounceMs < 0 {
		add("storage.watch_debounce_ms", "must not be negative")
	}

	// ==========================================================================
	// Voice, speech and share
	// ==========================================================================

	if len(c.Voice.RecordCommand) > 0 && !containsPlaceholder(c.Voice.RecordCommand, "{file}") {
		add("voice.record_command", "must contain the {file} placeholder")
	}
	if len(c.Voice.RecordCommand) > 0 && !strings.Contains(c.Voice.MIMEType, "/") {
		add("voice.mime_type", "invalid media type '%s'", c.Voice.MIMEType)
	}
	if len(c.Speech.SpeakCommand) > 0 && !containsPlaceholder(c.Speech.SpeakCommand, "{text}") {
		add("speech.speak_command", "must contain the {text} placeholder")
	}
	if c.Speech.Language == "" {
		add("speech.language", "must not be empty")
	}

	// ==========================================================================
	// UI and logging
	// ==========================================================================

	if !oneOf(c.UI.Style, "auto", "dark", "light", "notty", "dracula", "pink", "ascii") {
		add("ui.style", "invalid style '%s', must be one of: auto, dark, light, notty, dracula, pink, ascii", c.UI.Style)
	}
	if !oneOf(c.Log.Level, "debug", "info", "warn", "error") {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	if !oneOf(c.Log.Format, "console", "json") {
		add("log.format", "invalid format '%s', must be one of: console, json", c.Log.Format)
	}

	// ==========================================================================
	// Server
	// ==========================================================================

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "invalid address '%s': %v", c.Server.Addr, err)
	}
	if !oneOf(c.Server.Provider, "gemini", "openai", "echo") {
		add("server.provider", "invalid provider '%s', must be one of: gemini, openai, echo", c.Server.Provider)
	}
	if c.Server.BaseURL != "" {
		if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("server.base_url", "invalid URL '%s'", c.Server.BaseURL)
		}
	}
	if c.Server.Temperature < 0 || c.Server.Temperature > 2 {
		add("server.temperature", "must be between 0 and 2, got %g", c.Server.Temperature)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateBurst < 1 {
		add("server.rate_burst", "must be at least 1, got %d", c.Server.RateBurst)
	}
	if c.Server.BodyLimitMB < 1 || c.Server.BodyLimitMB > 100 {
		add("server.body_limit_mb", "must be between 1 and 100, got %d", c.Server.BodyLimitMB)
	}
	if c.Server.RequestTimeoutSecs < 1 || c.Server.RequestTimeoutSecs > 600 {
		add("server.request_timeout_secs", "must be between 1 and 600, got %d", c.Server.RequestTimeoutSecs)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func containsPlaceholder(args []string, placeholder string) bool {
	for _, a := range args {
		if strings.Contains(a, placeholder) {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - ECHOFLOW_BACKEND_URL: overrides backend.url
//   - ECHOFLOW_STORAGE: overrides storage.driver
//   - ECHOFLOW_STORAGE_PATH: overrides storage.path
//   - ECHOFLOW_LANG: overrides speech.language
//   - ECHOFLOW_AUTOPLAY: "1"/"true" or "0"/"false"
//   - ECHOFLOW_LOG_LEVEL: overrides log.level
//   - ECHOFLOW_PROVIDER: overrides server.provider
//   - ECHOFLOW_MODEL: overrides server.model
//   - ECHOFLOW_ADDR: overrides server.addr
//   - ECHOFLOW_API_KEY, GEMINI_API_KEY, GOOGLE_API_KEY: server.api_key
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ECHOFLOW_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("ECHOFLOW_STORAGE"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("ECHOFLOW_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("ECHOFLOW_LANG"); v != "" {
		c.Speech.Language = v
	}
	if v := os.Getenv("ECHOFLOW_AUTOPLAY"); v != "" {
		c.Speech.Autoplay = parseBool(v)
	}
	if v := os.Getenv("ECHOFLOW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ECHOFLOW_PROVIDER"); v != "" {
		c.Server.Provider = v
	}
	if v := os.Getenv("ECHOFLOW_MODEL"); v != "" {
		c.Server.Model = v
	}
	if v := os.Getenv("ECHOFLOW_ADDR"); v != "" {
		c.Server.Addr = v
	}

	// The key fallbacks follow the names the Gemini SDK documents.
	for _, name := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "ECHOFLOW_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			c.Server.APIKey = v
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.bell").
// String values are converted to the field's type; list fields split on
// whitespace.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent ("api_key" -> "ApiKey", matched case-insensitively).
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(strings.Fields(strVal)))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"backend.url",
		"backend.timeout_secs",
		"backend.max_retries",
		"backend.requests_per_second",
		"storage.driver",
		"storage.path",
		"storage.watch_debounce_ms",
		"voice.record_command",
		"voice.mime_type",
		"speech.speak_command",
		"speech.voices_command",
		"speech.language",
		"speech.autoplay",
		"share.command",
		"ui.markdown",
		"ui.style",
		"ui.bell",
		"ui.export_dir",
		"log.level",
		"log.format",
		"log.file",
		"server.addr",
		"server.provider",
		"server.model",
		"server.api_key",
		"server.base_url",
		"server.temperature",
		"server.rate_limit",
		"server.rate_burst",
		"server.body_limit_mb",
		"server.request_timeout_secs",
		"server.allowed_origins",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Voice.RecordCommand = cloneStrings(c.Voice.RecordCommand)
	clone.Speech.SpeakCommand = cloneStrings(c.Speech.SpeakCommand)
	clone.Speech.VoicesCommand = cloneStrings(c.Speech.VoicesCommand)
	clone.Share.Command = cloneStrings(c.Share.Command)
	clone.Server.AllowedOrigins = cloneStrings(c.Server.AllowedOrigins)
	return &clone
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// String returns the config as indented JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Server.APIKey != "" {
		safe.Server.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
