// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for echoflow.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Backend URL, timeouts and client rate limit
//   - StorageConfig: Conversation store driver and location
//   - ServerConfig: Listen address, model provider and server limits
//   - ValidateErrors: Every problem found by Validate
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ECHOFLOW_*)
//   - ~/.echoflow/config.toml
//   - ~/.echoflow/config.json
//   - Built-in defaults
//
// ECHOFLOW_HOME moves the whole ~/.echoflow directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	path, _ := cfg.StoragePath()
//	st, err := storage.Open(cfg.Storage.Driver, path)
package config
