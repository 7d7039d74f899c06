// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across echoflow.
//
// The interactive chat writes to a log file so the terminal only shows the
// conversation. The server and one-shot commands log to stderr.
//
// # Usage
//
//	log, err := logging.New(cfg.Log, logging.Options{File: path, Verbose: verbose})
//	if err != nil {
//		return err
//	}
//	defer log.Sync()
package logging
