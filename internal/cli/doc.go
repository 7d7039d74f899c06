// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the echoflow command line.
//
// Running echoflow with no arguments opens the interactive chat. The other
// commands cover one-shot use and maintenance.
//
// # Commands
//
//   - chat: interactive chat with slash commands (/help lists them)
//   - ask: send one message, optionally with an image, and print the reply
//   - history: list, show, rename, pin, delete and export saved chats
//   - serve: run the chat and transcription backend
//   - config: show, get, set and reset settings
//   - version: print build information
//
// # Exit Codes
//
//   - 0: success
//   - 1: general error
//   - 2: invalid arguments or input
//   - 3: configuration error
//   - 5: backend failure
//   - 6: capability unavailable
//   - 7: unreadable stored data
//   - 130: interrupted
//
// # Usage
//
//	func main() {
//		os.Exit(cli.Execute())
//	}
package cli
