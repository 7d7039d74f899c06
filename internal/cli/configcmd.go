// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/echoflow/internal/config"
)

// configFile returns the file config writes go to: --config, else the
// existing TOML or JSON file, else the default TOML path.
func (e *env) configFile() (string, error) {
	if e.flags.configPath != "" {
		return config.ExpandPath(e.flags.configPath), nil
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	if jsonPath, err := config.ConfigPathJSON(); err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// loadFileConfig reads the config file without environment overrides, so
// a save does not persist them.
func loadFileConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Migrate()
}

func saveFileConfig(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

func newConfigCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit settings",
		Long: `Show and edit settings.

Keys use dot notation, for example "speech.autoplay" or "server.provider".
Run "echoflow config keys" for the full list.`,
		// Config commands must work on a file that does not validate yet.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.in = cmd.InOrStdin()
			e.out = cmd.OutOrStdout()
			e.err = cmd.ErrOrStderr()
			return nil
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(e)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow(e)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := e.configFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(e.out, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List settable keys",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				for _, k := range config.GetAllKeys() {
					fmt.Fprintln(e.out, k)
				}
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := e.loadConfig(); err != nil {
					return err
				}
				v, err := e.cfg.Get(args[0])
				if err != nil {
					return usagef("%v", err)
				}
				if s, ok := v.([]string); ok {
					v = strings.Join(s, " ")
				}
				if isSecretKey(args[0]) {
					v = maskSecret(fmt.Sprint(v))
				}
				fmt.Fprintln(e.out, v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value...>",
			Short: "Change one setting",
			Long: `Change one setting and save the config file.

List settings take the remaining arguments as items:
  echoflow config set voice.record_command arecord -q -f cd -t wav {file}`,
			Args: cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSet(e, args[0], strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Write the default settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := e.configFile()
				if err != nil {
					return err
				}
				if err := saveFileConfig(config.Default(), path); err != nil {
					return err
				}
				fmt.Fprintln(e.out, SuccessStyle.Render("[Reset]"), path)
				return nil
			},
		},
	)
	return cmd
}

func runConfigShow(e *env) error {
	if err := e.loadConfig(); err != nil {
		return err
	}
	path, _ := e.configFile()

	fmt.Fprintln(e.out, TitleStyle.Render("EchoFlow Configuration"))
	fmt.Fprintln(e.out, RenderSeparator(40))
	fmt.Fprintln(e.out, RenderLabel("File:", path))
	fmt.Fprintln(e.out)
	for _, key := range config.GetAllKeys() {
		v, err := e.cfg.Get(key)
		if err != nil {
			continue
		}
		s := fmt.Sprint(v)
		if list, ok := v.([]string); ok {
			s = strings.Join(list, " ")
		}
		if isSecretKey(key) {
			s = maskSecret(s)
		}
		if s == "" {
			s = DimStyle.Render("(not set)")
		}
		fmt.Fprintln(e.out, RenderLabel(key, s))
	}
	return nil
}

func runConfigSet(e *env, key, value string) error {
	path, err := e.configFile()
	if err != nil {
		return err
	}
	cfg, err := loadFileConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return usagef("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveFileConfig(cfg, path); err != nil {
		return err
	}
	shown := value
	if isSecretKey(key) {
		shown = maskSecret(value)
	}
	fmt.Fprintf(e.out, "%s %s = %s\n", SuccessStyle.Render("[Saved]"), key, shown)
	return nil
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, "api_key") || strings.HasSuffix(k, "apikey")
}

// maskSecret keeps the last four characters of a key.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
