// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/masc/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the room configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the resolved configuration",
	Long: heredoc.Doc(`
		Print the configuration the server would start with, resolved from
		the environment and defaults. Secrets are redacted.`),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		redacted := *cfg
		if redacted.Token != "" {
			redacted.Token = "<redacted>"
		}
		if redacted.EncryptionKey != "" {
			redacted.EncryptionKey = "<redacted>"
		}
		out, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a persisted room setting",
	Long: heredoc.Doc(`
		Write one setting to the room file (.masc/config.json). A running
		server watching the file applies the change without a restart.

		Supported keys:
		  mode    tool-surface mode (default, minimal, observer, focus,
		          or a preset defined in modes.yaml)`),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := strings.ToLower(args[0]), args[1]
		if key != "mode" {
			return fmt.Errorf("unsupported key %q (supported: mode)", key)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		rf, err := config.LoadRoomFile(cfg.ConfigPath())
		if err != nil {
			return err
		}
		rf.Mode = value
		if err := config.SaveRoomFile(cfg.ConfigPath(), rf); err != nil {
			return err
		}
		fmt.Printf("mode = %s (written to %s)\n", value, cfg.ConfigPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
