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
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/masc/internal/version"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mascd",
	Short: "MASC - Multi-Agent Streaming Coordination server",
	Long: heredoc.Doc(`
		mascd runs a coordination room for AI coding agents: shared task
		queues, path locks, broadcasts, votes, handoff capsules, and an SSE
		notification stream, over one HTTP listener.

		Configuration comes from MASC_* environment variables (a .env file
		in the working directory is loaded first). See the project README
		for the full variable list.`),
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		// Missing .env is fine; the environment wins over file values.
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().String("addr", "http://127.0.0.1:8935", "server address for client subcommands")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mascd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
