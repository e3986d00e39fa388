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
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teradata-labs/masc/pkg/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the client bearer token",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the bearer token in the system keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := promptToken()
		if err != nil {
			return err
		}
		if token == "" {
			return fmt.Errorf("token must not be empty")
		}
		if err := auth.SaveToken(token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Println("Token stored in system keyring.")
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the bearer token from the system keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.ClearToken(); err != nil {
			return fmt.Errorf("clear token: %w", err)
		}
		fmt.Println("Token removed from system keyring.")
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	rootCmd.AddCommand(tokenCmd)
}

// promptToken reads the token without echoing when stdin is a terminal,
// falling back to a plain line read for piped input.
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Token: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// clientToken resolves the token for client subcommands: environment
// first, then the keyring.
func clientToken() string {
	if t := os.Getenv("MASC_TOKEN"); t != "" {
		return t
	}
	t, err := auth.LoadToken()
	if err != nil {
		return ""
	}
	return t
}
