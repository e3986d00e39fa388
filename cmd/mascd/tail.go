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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/r3labs/sse/v2"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream room notifications from a running server",
	Long: heredoc.Doc(`
		Subscribe to the server's SSE stream and print every notification
		as it arrives. With --since, retained events after that sequence
		number are replayed first.`),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().Int64("since", -1, "replay retained events after this seq (-1 = live only)")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	since, _ := cmd.Flags().GetInt64("since")

	client := sse.NewClient(addr + "/sse")
	if token := clientToken(); token != "" {
		client.Headers["Authorization"] = "Bearer " + token
	}
	if since >= 0 {
		client.Headers["Last-Event-ID"] = fmt.Sprintf("%d", since)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := client.SubscribeWithContext(ctx, "message", func(msg *sse.Event) {
		if len(msg.Data) == 0 {
			return
		}
		if len(msg.ID) > 0 {
			fmt.Printf("%s %s %s\n", msg.ID, msg.Event, msg.Data)
		} else {
			fmt.Printf("- %s %s\n", msg.Event, msg.Data)
		}
	})
	if ctx.Err() != nil {
		return nil // interrupted by the user
	}
	return err
}
