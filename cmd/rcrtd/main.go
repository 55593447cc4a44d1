// Command rcrtd is the breadcrumb server process: it runs the HTTP
// surface, the hygiene worker, and the schema-hint cache refresher in
// one binary (§5: "a single process runs the HTTP server, the event
// publisher, the hygiene loop, the schema-hint cache refresher, and
// the embedding worker"). Adapted from the teacher's cmd/bd/main.go:
// package-level flag vars, a cobra.Command tree, and
// signal.NotifyContext(context.Background(), os.Interrupt,
// syscall.SIGTERM) for graceful shutdown. The CLI's own
// daemon-discovery/auto-start machinery has no analog here since this
// server has no companion CLI client to discover it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rcrtd",
	Short: "rcrtd - the RCRT breadcrumb server",
	Long:  "RCRT stores versioned, tagged breadcrumbs and projects them through llm_hints at read time.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to rcrt.yaml (optional; env vars always take precedence)")
}

// signalContext mirrors the teacher's PersistentPreRun context setup: a
// context canceled on SIGINT/SIGTERM so every subcommand shuts down
// cleanly instead of being killed mid-write.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
