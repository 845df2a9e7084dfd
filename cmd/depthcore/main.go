// depthcore - Structure Core depth sensor service
//
// depthcore owns one or more Structure Core sensors through a capture
// layer, keeps their lifecycle state in SQLite, mirrors events onto MQTT,
// samples stream telemetry into InfluxDB and serves a REST/WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The --config flag falls back to
// DEPTHCORE_CONFIG and then configs/config.yaml.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "depthcore",
		Short: "Structure Core depth sensor service",
		Long: `depthcore drives Structure Core depth sensors through a capture layer,
records their lifecycle in SQLite and exposes them over MQTT and HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $DEPTHCORE_CONFIG or configs/config.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newListCmd(&configPath),
		newTokenCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "depthcore %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
