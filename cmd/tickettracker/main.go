package main

import (
	"os"

	"github.com/spf13/cobra"

	"tickettracker/internal/interfaces/cli/demo"
	"tickettracker/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "tickettracker",
		Short:        "TicketTracker - a self-hosted ticket tracker",
		Long:         `TicketTracker is a self-hosted ticket tracking web application with SLA coloring, clipboard summaries, and a demo mode for safe experimentation.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		demo.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
