package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Ghost/common/environment"
	"github.com/bdobrica/Ghost/common/version"
	"github.com/bdobrica/Ghost/internal/ghost/app"
	"github.com/bdobrica/Ghost/internal/ghost/matrix"
	"github.com/bdobrica/Ghost/internal/ghost/observability"
)

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "ghost",
		Short:         "Ghost - a personal chat assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return observability.Setup(cmd.ErrOrStderr(), logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", environment.StringOr("LOG_LEVEL", "info"), "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", environment.StringOr("LOG_FORMAT", "text"), "log format: text or json")

	root.AddCommand(newServeCmd(), newChatCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web client and the Matrix transport",
		Args:  cobra.NoArgs,
	}
	addr := cmd.Flags().String("addr", environment.StringOr("GHOST_HTTP_ADDR", ":8080"), "HTTP listen address; empty disables the web server")
	db := cmd.Flags().String("db", environment.StringOr("GHOST_DATABASE_PATH", "./ghost.db"), "SQLite database path; empty keeps sessions in memory")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		config := loadConfig()
		config.HTTPAddr = *addr
		config.DatabasePath = *db

		ghost, err := app.New(config)
		if err != nil {
			return fmt.Errorf("failed to initialize Ghost: %w", err)
		}
		defer ghost.Stop()
		return ghost.Run()
	}
	return cmd
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with Ghost in the terminal",
		Args:  cobra.NoArgs,
	}
	sessionID := cmd.Flags().String("session", "console", "session id; reuse it to continue a conversation")
	db := cmd.Flags().String("db", environment.StringOr("GHOST_DATABASE_PATH", "./ghost.db"), "SQLite database path; empty keeps the session in memory")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		config := loadConfig()
		config.HTTPAddr = ""
		config.Matrix = matrix.Config{}
		config.DatabasePath = *db

		ghost, err := app.New(config)
		if err != nil {
			return fmt.Errorf("failed to initialize Ghost: %w", err)
		}
		defer ghost.Stop()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return ghost.Engine().ChatConsole(ctx, *sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Ghost %s\n", version.Info())
			fmt.Fprintf(cmd.OutOrStdout(), "Last updated: %s\n", version.LastUpdated)
		},
	}
}
