package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pmon/internal/checks"
	"pmon/internal/config"
	"pmon/internal/server"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pmon",
		Short:         "Multi-tenant port and ping monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newProbeCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, alerting and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newProbeCmd() *cobra.Command {
	var (
		host     string
		port     int
		protocol string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run a single probe and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			setupLogger(cfg.Log)

			res := checks.NewManager(cfg.Checks).CheckPort(cmd.Context(), host, port, protocol, timeout)

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !res.Success {
				return fmt.Errorf("probe failed: %s", res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "target host name or address")
	cmd.Flags().IntVar(&port, "port", 0, "target port (ignored for ping)")
	cmd.Flags().StringVar(&protocol, "protocol", "tcp", "tcp, udp or ping")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "probe timeout (protocol default when 0)")
	cmd.MarkFlagRequired("host")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pmon %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		},
	}
}

// runServe starts the server and blocks until SIGINT or SIGTERM.
func runServe(parent context.Context) error {
	cfg := loadConfig()
	setupLogger(cfg.Log)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", Version).Msg("Starting PMON")
	return server.New(cfg).Start(ctx)
}

// loadConfig loads application configuration and terminates the program
// immediately if configuration cannot be loaded.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("Failed to load configuration")
	}
	return cfg
}

// setupLogger configures the global zerolog logger.
func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
