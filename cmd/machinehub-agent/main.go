// Package main is the entrypoint for the MachineHub agent CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/machinehub/machinehub/internal/agent"
	"github.com/machinehub/machinehub/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "machinehub-agent",
		Short: "MachineHub telemetry agent",
		Long: `MachineHub Agent collects system telemetry and reports it to a
MachineHub server.

Run 'machinehub-agent configure' to connect to a server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigureCmd(),
		newStatusCmd(),
		newReportCmd(),
		newStartCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MachineHub Agent %s\n", Version)
			fmt.Printf("  Commit:     %s\n", Commit)
			fmt.Printf("  Built:      %s\n", BuildDate)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConfigureCmd() *cobra.Command {
	var (
		serverURL string
		secret    string
		machineID string
		interval  int
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure the agent's server connection",
		Long: `Configure the agent with the MachineHub server URL and webhook secret.

The secret must match the server's WEBHOOK_SECRET. Setting a machine ID is
optional; without one the server matches this machine by its source IP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := url.Parse(serverURL)
			if err != nil {
				return fmt.Errorf("invalid server URL: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return fmt.Errorf("server URL must use http or https scheme")
			}

			cfg, err := config.LoadDefault()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			cfg.ServerURL = strings.TrimSuffix(serverURL, "/")
			if secret != "" {
				cfg.WebhookSecret = secret
			}
			if machineID != "" {
				cfg.MachineID = machineID
			}
			if interval > 0 {
				cfg.IntervalSeconds = interval
			}

			if err := cfg.SaveDefault(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			configPath, _ := config.DefaultConfigPath()
			fmt.Printf("Configuration saved to %s\n", configPath)
			fmt.Printf("Server: %s\n", cfg.ServerURL)
			fmt.Println("Run 'machinehub-agent status' to verify the connection.")

			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "MachineHub server URL (required)")
	cmd.Flags().StringVar(&secret, "secret", "", "Webhook secret shared with the server")
	cmd.Flags().StringVar(&machineID, "machine-id", "", "Machine UUID assigned by the server")
	cmd.Flags().IntVar(&interval, "interval", 0, "Reporting interval in seconds")
	_ = cmd.MarkFlagRequired("server")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agent status and server connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if !cfg.IsConfigured() {
				fmt.Println("Status: Not configured")
				fmt.Println("Run 'machinehub-agent configure' to connect to a server.")
				return nil
			}

			fmt.Printf("Server:   %s\n", cfg.ServerURL)
			if cfg.MachineID != "" {
				fmt.Printf("Machine:  %s\n", cfg.MachineID)
			}
			fmt.Printf("Interval: %ds\n", cfg.Interval())
			fmt.Println()

			fmt.Print("Checking server connection... ")

			client := agent.NewClient(cfg.ServerURL, cfg.WebhookSecret, cfg.MachineID)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := client.CheckHealth(ctx); err != nil {
				fmt.Println("FAILED")
				return fmt.Errorf("connect to server: %w", err)
			}

			fmt.Println("OK")
			fmt.Println("Connection: Online")
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Collect telemetry and send a single report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("agent not configured: %w", err)
			}

			client := agent.NewClient(cfg.ServerURL, cfg.WebhookSecret, cfg.MachineID)
			collector := agent.NewCollector()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			doc, err := collector.Collect(ctx)
			if err != nil {
				return fmt.Errorf("collect telemetry: %w", err)
			}

			ack, err := client.Report(ctx, doc)
			if err != nil {
				if errors.Is(err, agent.ErrRejected) {
					return fmt.Errorf("server rejected the report: %w", err)
				}
				return fmt.Errorf("send report: %w", err)
			}

			fmt.Printf("Report accepted\n")
			fmt.Printf("  Machine:  %s\n", ack.MachineID)
			fmt.Printf("  Snapshot: %s\n", ack.SnapshotID)
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	var noSpool bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the agent daemon",
		Long: `Start the MachineHub agent as a long-running daemon process.

The daemon collects system telemetry on the configured interval and posts
it to the server's telemetry webhook. While the server is unreachable,
reports are spooled locally and delivered once it comes back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("agent not configured: %w", err)
			}

			return runDaemon(cfg, noSpool)
		},
	}

	cmd.Flags().BoolVar(&noSpool, "no-spool", false, "Disable local spooling of undelivered reports")

	return cmd
}

func runDaemon(cfg *config.AgentConfig, noSpool bool) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	client := agent.NewClient(cfg.ServerURL, cfg.WebhookSecret, cfg.MachineID)
	collector := agent.NewCollector()
	interval := time.Duration(cfg.Interval()) * time.Second

	fmt.Printf("MachineHub Agent %s starting...\n", Version)
	fmt.Printf("Server:   %s\n", cfg.ServerURL)
	fmt.Printf("Interval: %s\n", interval)

	var spool *agent.Spool
	if !noSpool {
		spoolPath := cfg.SpoolPath
		if spoolPath == "" {
			dir, err := config.DefaultConfigDir()
			if err != nil {
				return fmt.Errorf("resolve spool path: %w", err)
			}
			spoolPath = filepath.Join(dir, "spool.db")
		}

		store, err := agent.NewSQLiteSpool(spoolPath, logger)
		if err != nil {
			return fmt.Errorf("open spool: %w", err)
		}
		defer store.Close()

		spoolCfg := agent.DefaultSpoolConfig()
		spoolCfg.MaxReports = cfg.SpoolLimit()
		spool = agent.NewSpool(store, client, spoolCfg, logger)

		fmt.Printf("Spool:    %s (max %d reports)\n", spoolPath, spoolCfg.MaxReports)
	}
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := agent.NewRunner(collector, client, spool, interval, logger)
	runner.Start(ctx)
	defer runner.Stop()

	fmt.Println("Agent daemon running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	fmt.Printf("\nReceived %s, shutting down...\n", sig)
	return nil
}
