package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/server"
)

var flags struct {
	configFile     string
	port           string
	host           string
	dev            bool
	logLevel       string
	surface        string
	terminalServer []string
	shell          string
}

var rootCmd = &cobra.Command{
	Use:           "webterm",
	Short:         "Terminal buffers rendered in an embedded page",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.configFile, "config", "", "Config file, TOML or YAML (overrides $"+config.FileEnv+")")
	f.StringVar(&flags.port, "port", "", "Server port")
	f.StringVar(&flags.host, "host", "", "Listen address")
	f.BoolVar(&flags.dev, "dev", false, "Development logging")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level")
	f.StringVar(&flags.surface, "surface", "", "Page renderer: chrome (default) or sandbox (inline scripts only)")
	f.StringSliceVar(&flags.terminalServer, "terminal-server", nil, "Terminal-server command")
	f.StringVar(&flags.shell, "shell", "", "Default shell command for new buffers")
}

// loadConfig reads env and file configuration, then applies the flags
// that were set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if flags.configFile != "" {
		os.Setenv(config.FileEnv, flags.configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("port") {
		cfg.Server.Port = flags.port
	}
	if set("host") {
		cfg.Server.Host = flags.host
	}
	if set("dev") {
		cfg.Logging.Development = flags.dev
	}
	if set("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if set("surface") {
		cfg.Surface.Driver = flags.surface
	}
	if set("terminal-server") {
		cfg.Terminal.ServerCommand = flags.terminalServer
	}
	if set("shell") {
		cfg.Terminal.Shell = flags.shell
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "webterm:", err)
		os.Exit(1)
	}
}
