package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/ptyserver"
)

var (
	host        string
	replayBytes int
	logLevel    string
	dev         bool
)

var rootCmd = &cobra.Command{
	Use:   "terminal-server <port> <directory> <command>",
	Short: "Serve a shell on a pseudo-terminal over a websocket",
	Long: `terminal-server runs <command> under "sh -c" in <directory> on a
pseudo-terminal and serves it at ws://<host>:<port>/ws.

It exits when the command exits. An empty command runs $SHELL.`,
	Args:          cobra.ExactArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "127.0.0.1", "Listen address")
	rootCmd.Flags().IntVar(&replayBytes, "replay-bytes", logging.DefaultRingSize, "Output retained for late clients")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	rootCmd.Flags().BoolVar(&dev, "dev", false, "Console log output")
}

func run(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[0])
	}
	dir := args[1]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	lc := logging.DefaultConfig()
	if dev {
		lc = logging.DevelopmentConfig()
	}
	lc.Level = logLevel
	logger, err := logging.New(lc)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}

	srv, err := ptyserver.Start(ptyserver.Config{
		Command:     args[2],
		Dir:         dir,
		ReplayBytes: replayBytes,
	}, logger.Named("terminal-server"))
	if err != nil {
		ln.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	if err := srv.Serve(ctx, ln); err != nil {
		return err
	}
	logger.Debug("command exited", zap.Error(srv.Wait()))
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "terminal-server:", err)
		os.Exit(1)
	}
}
