// Command wslink keeps a resilient WebSocket session for a widget defined in a
// YAML file and runs host actions for the frames it receives.
package main

import (
	"fmt"
	"os"

	"github.com/bhandras/wslink/internal/config"
	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/version"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	server      string
	transport   string
	debug       bool
	logLevel    string
	metricsAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "wslink",
		Short:         "Resilient real-time session for a widget",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := applyFlags(cmd, flags, loaded); err != nil {
				return err
			}
			setupLogging(loaded)
			cfg = loaded
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.server, "server", "", "base URL endpoint identifiers are appended to (WSLINK_SERVER_URL)")
	pf.StringVar(&flags.transport, "transport", "", "transport: websocket or socketio (WSLINK_TRANSPORT)")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging (WSLINK_DEBUG)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (WSLINK_LOG_LEVEL)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (WSLINK_METRICS_ADDR)")

	cfgFn := func() *config.Config { return cfg }
	root.AddCommand(newConnectCmd(cfgFn), newServeCmd(cfgFn), newVersionCmd())
	return root
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, flags *rootFlags, cfg *config.Config) error {
	fs := cmd.Flags()
	if fs.Changed("server") {
		cfg.ServerURL = flags.server
	}
	if fs.Changed("transport") {
		if err := config.ValidateTransport(flags.transport); err != nil {
			return err
		}
		cfg.Transport = flags.transport
	}
	if fs.Changed("debug") {
		cfg.Debug = flags.debug
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}
	return nil
}

func setupLogging(cfg *config.Config) {
	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = logger.ParseLevel("debug")
	}
	logger.Setup(os.Stderr, level)
	logger.Debugf("config: server=%s home=%s transport=%s", cfg.ServerURL, cfg.Home, cfg.Transport)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wslink %s\n", version.Rich())
		},
	}
}
