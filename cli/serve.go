package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turdm/turc/chassis"
	"github.com/turdm/turc/observability"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local daemon",
		Long:  "Connect to the engine, keep the download registry and serve the HTTP API the other commands (and the desktop shell) talk to.",
		Run:   runServe,
	}

	cmd.Flags().String("config", "", "Config file (default: $TURC_CONFIG or ~/.turc/config.yaml)")
	cmd.Flags().String("listen", "", "API bind address (overrides config)")
	cmd.Flags().String("engine", "", "Engine socket.io URL (overrides config)")

	RootCmd.AddCommand(cmd)
}

// loadDaemonConfig resolves the config file path (--config, then
// $TURC_CONFIG, then ~/.turc/config.yaml), loads it and applies the
// flags serve and mcp share. A missing file at the default location
// just means defaults.
func loadDaemonConfig(cmd *cobra.Command) *Config {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if path == "" {
		path = os.Getenv("TURC_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".turc", "config.yaml")
	}

	cfg, err := LoadConfigFile(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = &Config{}
	default:
		exitErr("load config", err)
	}

	if engineURL, _ := cmd.Flags().GetString("engine"); engineURL != "" {
		cfg.Engine.URL = engineURL
	}
	cfg.defaults()
	return cfg
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadDaemonConfig(cmd)
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		exitErr("serve", err)
	}
	defer d.close()

	d.start(ctx)

	srv := chassis.New(chassis.Config{Addr: cfg.Listen, Logger: logger})
	srv.Register(d.reg)
	srv.Register(d.store)

	if err := srv.Run(ctx); err != nil {
		exitErr("serve", err)
	}
}
