package cli

import (
	"context"
	"crypto/tls"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/turdm/turc/mcpquic"
	"github.com/turdm/turc/observability"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve downloads as MCP tools",
		Long:  "Expose the registry and settings as MCP tools for AI clients. Speaks stdio by default so desktop clients can launch `turc mcp` directly; --quic serves remote agents instead.",
		Run:   runMCP,
	}

	cmd.Flags().String("config", "", "Config file (default: $TURC_CONFIG or ~/.turc/config.yaml)")
	cmd.Flags().String("engine", "", "Engine socket.io URL (overrides config)")
	cmd.Flags().String("quic", "", "Serve MCP over QUIC on this address instead of stdio")
	cmd.Flags().String("tls-cert", "", "TLS certificate for --quic (self-signed when empty)")
	cmd.Flags().String("tls-key", "", "TLS key for --quic")

	RootCmd.AddCommand(cmd)
}

func runMCP(cmd *cobra.Command, args []string) {
	cfg := loadDaemonConfig(cmd)

	// stdout can carry the MCP protocol, so logs go to stderr.
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		exitErr("mcp", err)
	}
	defer d.close()

	d.start(ctx)

	srv := mcp.NewServer(&mcp.Implementation{Name: "turc", Version: Version}, nil)
	d.reg.RegisterMCP(srv)
	d.store.RegisterMCP(srv)

	quicAddr, _ := cmd.Flags().GetString("quic")
	if quicAddr == "" {
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			exitErr("mcp", err)
		}
		return
	}

	certFile, _ := cmd.Flags().GetString("tls-cert")
	keyFile, _ := cmd.Flags().GetString("tls-key")
	var tlsCfg *tls.Config
	if certFile != "" && keyFile != "" {
		tlsCfg, err = mcpquic.ServerTLSConfig(certFile, keyFile)
	} else {
		tlsCfg, err = mcpquic.SelfSignedTLSConfig()
	}
	if err != nil {
		exitErr("mcp tls", err)
	}

	ln, err := mcpquic.NewListener(quicAddr, tlsCfg, srv, logger)
	if err != nil {
		exitErr("mcp listen", err)
	}
	defer ln.Close()

	logger.Info("mcp listening", "addr", quicAddr)
	if err := ln.Serve(ctx); err != nil && ctx.Err() == nil {
		exitErr("mcp", err)
	}
}
