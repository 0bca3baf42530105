package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xReLogic/nerdrelay/internal/config"
	"github.com/0xReLogic/nerdrelay/internal/logging"
	"github.com/0xReLogic/nerdrelay/internal/nerdgraph"
	"github.com/0xReLogic/nerdrelay/internal/relay"
	tlsutils "github.com/0xReLogic/nerdrelay/internal/tls"
	"github.com/0xReLogic/nerdrelay/internal/tracing"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "nerdrelay",
		Short: "Serve the dashboard page and relay its NerdGraph queries",
		Long: `
nerdrelay serves a single static HTML page and forwards the page's GraphQL
requests to the New Relic NerdGraph API. Every request carries its own API key;
the relay injects it as a header and never stores it.
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	cmd.Flags().String("port", "5001", "Port to listen on")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := logging.Init(cfg.Logging.Level, cfg.Logging.Environment); err != nil {
		return errors.Wrap(err, "failed to initialize logging")
	}
	defer logging.Sync()
	log := logging.GetLogger()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracing(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			log.Error("tracing_init_failed", zap.Error(err))
		} else {
			defer shutdown()
			log.Info("tracing_initialized",
				zap.String("service", cfg.Tracing.ServiceName),
				zap.String("endpoint", cfg.Tracing.Endpoint),
			)
		}
	}

	indexPath := cfg.LocateIndex()
	if indexPath == "" {
		log.Error("index_not_found", zap.String("index_file", cfg.IndexFile))
	} else {
		log.Info("index_found", zap.String("path", indexPath))
	}

	upstream, err := nerdgraph.NewHTTPClient(cfg.Upstream)
	if err != nil {
		return err
	}

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		certManager, err := tlsutils.NewCertManager(cfg.TLS.CertDir)
		if err != nil {
			return err
		}
		tlsConfig = certManager.ServerTLSConfig()
		log.Info("tls_certificate_ready", zap.String("cert_dir", cfg.TLS.CertDir))
	}

	handler := relay.New(upstream, indexPath).Routes(cfg.CORS.AllowedOrigin)
	server := relay.NewServer(":"+cfg.ListenPort, handler, tlsConfig)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	log.Info("nerdrelay_started",
		zap.String("listen_port", cfg.ListenPort),
		zap.String("upstream", cfg.Upstream.URL),
		zap.Duration("upstream_timeout", cfg.Upstream.Timeout),
	)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	log.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown")
	}
	return <-errCh
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
