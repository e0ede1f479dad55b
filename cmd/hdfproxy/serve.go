package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-hdfproxy/internal/etp"
	"github.com/robert-malhotra/go-hdfproxy/pkg/logging"
	"github.com/robert-malhotra/go-hdfproxy/proxy"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var cfg serveConfig
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one file to remote array sessions.",
		Long: "Serve one HDF5 file over websocket at /etp. The file is created if it does not exist. " +
			"Prometheus metrics are exposed at /metrics on --metrics-addr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.file == "" {
				return errors.New("--file is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.file, "file", "", "HDF5 file to serve.")
	cmd.Flags().StringVar(&cfg.addr, "addr", ":9002", "Address for the protocol endpoint.")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", ":9090", "Address for the metrics endpoint, empty to disable.")
	cmd.Flags().StringVar(&cfg.serverName, "server-name", "hdfproxy", "Application name announced to clients.")
	cmd.Flags().Uint64Var(&cfg.chunkBytes, "chunk-bytes", 0, "Target chunk size of compressed datasets, 0 for the default.")
	return cmd
}

type serveConfig struct {
	file        string
	addr        string
	metricsAddr string
	serverName  string
	chunkBytes  uint64
}

// handler opens the served file and returns the protocol endpoint for it.
func (cfg serveConfig) handler(ctx context.Context, reg prometheus.Registerer) (*proxy.LocalSession, http.Handler, error) {
	session := proxy.NewLocalSession(cfg.file)
	session.SetChunkBytes(cfg.chunkBytes)
	if err := session.Open(ctx); err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.file, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/etp", etp.NewServer(proxy.NewBackend(session),
		etp.WithRegisterer(reg), etp.WithServerName(cfg.serverName)))
	return session, mux, nil
}

func serve(ctx context.Context, cfg serveConfig) error {
	log := logging.WithComponent("serve")

	session, mux, err := cfg.handler(ctx, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Error().Err(err).Str("file", cfg.file).Msg("closing file")
		}
	}()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", cfg.addr).Str("file", cfg.file).Msg("serving arrays")
		return listenAndServe(ctx, cfg.addr, mux)
	})
	if cfg.metricsAddr != "" {
		metrics := http.NewServeMux()
		metrics.Handle("/metrics", promhttp.Handler())
		eg.Go(func() error {
			log.Info().Str("addr", cfg.metricsAddr).Msg("serving metrics")
			return listenAndServe(ctx, cfg.metricsAddr, metrics)
		})
	}
	return eg.Wait()
}

// listenAndServe serves h on addr until ctx is cancelled, then shuts the
// server down gracefully.
func listenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     h,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
