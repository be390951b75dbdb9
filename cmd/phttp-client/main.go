// Command phttp-client selects routes and prepares boxed, segmented requests
// for the relay network.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"

	"github.com/cvsouth/phttp-go/client"
	"github.com/cvsouth/phttp-go/config"
	"github.com/cvsouth/phttp-go/instrument"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "phttp-client",
		Short:        "Route and prepare requests for the relay network",
		Version:      versioninfo.Short(),
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newKeygenCommand(),
		newRouteCommand(),
		newPrepareCommand(),
		newOpenCommand(),
		newInfoCommand(),
	)
	return cmd
}

// env is what commands working on a configured node pool share.
type env struct {
	cfg     *config.Config
	client  *client.Client
	logger  *slog.Logger
	metrics *instrument.Metrics
	closers []func() error
}

func loadEnv(configFile string) (*env, error) {
	if configFile == "" {
		return nil, errors.New("config file must be specified")
	}
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	if cfg.Metrics.Address != "" {
		e.metrics = instrument.New()
		if err := e.serveMetrics(cfg.Metrics.Address); err != nil {
			e.close()
			return nil, err
		}
	}

	e.client = client.New(cfg, client.WithLogger(logger), client.WithMetrics(e.metrics))
	e.client.RestoreCache()
	return e, nil
}

func (e *env) serveMetrics(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.metrics.Handler())
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Warn("metrics server stopped", "error", err)
		}
	}()
	e.logger.Debug("serving metrics", "address", l.Addr().String())
	e.closers = append(e.closers, srv.Close)
	return nil
}

func (e *env) close() {
	if e.client != nil {
		if err := e.client.SaveCache(); err != nil {
			e.logger.Warn("failed to cache exit info", "error", err)
		}
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}
