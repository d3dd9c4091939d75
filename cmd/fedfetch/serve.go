package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanpama/fedfetch/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var configPath, addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve fetch node execution over HTTP",
		Long: `serve answers POST /fetch with the response of the fetch node in the body.
The body has the shape the fetch command reads; a JSON array runs a batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "fedfetch.yaml", "File path of the configuration")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overriding server.addr")
	return cmd
}

func (a *app) handler() http.Handler {
	sc := a.cfg.Server
	opts := []server.Option{server.WithLogger(a.logger.Named("server"))}
	if sc.Timeout > 0 {
		opts = append(opts, server.WithTimeout(sc.Timeout))
	}
	if sc.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if sc.MaxBodyBytes > 0 {
		opts = append(opts, server.WithMaxBodyBytes(sc.MaxBodyBytes))
	}
	if len(sc.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(sc.CORSOrigins...))
	}
	if len(sc.MetadataHeaders) > 0 {
		opts = append(opts, server.WithMetadataHeaders(sc.MetadataHeaders...))
	}

	mux := http.NewServeMux()
	mux.Handle("/fetch", server.New(a.dispatcher, opts...))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := a.dispatcher.Ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// serve runs the HTTP server until ctx is done, then drains it.
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: a.handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.logger.Info("fetch server listening", zap.String("addr", srv.Addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
