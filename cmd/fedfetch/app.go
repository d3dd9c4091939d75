package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanpama/fedfetch/internal/config"
	eventbus "github.com/hanpama/fedfetch/internal/eventbus"
	"github.com/hanpama/fedfetch/internal/fetch"
	"github.com/hanpama/fedfetch/internal/logging"
	"github.com/hanpama/fedfetch/internal/otel"
	"go.uber.org/zap"
)

// app is everything a command needs to execute fetch nodes.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	factory    *fetch.Factory
	dispatcher *fetch.Dispatcher

	closers []func() error
}

func newApp(configPath string) (_ *app, err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	sg, err := cfg.LoadSupergraph()
	if err != nil {
		return nil, err
	}
	connectors, err := cfg.ConnectorRegistry()
	if err != nil {
		return nil, err
	}
	services, closeServices, err := cfg.Services()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeServices)

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	opts := []fetch.Option{
		fetch.WithConnectors(connectors),
		fetch.WithSubscriptionConfig(cfg.Subscription),
		fetch.WithLogger(logger),
	}
	if cfg.StrictConnectors {
		opts = append(opts, fetch.WithStrictConnectors())
	}
	a.factory = fetch.NewFactory(sg, services, opts...)
	a.dispatcher = a.factory.Create()

	for _, info := range sg.Services() {
		if _, ok := services.Service(info.Name); !ok {
			logger.Warn("subgraph has no configured transport", zap.String("service", info.Name))
		}
	}
	return a, nil
}

// Close releases transports and flushes telemetry.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
