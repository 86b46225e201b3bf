package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/digestai/digestai/browser"
	"github.com/digestai/digestai/config"
	"github.com/digestai/digestai/history"
	"github.com/digestai/digestai/log"
	"github.com/digestai/digestai/notify"
	"github.com/digestai/digestai/research"
	"github.com/digestai/digestai/tracing"
)

// app holds the services built from a Config.
type app struct {
	assistant *research.Assistant
	runner    *browser.Runner
	history   history.Store
	provider  *sdktrace.TracerProvider
	closers   []io.Closer
}

func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	model, err := config.NewModel(cfg.LLM)
	if err != nil {
		return nil, err
	}
	searchers, err := config.NewSearchers(cfg.Search)
	if err != nil {
		return nil, err
	}

	checkpoints, closer, err := config.OpenCheckpointStore(ctx, cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}
	a.closers = append(a.closers, closer)

	a.assistant, err = research.NewAssistant(model, searchers,
		config.CheckpointSettings(checkpoints, cfg.Checkpoint), config.ResearchOptions(*cfg)...)
	if err != nil {
		return nil, err
	}

	a.history, closer, err = config.OpenHistoryStore(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	a.closers = append(a.closers, closer)

	a.runner = browser.NewRunner(sessionCreator(cfg.Anchor),
		browser.NewRodAgentFactory(browser.RodConnector{Timeout: 10 * time.Minute}),
		browser.WithHistoryStore(a.history),
		browser.WithNotifier(notifier(cfg.Email)),
		browser.WithMaxSteps(cfg.Anchor.MaxSteps),
	)

	if cfg.Tracing.Enabled {
		a.provider, err = tracerProvider(ctx, cfg.Tracing)
		if err != nil {
			return nil, err
		}
		a.assistant.SetTracer(tracing.NewTracer(a.provider))
	}
	return a, nil
}

// Close flushes traces and releases stores.
func (a *app) Close(ctx context.Context) {
	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			log.Warn("tracer shutdown: %v", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn("close: %v", err)
		}
	}
}

func sessionCreator(cfg config.AnchorConfig) browser.SessionCreator {
	var opts []browser.AnchorOption
	if cfg.BaseURL != "" {
		opts = append(opts, browser.WithAnchorBaseURL(cfg.BaseURL))
	}
	if cfg.ConnectURL != "" {
		opts = append(opts, browser.WithAnchorConnectURL(cfg.ConnectURL))
	}
	client, err := browser.NewAnchorClient(cfg.APIKey, opts...)
	if err != nil {
		log.Warn("browser tasks disabled: %v", err)
		return browser.UnavailableSessions{}
	}
	return client
}

func notifier(cfg config.EmailConfig) notify.Notifier {
	if cfg.Address == "" || cfg.Password == "" {
		return notify.NoopNotifier{}
	}
	n := notify.NewSMTPNotifier(cfg.Address, cfg.Password)
	if cfg.Host != "" {
		n.Host = cfg.Host
	}
	if cfg.Port > 0 {
		n.Port = cfg.Port
	}
	return n
}

func tracerProvider(ctx context.Context, cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	return tracing.NewProvider(exporter), nil
}
