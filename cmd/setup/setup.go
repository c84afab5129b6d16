// Package setup wires configuration, logging, tracing, the cache store and
// the engine together for the subcommands.
package setup

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nrtkbb/disktree/app"
	"github.com/nrtkbb/disktree/cmd/version"
	"github.com/nrtkbb/disktree/config"
	"github.com/nrtkbb/disktree/db"
	"github.com/nrtkbb/disktree/progress"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ConfigFlag registers the -config flag shared by every subcommand.
func ConfigFlag(f *flag.FlagSet, p *string) {
	f.StringVar(p, "config", "", "config file path (default ~/.config/disktree/config.yaml)")
}

// LoadConfig loads the config at path, or at the default location when path
// is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return config.GetDefault(), nil
		}
	}
	return config.Load(path)
}

type Env struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *db.Store
	Engine *app.Engine

	tp *sdktrace.TracerProvider
}

// Open loads the config and builds everything a command needs. The caller
// must Close the returned Env.
func Open(configPath string) (*Env, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	env := &Env{Config: cfg, Logger: logger}
	if cfg.Trace.Enabled {
		if env.tp, err = initTracer(); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	env.Store, err = db.OpenStore(cfg.CacheDir, logger)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Engine = app.New(env.Store,
		app.WithLogger(logger),
		app.WithWorkers(cfg.Scan.Workers),
		app.WithProgress(progress.Options{
			Interval: cfg.Scan.ProgressInterval,
			Buffer:   cfg.Scan.ProgressBuffer,
		}),
	)
	return env, nil
}

func (e *Env) Close() {
	if e.Engine != nil {
		e.Engine.Close()
	}
	if e.tp != nil {
		if err := e.tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}
}

// initTracer initializes the OpenTelemetry tracer provider
func initTracer() (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	resource := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("disktree"),
		semconv.ServiceVersion(version.Version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

// SignalContext returns a context cancelled by the first SIGINT or SIGTERM.
// After that the default signal behaviour is restored, so a second Ctrl+C
// exits immediately.
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-ctx.Done():
		case sig := <-sigChan:
			log.Printf("Received signal: %v", sig)
			log.Println("Press Ctrl+C again to force quit. Wait for normal shutdown to complete...")
			cancel()
		}
	}()

	return ctx, cancel
}
