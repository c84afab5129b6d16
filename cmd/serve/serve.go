package serve

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/google/subcommands"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nrtkbb/disktree/api"
	"github.com/nrtkbb/disktree/cmd/setup"
)

type Command struct {
	configPath string
	addr       string
}

func (*Command) Name() string     { return "serve" }
func (*Command) Synopsis() string { return "Start HTTP server to serve the scan API" }
func (*Command) Usage() string {
	return `serve [-addr <host:port>] [-config <file>]:
  Start an HTTP server that scans directories and searches cached scans.
`
}

func (c *Command) SetFlags(f *flag.FlagSet) {
	setup.ConfigFlag(f, &c.configPath)
	f.StringVar(&c.addr, "addr", "", "address to listen on (default from config, :8080)")
}

func (c *Command) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	env, err := setup.Open(c.configPath)
	if err != nil {
		log.Printf("Failed to setup: %v", err)
		return subcommands.ExitFailure
	}
	defer env.Close()

	addr := c.addr
	if addr == "" {
		addr = env.Config.Server.Addr
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.NewHandler(env.Engine, env.Logger).Register(e)

	ctx, cancel := setup.SignalContext(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		// Running scans end their streams with scan-cancelled.
		env.Engine.Close()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shut down server: %v", err)
		}
	}()

	log.Printf("Starting server on %s...", addr)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Failed to start server: %v", err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
