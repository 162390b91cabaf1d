package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cuikangjie/redis-cli/internal/server"
	"github.com/cuikangjie/redis-cli/pkg/cache"
	"github.com/cuikangjie/redis-cli/pkg/config"
	"github.com/cuikangjie/redis-cli/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run serves until ctx is done and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg, err := config.LoadServerConfig(fs, args)
	if err != nil {
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 2
	}

	logger := logging.New(cfg.LogLevel, stderr)
	logger.Info().
		Str("addr", cfg.Address()).
		Int("databases", cfg.Databases).
		Msg("starting redis-cli server")

	srv := server.New(cfg.Address(), cache.NewDatabases(cfg.Databases), server.WithLogger(logger))

	served := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(served)
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		// A signal can arrive before the listener is bound; Stop only
		// works once it is.
		select {
		case <-srv.Ready():
		case <-served:
			return nil
		}
		logger.Info().Msg("shutting down server")
		return srv.Stop()
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server failed")
		return 1
	}
	logger.Info().Msg("server stopped")
	return 0
}
