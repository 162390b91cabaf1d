// Command hashctl runs a single hash command and prints the reply as JSON.
//
//	hashctl [flags] <command> <key> [args...]
//
// Examples:
//
//	hashctl -nodes localhost:6380 hset user:1 name ada
//	hashctl -db 2 hmset user:1 name ada lang go
//	hashctl hgetall user:1
//	hashctl -backend redis -codec raw hincrbyfloat stats:1 ratio 0.25
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/cuikangjie/redis-cli/pkg/cache"
	"github.com/cuikangjie/redis-cli/pkg/client"
	"github.com/cuikangjie/redis-cli/pkg/codec"
	"github.com/cuikangjie/redis-cli/pkg/config"
	"github.com/cuikangjie/redis-cli/pkg/goredis"
	"github.com/cuikangjie/redis-cli/pkg/hashes"
	"github.com/cuikangjie/redis-cli/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.LoadClientConfig()

	fs := flag.NewFlagSet("hashctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	config.BindClientFlags(fs, cfg)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: hashctl [flags] <command> <key> [args...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 2
	}

	logger := logging.New(cfg.LogLevel, stderr)

	d, closeFn, err := newDispatcher(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "backend: %v\n", err)
		return 1
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Warn().Err(err).Msg("close backend")
		}
	}()

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	cmds := hashes.New(hashes.WithLogging(d, logger), c)

	reply, err := execute(ctx, cmds, cfg.Database, fs.Arg(0), fs.Arg(1), fs.Args()[2:], cfg.Codec == config.CodecJSON)
	if err != nil {
		fmt.Fprintf(stderr, "(error) %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reply); err != nil {
		fmt.Fprintf(stderr, "encode reply: %v\n", err)
		return 1
	}
	return 0
}

// newDispatcher builds the configured backend and its cleanup function.
func newDispatcher(cfg *config.ClientConfig, logger zerolog.Logger) (hashes.Dispatcher, func() error, error) {
	switch cfg.Backend {
	case config.BackendRESP:
		c := client.NewWithConfig(cfg, client.WithLogger(logger))
		return c, c.Close, nil
	case config.BackendRedis:
		d, err := goredis.New(cfg)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	case config.BackendMemory:
		return cache.NewDatabases(config.DefaultDatabases), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
