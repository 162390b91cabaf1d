// Package goredis adapts a go-redis client to the hash command facade.
//
// go-redis binds a client to one database, so the dispatcher keeps one
// client per database index and creates them on first use.
package goredis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cuikangjie/redis-cli/pkg/config"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("goredis: closed")

// Dispatcher sends facade commands through go-redis.
type Dispatcher struct {
	base    redis.Options
	clients cmap.ConcurrentMap[string, *redis.Client]
	closed  chan struct{}
	once    sync.Once
}

// New builds a Dispatcher for the first node in cfg.
func New(cfg *config.ClientConfig) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return NewWithOptions(redis.Options{
		Addr:         cfg.Nodes[0],
		Password:     cfg.Password,
		PoolSize:     cfg.MaxConnsPerNode,
		DialTimeout:  cfg.ConnTimeoutDuration(),
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		// Commands go out at most once; HINCRBY must not be replayed.
		MaxRetries: -1,
	}), nil
}

// NewWithOptions builds a Dispatcher from go-redis options. DB is ignored
// and Protocol is forced to RESP2 so replies keep their flat shapes.
func NewWithOptions(opts redis.Options) *Dispatcher {
	opts.DB = 0
	opts.Protocol = 2

	return &Dispatcher{
		base:    opts,
		clients: cmap.New[*redis.Client](),
		closed:  make(chan struct{}),
	}
}

// Dispatch runs command against db. A nil reply comes back as nil, nil.
func (d *Dispatcher) Dispatch(ctx context.Context, command string, db int, key string, args ...interface{}) (interface{}, error) {
	client, err := d.client(db)
	if err != nil {
		return nil, err
	}

	cmdArgs := make([]interface{}, 0, len(args)+2)
	cmdArgs = append(cmdArgs, command, key)
	cmdArgs = append(cmdArgs, args...)

	reply, err := client.Do(ctx, cmdArgs...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return reply, err
}

func (d *Dispatcher) client(db int) (*redis.Client, error) {
	select {
	case <-d.closed:
		return nil, ErrClosed
	default:
	}
	if db < 0 {
		return nil, fmt.Errorf("goredis: invalid database %d", db)
	}

	name := strconv.Itoa(db)
	if c, ok := d.clients.Get(name); ok {
		return c, nil
	}

	opts := d.base
	opts.DB = db
	c := redis.NewClient(&opts)
	if !d.clients.SetIfAbsent(name, c) {
		_ = c.Close()
		c, _ = d.clients.Get(name)
	}
	return c, nil
}

// Close closes every client. It is safe to call more than once.
func (d *Dispatcher) Close() error {
	var errs []error
	d.once.Do(func() {
		close(d.closed)
		errs = d.closeClients()
	})
	return errors.Join(errs...)
}

func (d *Dispatcher) closeClients() []error {
	var errs []error
	for item := range d.clients.IterBuffered() {
		if err := item.Val.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db %s: %w", item.Key, err))
		}
		d.clients.Remove(item.Key)
	}
	return errs
}
