// Package client provides the RESP dispatcher used by the hash command facade.
//
// The client selects a server node for every key with consistent hashing,
// keeps a pool of connections per node, and retries commands that failed
// before reaching the server. It speaks plain RESP, so it works against the
// bundled server as well as any Redis-compatible server.
//
// Key Features:
//   - Consistent hashing for automatic node selection
//   - Connection pooling per server node
//   - Per-connection database tracking (SELECT only when it changes)
//   - Automatic retry of commands that never reached the server
//   - Thread-safe operations
//
// Basic Usage:
//
//	c := client.New([]string{"server1:6380", "server2:6380"})
//	defer c.Close()
//
//	cmds := hashes.New(c, codec.JSON{})
//	cmds.HSet(ctx, 0, "user:123:profile", "name", "John Doe")
//	profile, err := cmds.HGetAll(ctx, 0, "user:123:profile")
//
// Advanced Configuration:
//
//	cfg := config.DefaultClientConfig()
//	cfg.Nodes = []string{"node1:6380", "node2:6380"}
//	cfg.MaxConnsPerNode = 20
//	cfg.RetryAttempts = 5
//	c := client.NewWithConfig(cfg, client.WithLogger(logger))
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pool "github.com/jolestar/go-commons-pool/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuikangjie/redis-cli/pkg/config"
	"github.com/cuikangjie/redis-cli/pkg/protocol"
	"github.com/cuikangjie/redis-cli/pkg/ring"
)

var (
	// ErrNoNodes is returned when the ring has no node for a key.
	ErrNoNodes = errors.New("client: no available nodes")
	// ErrClosed is returned by every call made after Close.
	ErrClosed = errors.New("client: closed")
)

// Client is a RESP dispatcher over a set of server nodes.
//
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	config *config.ClientConfig
	ring   *ring.Ring
	pools  map[string]*pool.ObjectPool // Connection pools per node
	logger zerolog.Logger
	mu     sync.RWMutex // Protects pools and closed
	closed bool
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the logger used for retries and connection problems.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for nodes using configuration loaded from the
// environment.
//
// Example:
//
//	c := client.New([]string{"cache1:6380", "cache2:6380", "cache3:6380"})
//	defer c.Close()
func New(nodes []string, opts ...Option) *Client {
	cfg := config.LoadClientConfig()
	cfg.Nodes = nodes

	return NewWithConfig(cfg, opts...)
}

// NewWithConfig creates a Client using the provided configuration.
// No connection is opened until the first command.
//
// Panics:
//   - If the configuration is invalid (fails validation)
func NewWithConfig(cfg *config.ClientConfig, opts ...Option) *Client {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid client config: %v", err))
	}

	c := &Client{
		config: cfg,
		ring:   ring.New(cfg.VirtualNodes),
		pools:  make(map[string]*pool.ObjectPool),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, node := range cfg.Nodes {
		c.AddNode(node)
	}

	return c
}

// AddNode adds a server node to the ring and creates its connection pool.
// Keys owned by the new node move to it on their next command.
func (c *Client) AddNode(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.ring.Add(address)
	if _, exists := c.pools[address]; !exists {
		c.pools[address] = c.newPool(address)
	}
}

// RemoveNode takes a server node off the ring and closes its pool.
func (c *Client) RemoveNode(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring.Remove(address)
	if p, exists := c.pools[address]; exists {
		p.Close(context.Background())
		delete(c.pools, address)
	}
}

// Nodes returns the addresses currently on the ring.
func (c *Client) Nodes() []string {
	return c.ring.Nodes()
}

// Close closes every connection pool. Further calls return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for address, p := range c.pools {
		p.Close(context.Background())
		delete(c.pools, address)
	}
	return nil
}

func (c *Client) newPool(address string) *pool.ObjectPool {
	factory := &connFactory{
		addr:         address,
		password:     c.config.Password,
		connTimeout:  c.config.ConnTimeoutDuration(),
		readTimeout:  c.config.ReadTimeoutDuration(),
		writeTimeout: c.config.WriteTimeoutDuration(),
	}

	poolConfig := pool.NewDefaultPoolConfig()
	poolConfig.MaxTotal = c.config.MaxConnsPerNode
	poolConfig.MaxIdle = c.config.MaxConnsPerNode
	poolConfig.BlockWhenExhausted = true

	return pool.NewObjectPool(context.Background(), factory, poolConfig)
}

// poolFor returns the node and pool responsible for key.
func (c *Client) poolFor(key string) (string, *pool.ObjectPool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return "", nil, ErrClosed
	}

	node := c.ring.Locate(key)
	if node == "" {
		return "", nil, ErrNoNodes
	}

	p, exists := c.pools[node]
	if !exists {
		return "", nil, fmt.Errorf("no connection pool for node: %s", node)
	}
	return node, p, nil
}

// Dispatch sends command to the node owning key, in database db.
// It satisfies hashes.Dispatcher.
//
// Error replies from the server come back as *protocol.ServerError and
// are never retried. Transport failures are retried up to RetryAttempts
// times while the command has not yet been written; once it has, the
// failure is returned at once so non-idempotent commands such as HINCRBY
// are never applied twice.
func (c *Client) Dispatch(ctx context.Context, command string, db int, key string, args ...interface{}) (interface{}, error) {
	return c.executeCommand(ctx, protocol.NewCommand(command, db, key, args...))
}

// executeCommand runs cmd with the retry strategy described on Dispatch:
//  1. Determine target node using consistent hashing
//  2. Borrow a connection from that node's pool
//  3. Select the database if needed, send the command, read the reply
//  4. Return the connection on success or on an error reply
//  5. Invalidate the connection on a transport failure and retry
func (c *Client) executeCommand(ctx context.Context, cmd *protocol.Command) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node, p, err := c.poolFor(cmd.Key)
		if err != nil {
			return nil, err
		}

		obj, err := p.BorrowObject(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			c.logger.Debug().Err(err).Str("node", node).Int("attempt", attempt).Msg("borrow failed")
			continue
		}
		cn := obj.(*conn)

		reply, err := cn.do(ctx, cmd)
		if ctx.Err() != nil {
			c.discard(p, obj)
			return nil, ctx.Err()
		}
		if err == nil || protocol.IsServerError(err) {
			if retErr := p.ReturnObject(ctx, obj); retErr != nil {
				c.logger.Warn().Err(retErr).Str("node", node).Msg("return connection")
			}
			return reply, err
		}

		c.discard(p, obj)
		if errors.Is(err, errWritten) {
			return nil, err
		}

		lastErr = err
		c.logger.Debug().Err(err).Str("node", node).Str("cmd", cmd.Name).Int("attempt", attempt).Msg("retrying")
	}

	return nil, fmt.Errorf("command failed after %d attempts: %w", c.config.RetryAttempts+1, lastErr)
}

func (c *Client) discard(p *pool.ObjectPool, obj interface{}) {
	if err := p.InvalidateObject(context.Background(), obj); err != nil {
		c.logger.Warn().Err(err).Msg("invalidate connection")
	}
}

// Ping checks every node concurrently and returns the first failure.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClosed
	}
	pools := make(map[string]*pool.ObjectPool, len(c.pools))
	for node, p := range c.pools {
		pools[node] = p
	}
	c.mu.RUnlock()

	if len(pools) == 0 {
		return ErrNoNodes
	}

	g, ctx := errgroup.WithContext(ctx)
	for node, p := range pools {
		node, p := node, p
		g.Go(func() error {
			return ping(ctx, node, p)
		})
	}
	return g.Wait()
}

func ping(ctx context.Context, node string, p *pool.ObjectPool) error {
	obj, err := p.BorrowObject(ctx)
	if err != nil {
		return fmt.Errorf("ping %s: %w", node, err)
	}
	cn := obj.(*conn)

	reply, err := cn.roundTrip(ctx, protocol.CmdPing)
	if err != nil {
		_ = p.InvalidateObject(context.Background(), obj)
		return fmt.Errorf("ping %s: %w", node, err)
	}
	_ = p.ReturnObject(ctx, obj)

	if reply != "PONG" {
		return fmt.Errorf("ping %s: unexpected reply %v", node, reply)
	}
	return nil
}
