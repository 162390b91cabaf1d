package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/resp"
	"golang.org/x/sync/errgroup"

	"github.com/cuikangjie/redis-cli/internal/server"
	"github.com/cuikangjie/redis-cli/pkg/cache"
	"github.com/cuikangjie/redis-cli/pkg/codec"
	"github.com/cuikangjie/redis-cli/pkg/config"
	"github.com/cuikangjie/redis-cli/pkg/hashes"
	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

func startServer(t *testing.T, opts ...server.Option) (string, *cache.Databases) {
	t.Helper()

	dbs := cache.NewDatabases(4)
	srv := server.New("127.0.0.1:0", dbs, opts...)
	go func() { _ = srv.Start() }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv.Addr().String(), dbs
}

func newClient(t *testing.T, nodes ...string) *Client {
	t.Helper()

	cfg := config.DefaultClientConfig()
	cfg.Nodes = nodes
	cfg.RetryAttempts = 1
	cfg.ConnTimeout = 1
	c := NewWithConfig(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// freeAddr returns an address nothing is listening on.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestClientFacadeEndToEnd(t *testing.T) {
	ctx := context.Background()
	addr, dbs := startServer(t)
	cmds := hashes.New(newClient(t, addr), codec.JSON{})

	if _, err := cmds.HMSet(ctx, 1, "user:1", []hashes.FieldValue{
		{Field: "name", Value: "ada"},
		{Field: "visits", Value: 1},
	}); err != nil {
		t.Fatalf("HMSet: %v", err)
	}

	name, err := cmds.HGet(ctx, 1, "user:1", "name")
	if err != nil || name != "ada" {
		t.Errorf("HGet: got %#v, %v", name, err)
	}
	visits, err := cmds.HIncrBy(ctx, 1, "user:1", "visits", 2)
	if err != nil || visits != 3 {
		t.Errorf("HIncrBy: got %d, %v", visits, err)
	}

	// Switching databases on the same pooled connection.
	if v, err := cmds.HGet(ctx, 0, "user:1", "name"); err != nil || v != nil {
		t.Errorf("db 0 should be empty: got %#v, %v", v, err)
	}
	if v, err := cmds.HLen(ctx, 1, "user:1"); err != nil || v != 2 {
		t.Errorf("HLen db 1: got %d, %v", v, err)
	}

	ks, _ := dbs.Get(1)
	if ks.HLen("user:1") != 2 {
		t.Errorf("Expected the hash in database 1 on the server")
	}
}

func TestClientServerErrorIsNotRetried(t *testing.T) {
	ctx := context.Background()
	addr, _ := startServer(t)
	c := newClient(t, addr)

	if _, err := c.Dispatch(ctx, protocol.CmdHSet, 0, "k", "f", "text"); err != nil {
		t.Fatal(err)
	}

	_, err := c.Dispatch(ctx, protocol.CmdHIncrBy, 0, "k", "f", int64(1))
	var serverErr *protocol.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected *protocol.ServerError, got %T %v", err, err)
	}
	if serverErr.Message != "ERR hash value is not an integer" {
		t.Errorf("Unexpected message %q", serverErr.Message)
	}

	_, p, _ := c.poolFor("k")
	if active, idle := p.GetNumActive(), p.GetNumIdle(); active != 0 || idle != 1 {
		t.Errorf("Connection should go back to the pool: active=%d idle=%d", active, idle)
	}
}

// dropAfterRead accepts connections, reads one command from each and
// hangs up without replying.
func dropAfterRead(t *testing.T) (string, *atomic.Int64, func() []string) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })

	var (
		received atomic.Int64
		mu       sync.Mutex
		names    []string
	)
	go func() {
		for {
			nc, err := l.Accept()
			if err != nil {
				return
			}
			v, _, err := resp.NewReader(nc).ReadValue()
			if err == nil && len(v.Array()) > 0 {
				mu.Lock()
				names = append(names, v.Array()[0].String())
				mu.Unlock()
				received.Add(1)
			}
			_ = nc.Close()
		}
	}()

	return l.Addr().String(), &received, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), names...)
	}
}

func TestClientDoesNotResendWrittenCommand(t *testing.T) {
	addr, received, names := dropAfterRead(t)

	cfg := config.DefaultClientConfig()
	cfg.Nodes = []string{addr}
	cfg.RetryAttempts = 3
	c := NewWithConfig(cfg)
	defer c.Close()

	_, err := c.Dispatch(context.Background(), protocol.CmdHIncrBy, 0, "counter", "n", int64(1))
	if !errors.Is(err, errWritten) {
		t.Fatalf("Expected errWritten, got %v", err)
	}
	if n := received.Load(); n != 1 {
		t.Errorf("Expected the command to be sent once, server saw %d", n)
	}
	if got := names(); len(got) != 1 || got[0] != protocol.CmdHIncrBy {
		t.Errorf("Expected one hincrby, got %v", got)
	}
}

func TestClientConcurrentIncrements(t *testing.T) {
	addr, _ := startServer(t)

	cfg := config.DefaultClientConfig()
	cfg.Nodes = []string{addr}
	cfg.MaxConnsPerNode = 2
	c := NewWithConfig(cfg)
	defer c.Close()
	cmds := hashes.New(c, codec.Raw{})

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := cmds.HIncrBy(ctx, 0, "counter", "n", 1)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("HIncrBy: %v", err)
	}

	n, err := cmds.HGet(context.Background(), 0, "counter", "n")
	if err != nil || n != "20" {
		t.Errorf("Expected 20, got %#v (%v)", n, err)
	}
}

func TestClientPing(t *testing.T) {
	addr1, _ := startServer(t)
	addr2, _ := startServer(t)
	c := newClient(t, addr1, addr2)

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	c.AddNode(freeAddr(t))
	if err := c.Ping(context.Background()); err == nil {
		t.Error("Expected Ping to fail with an unreachable node")
	}
}

func TestClientUnreachableNode(t *testing.T) {
	c := newClient(t, freeAddr(t))

	_, err := c.Dispatch(context.Background(), protocol.CmdHGet, 0, "k", "f")
	if err == nil || !strings.Contains(err.Error(), "command failed after 2 attempts") {
		t.Errorf("Expected retry exhaustion, got %v", err)
	}
}

func TestClientCanceledContext(t *testing.T) {
	addr, _ := startServer(t)
	c := newClient(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Dispatch(ctx, protocol.CmdHGet, 0, "k", "f"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestClientClosed(t *testing.T) {
	addr, _ := startServer(t)
	c := newClient(t, addr)

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Dispatch(context.Background(), protocol.CmdHLen, 0, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Ping, got %v", err)
	}
}

func TestClientNoNodes(t *testing.T) {
	addr, _ := startServer(t)
	c := newClient(t, addr)
	c.RemoveNode(addr)

	if _, err := c.Dispatch(context.Background(), protocol.CmdHLen, 0, "k"); !errors.Is(err, ErrNoNodes) {
		t.Errorf("Expected ErrNoNodes, got %v", err)
	}
	if len(c.Nodes()) != 0 {
		t.Errorf("Expected no nodes, got %v", c.Nodes())
	}
}

func TestClientRoutesKeysAcrossNodes(t *testing.T) {
	ctx := context.Background()
	addr1, dbs1 := startServer(t)
	addr2, dbs2 := startServer(t)
	stores := map[string]*cache.Databases{addr1: dbs1, addr2: dbs2}

	c := newClient(t, addr1, addr2)
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("user:%d", i)
		if _, err := c.Dispatch(ctx, protocol.CmdHSet, 0, key, "id", i); err != nil {
			t.Fatalf("hset %s: %v", key, err)
		}
	}

	counts := map[string]int{}
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("user:%d", i)
		owner := c.ring.Locate(key)
		counts[owner]++

		for addr, dbs := range stores {
			ks, _ := dbs.Get(0)
			if got := ks.HLen(key) == 1; got != (addr == owner) {
				t.Errorf("%s: present on %s = %v, owner is %s", key, addr, got, owner)
			}
		}
	}
	if counts[addr1] == 0 || counts[addr2] == 0 {
		t.Errorf("Expected keys on both nodes, got %v", counts)
	}
}

func TestClientAuth(t *testing.T) {
	addr, _ := startServer(t, server.WithPassword("secret"))

	cfg := config.DefaultClientConfig()
	cfg.Nodes = []string{addr}
	cfg.Password = "secret"
	c := NewWithConfig(cfg)
	defer c.Close()

	if _, err := c.Dispatch(context.Background(), protocol.CmdHLen, 0, "k"); err != nil {
		t.Errorf("Expected AUTH to succeed, got %v", err)
	}

	cfg = config.DefaultClientConfig()
	cfg.Nodes = []string{addr}
	cfg.Password = "wrong"
	cfg.RetryAttempts = 0
	bad := NewWithConfig(cfg)
	defer bad.Close()

	_, err := bad.Dispatch(context.Background(), protocol.CmdHLen, 0, "k")
	if err == nil || !strings.Contains(err.Error(), "WRONGPASS") {
		t.Errorf("Expected WRONGPASS, got %v", err)
	}
}

func TestNewWithConfigPanicsOnInvalidConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected a panic")
		}
	}()

	cfg := config.DefaultClientConfig()
	cfg.Nodes = nil
	NewWithConfig(cfg)
}
