package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	pool "github.com/jolestar/go-commons-pool/v2"
	"github.com/tidwall/resp"

	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

// errWritten marks a failure that happened after the command reached the
// wire; such commands are not retried because the server may have run them.
var errWritten = errors.New("client: reply lost after write")

// conn is one RESP connection. It remembers which database it has
// selected so SELECT is only sent when the target changes.
type conn struct {
	nc           net.Conn
	rd           *resp.Reader
	addr         string
	db           int
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// do sends cmd and reads its reply, selecting cmd.DB first if needed.
// ctx cancellation interrupts blocking I/O by expiring the deadline.
func (c *conn) do(ctx context.Context, cmd *protocol.Command) (interface{}, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if c.db != cmd.DB {
		if _, err := c.roundTrip(ctx, protocol.CmdSelect, strconv.Itoa(cmd.DB)); err != nil {
			return nil, err
		}
		c.db = cmd.DB
	}

	if err := c.write(ctx, cmd.Strings()...); err != nil {
		return nil, err
	}
	reply, err := c.read(ctx)
	if err != nil && !protocol.IsServerError(err) {
		return nil, fmt.Errorf("%w: %w", errWritten, err)
	}
	return reply, err
}

func (c *conn) roundTrip(ctx context.Context, words ...string) (interface{}, error) {
	if err := c.write(ctx, words...); err != nil {
		return nil, err
	}
	return c.read(ctx)
}

func (c *conn) write(ctx context.Context, words ...string) error {
	if err := c.nc.SetWriteDeadline(deadline(ctx, c.writeTimeout)); err != nil {
		return err
	}
	return protocol.WriteWords(c.nc, words...)
}

func (c *conn) read(ctx context.Context) (interface{}, error) {
	if err := c.nc.SetReadDeadline(deadline(ctx, c.readTimeout)); err != nil {
		return nil, err
	}
	return protocol.ReadReply(c.rd)
}

func (c *conn) close() error {
	return c.nc.Close()
}

// deadline is now+timeout, or the context deadline when that is sooner.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// connFactory creates connections to a single node for the object pool.
type connFactory struct {
	addr         string
	password     string
	connTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// MakeObject dials the node and authenticates when a password is set.
func (f *connFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	dialer := net.Dialer{Timeout: f.connTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", f.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", f.addr, err)
	}

	c := &conn{
		nc:           nc,
		rd:           resp.NewReader(nc),
		addr:         f.addr,
		readTimeout:  f.readTimeout,
		writeTimeout: f.writeTimeout,
	}

	if f.password != "" {
		if _, err := c.roundTrip(ctx, protocol.CmdAuth, f.password); err != nil {
			_ = c.close()
			return nil, fmt.Errorf("auth %s: %w", f.addr, err)
		}
	}

	return pool.NewPooledObject(c), nil
}

// DestroyObject closes the connection.
func (f *connFactory) DestroyObject(_ context.Context, object *pool.PooledObject) error {
	c, ok := object.Object.(*conn)
	if !ok {
		return errors.New("type mismatch")
	}
	return c.close()
}

// ValidateObject is not used; broken connections are invalidated on error.
func (f *connFactory) ValidateObject(_ context.Context, _ *pool.PooledObject) bool {
	return true
}

// ActivateObject has nothing to prepare.
func (f *connFactory) ActivateObject(_ context.Context, _ *pool.PooledObject) error {
	return nil
}

// PassivateObject keeps the selected database; the next user re-selects
// only if it needs another one.
func (f *connFactory) PassivateObject(_ context.Context, _ *pool.PooledObject) error {
	return nil
}
