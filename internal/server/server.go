// Package server implements the redis-cli RESP server on top of the in-memory hash store.
//
// The server accepts RESP connections through redcon, keeps the selected
// database per connection, and executes hash commands against
// cache.Databases. It is the development and test backend for the client
// dispatchers; any Redis-compatible client can talk to it.
//
// Example usage:
//
//	srv := server.New(":6380", cache.NewDatabases(16))
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//
// Supported commands:
//   - Hash operations: HGET, HSET, HMGET, HMSET, HDEL, HEXISTS, HLEN,
//     HKEYS, HVALS, HGETALL, HINCRBY, HINCRBYFLOAT
//   - Keyspace: DEL, EXISTS, FLUSHDB, SELECT
//   - Connection: PING, ECHO, AUTH, QUIT, CLIENT
//   - Introspection: INFO
package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/redcon"

	"github.com/cuikangjie/redis-cli/pkg/cache"
	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

// Version is reported by INFO.
const Version = "1.0.0"

// ErrNotServing is returned by Stop before Start has bound the listener.
var ErrNotServing = errors.New("server: not serving")

// session is the per-connection state kept in the redcon context.
type session struct {
	db     int
	authed bool
}

// Server represents a redis-cli server instance.
//
// Example:
//
//	srv := server.New(":6380", cache.NewDatabases(16))
//	go func() {
//		if err := srv.Start(); err != nil {
//			log.Printf("Server error: %v", err)
//		}
//	}()
//	<-srv.Ready()
//
//	// Later, to stop the server
//	srv.Stop()
type Server struct {
	dbs      *cache.Databases
	srv      *redcon.Server
	logger   zerolog.Logger
	password string
	started  time.Time
	ready    chan struct{}
	clients  atomic.Int64
	commands atomic.Int64
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPassword requires clients to AUTH before running data commands.
func WithPassword(password string) Option {
	return func(s *Server) {
		s.password = password
	}
}

// New creates a Server that will listen on addr once Start is called.
func New(addr string, dbs *cache.Databases, opts ...Option) *Server {
	s := &Server{
		dbs:    dbs,
		logger: zerolog.Nop(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = redcon.NewServer(addr, s.handle, s.accept, s.closed)
	return s
}

// Start binds the listener and serves connections. It blocks until Stop
// is called or the listener fails.
func (s *Server) Start() error {
	s.started = time.Now()

	signal := make(chan error, 1)
	go func() {
		if err := <-signal; err == nil {
			s.logger.Info().Str("addr", s.srv.Addr().String()).Msg("redis-cli server listening")
			close(s.ready)
		}
	}()

	if err := s.srv.ListenServeAndSignal(signal); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.srv.Addr()
}

// Stop closes the listener, which makes Start return.
func (s *Server) Stop() error {
	select {
	case <-s.ready:
	default:
		return ErrNotServing
	}
	return s.srv.Close()
}

func (s *Server) accept(conn redcon.Conn) bool {
	conn.SetContext(&session{authed: s.password == ""})
	s.clients.Add(1)
	s.logger.Debug().Str("remote", conn.RemoteAddr()).Msg("client connected")
	return true
}

func (s *Server) closed(conn redcon.Conn, err error) {
	s.clients.Add(-1)
	if err != nil {
		s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr()).Msg("client closed")
	}
}

// handle runs one command. Connection-level commands are answered here;
// data commands go to the store with the connection's selected database.
func (s *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	s.commands.Add(1)

	words := make([]string, len(cmd.Args))
	for i, arg := range cmd.Args {
		words[i] = string(arg)
	}
	name := strings.ToLower(words[0])

	sess, ok := conn.Context().(*session)
	if !ok {
		sess = &session{authed: s.password == ""}
		conn.SetContext(sess)
	}

	switch name {
	case protocol.CmdPing:
		if len(words) > 1 {
			conn.WriteBulkString(words[1])
			return
		}
		conn.WriteString("PONG")
	case protocol.CmdEcho:
		if len(words) != 2 {
			conn.WriteError(arityError(name))
			return
		}
		conn.WriteBulkString(words[1])
	case protocol.CmdQuit:
		conn.WriteString("OK")
		_ = conn.Close()
	case protocol.CmdAuth:
		s.handleAuth(conn, sess, words)
	case protocol.CmdClient:
		conn.WriteString("OK")
	case protocol.CmdSelect:
		if !s.authorized(conn, sess) {
			return
		}
		s.handleSelect(conn, sess, words)
	case protocol.CmdInfo:
		conn.WriteBulkString(s.info())
	default:
		if !s.authorized(conn, sess) {
			return
		}
		reply, err := s.dbs.Exec(sess.db, words)
		if err != nil {
			s.logger.Debug().Err(err).Str("cmd", name).Int("db", sess.db).Msg("command error")
		}
		writeReply(conn, reply, err)
	}
}

func (s *Server) authorized(conn redcon.Conn, sess *session) bool {
	if sess.authed {
		return true
	}
	conn.WriteError("NOAUTH Authentication required.")
	return false
}

func (s *Server) handleAuth(conn redcon.Conn, sess *session, words []string) {
	if len(words) != 2 {
		conn.WriteError(arityError(protocol.CmdAuth))
		return
	}
	if s.password == "" {
		conn.WriteError("ERR Client sent AUTH, but no password is set")
		return
	}
	if words[1] != s.password {
		conn.WriteError("WRONGPASS invalid username-password pair")
		return
	}
	sess.authed = true
	conn.WriteString("OK")
}

func (s *Server) handleSelect(conn redcon.Conn, sess *session, words []string) {
	if len(words) != 2 {
		conn.WriteError(arityError(protocol.CmdSelect))
		return
	}
	db, err := strconv.Atoi(words[1])
	if err != nil {
		conn.WriteError("ERR value is not an integer or out of range")
		return
	}
	if _, err := s.dbs.Get(db); err != nil {
		conn.WriteError(err.Error())
		return
	}
	sess.db = db
	conn.WriteString("OK")
}

// writeReply writes a store reply in RESP2 form.
func writeReply(conn redcon.Conn, reply interface{}, err error) {
	if err != nil {
		conn.WriteError(err.Error())
		return
	}

	switch v := reply.(type) {
	case nil:
		conn.WriteNull()
	case cache.Status:
		conn.WriteString(string(v))
	case string:
		conn.WriteBulkString(v)
	case int64:
		conn.WriteInt64(v)
	case []interface{}:
		conn.WriteArray(len(v))
		for _, item := range v {
			writeReply(conn, item, nil)
		}
	default:
		conn.WriteError(fmt.Sprintf("ERR unsupported reply type %T", reply))
	}
}

func arityError(name string) string {
	return fmt.Sprintf("ERR wrong number of arguments for '%s' command", name)
}
