// Package protocol implements the RESP framing shared by the redis-cli client and server.
//
// Commands travel as RESP arrays of bulk strings; replies are read back into
// plain Go values so that every dispatch backend hands the same shapes to the
// hash command facade:
//
//   - simple and bulk strings: string
//   - integers: int64
//   - null bulk strings and null arrays: nil
//   - arrays: []interface{} (elements converted recursively)
//   - error replies: *ServerError
//
// Example usage:
//
//	cmd := protocol.NewCommand(protocol.CmdHSet, 0, "user:1", "name", "ada")
//	if err := protocol.WriteCommand(conn, cmd); err != nil {
//		return err
//	}
//	reply, err := protocol.ReadReply(resp.NewReader(conn))
package protocol

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/resp"
)

// Command names understood by the server and forwarded by the facade.
// They are sent lower-case, the same way the facade names them.
const (
	CmdHVals        = "hvals"
	CmdHKeys        = "hkeys"
	CmdHGetAll      = "hgetall"
	CmdHMGet        = "hmget"
	CmdHGet         = "hget"
	CmdHMSet        = "hmset"
	CmdHSet         = "hset"
	CmdHDel         = "hdel"
	CmdHExists      = "hexists"
	CmdHLen         = "hlen"
	CmdHIncrBy      = "hincrby"
	CmdHIncrByFloat = "hincrbyfloat"

	CmdPing    = "ping"
	CmdEcho    = "echo"
	CmdSelect  = "select"
	CmdQuit    = "quit"
	CmdDel     = "del"
	CmdExists  = "exists"
	CmdFlushDB = "flushdb"
	CmdInfo    = "info"
	CmdClient  = "client"
	CmdAuth    = "auth"
)

// ErrEmptyCommand is returned when a command has no name.
var ErrEmptyCommand = errors.New("protocol: empty command name")

// ServerError is an error reply sent by the server, such as
// "ERR hash value is not an integer". It is never retried by clients.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// IsServerError reports whether err is (or wraps) an error reply.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// Command is a single request addressed to a logical database.
// Args are already formatted as the strings that go on the wire.
type Command struct {
	Name string
	Key  string
	Args []string
	DB   int
}

// NewCommand builds a Command, formatting each argument with FormatArg.
func NewCommand(name string, db int, key string, args ...interface{}) *Command {
	formatted := make([]string, len(args))
	for i, arg := range args {
		formatted[i] = FormatArg(arg)
	}
	return &Command{Name: name, DB: db, Key: key, Args: formatted}
}

// Strings returns the command as its wire words: name, key, args.
// Keyless commands such as PING are written with WriteWords instead.
func (c *Command) Strings() []string {
	words := make([]string, 0, len(c.Args)+2)
	words = append(words, c.Name, c.Key)
	return append(words, c.Args...)
}

func (c *Command) String() string {
	return strings.Join(c.Strings(), " ")
}

// FormatArg converts a Go value into the string sent as a bulk argument.
// Floats use the shortest representation that round-trips.
func FormatArg(arg interface{}) string {
	switch v := arg.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// WriteCommand writes cmd to w as a RESP array of bulk strings.
func WriteCommand(w io.Writer, cmd *Command) error {
	if cmd.Name == "" {
		return ErrEmptyCommand
	}
	return WriteWords(w, cmd.Strings()...)
}

// WriteWords writes an arbitrary command line, e.g. SELECT 3.
func WriteWords(w io.Writer, words ...string) error {
	vals := make([]resp.Value, len(words))
	for i, word := range words {
		vals[i] = resp.StringValue(word)
	}
	if err := resp.NewWriter(w).WriteValue(resp.ArrayValue(vals)); err != nil {
		return fmt.Errorf("protocol: write command: %w", err)
	}
	return nil
}

// ReadReply reads one reply from rd. Transport failures are returned as
// errors; an error reply from the server is returned as *ServerError.
func ReadReply(rd *resp.Reader) (interface{}, error) {
	v, _, err := rd.ReadValue()
	if err != nil {
		return nil, err
	}
	return FromValue(v)
}

// FromValue converts a decoded RESP value into its Go form.
func FromValue(v resp.Value) (interface{}, error) {
	if v.IsNull() {
		return nil, nil
	}

	switch v.Type() {
	case resp.SimpleString, resp.BulkString:
		return v.String(), nil
	case resp.Integer:
		return int64(v.Integer()), nil
	case resp.Error:
		return nil, &ServerError{Message: v.String()}
	case resp.Array:
		elems := v.Array()
		out := make([]interface{}, len(elems))
		for i, elem := range elems {
			conv, err := FromValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("protocol: unsupported reply type %q", byte(v.Type()))
	}
}
