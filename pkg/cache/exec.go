package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

// DefaultDatabases matches the number of logical databases a stock Redis
// server exposes.
const DefaultDatabases = 16

// ErrDBIndex is returned for a database index outside [0, Len()).
var ErrDBIndex = &protocol.ServerError{Message: "ERR DB index is out of range"}

// Databases is a fixed set of keyspaces addressed by index.
type Databases struct {
	spaces []*Cache
}

// NewDatabases creates n empty keyspaces. n <= 0 selects DefaultDatabases.
func NewDatabases(n int) *Databases {
	if n <= 0 {
		n = DefaultDatabases
	}
	spaces := make([]*Cache, n)
	for i := range spaces {
		spaces[i] = New()
	}
	return &Databases{spaces: spaces}
}

// Len returns the number of keyspaces.
func (d *Databases) Len() int {
	return len(d.spaces)
}

// Get returns keyspace db.
func (d *Databases) Get(db int) (*Cache, error) {
	if db < 0 || db >= len(d.spaces) {
		return nil, ErrDBIndex
	}
	return d.spaces[db], nil
}

// Dispatch executes a command in-process. It satisfies the facade's
// dispatcher contract without a network hop, returning the same reply
// shapes a RESP connection would.
func (d *Databases) Dispatch(ctx context.Context, command string, db int, key string, args ...interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := make([]string, 0, len(args)+2)
	words = append(words, command, key)
	for _, arg := range args {
		words = append(words, protocol.FormatArg(arg))
	}

	reply, err := d.Exec(db, words)
	if status, ok := reply.(Status); ok {
		return string(status), err
	}
	return reply, err
}

// Status is a simple-string reply such as OK.
type Status string

// StatusOK acknowledges a write.
const StatusOK Status = "OK"

// Exec runs one data command against keyspace db. words[0] is the command
// name (any case), the rest are its arguments.
//
// Replies use the RESP2 shapes: string, Status, int64, nil and
// []interface{}. Failures are *protocol.ServerError values.
func (d *Databases) Exec(db int, words []string) (interface{}, error) {
	if len(words) == 0 {
		return nil, protocol.ErrEmptyCommand
	}

	ks, err := d.Get(db)
	if err != nil {
		return nil, err
	}

	name := strings.ToLower(words[0])
	spec, ok := commandTable[name]
	if !ok {
		return nil, serverErrorf("ERR unknown command '%s'", words[0])
	}
	if !spec.arityOK(len(words)) {
		return nil, serverErrorf("ERR wrong number of arguments for '%s' command", name)
	}
	return spec.run(ks, words[1:])
}

// IsDataCommand reports whether Exec handles the named command.
func IsDataCommand(name string) bool {
	_, ok := commandTable[strings.ToLower(name)]
	return ok
}

type commandSpec struct {
	run func(ks *Cache, args []string) (interface{}, error)
	// arity follows the Redis convention: positive means exact word
	// count, negative means at least -arity words.
	arity int
	// pairs requires the words after the key to come in field/value pairs.
	pairs bool
}

func (s commandSpec) arityOK(n int) bool {
	if s.arity >= 0 && n != s.arity {
		return false
	}
	if s.arity < 0 && n < -s.arity {
		return false
	}
	if s.pairs && (n-2)%2 != 0 {
		return false
	}
	return true
}

var commandTable map[string]commandSpec

func init() {
	commandTable = map[string]commandSpec{
		protocol.CmdHGet:         {arity: 3, run: execHGet},
		protocol.CmdHMGet:        {arity: -3, run: execHMGet},
		protocol.CmdHSet:         {arity: -4, pairs: true, run: execHSet},
		protocol.CmdHMSet:        {arity: -4, pairs: true, run: execHMSet},
		protocol.CmdHDel:         {arity: -3, run: execHDel},
		protocol.CmdHExists:      {arity: 3, run: execHExists},
		protocol.CmdHLen:         {arity: 2, run: execHLen},
		protocol.CmdHKeys:        {arity: 2, run: execHKeys},
		protocol.CmdHVals:        {arity: 2, run: execHVals},
		protocol.CmdHGetAll:      {arity: 2, run: execHGetAll},
		protocol.CmdHIncrBy:      {arity: 4, run: execHIncrBy},
		protocol.CmdHIncrByFloat: {arity: 4, run: execHIncrByFloat},
		protocol.CmdDel:          {arity: -2, run: execDel},
		protocol.CmdExists:       {arity: -2, run: execExists},
		protocol.CmdFlushDB:      {arity: -1, run: execFlushDB},
	}
}

func execHGet(ks *Cache, args []string) (interface{}, error) {
	if val, ok := ks.HGet(args[0], args[1]); ok {
		return val, nil
	}
	return nil, nil
}

func execHMGet(ks *Cache, args []string) (interface{}, error) {
	vals := ks.HMGet(args[0], args[1:]...)
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		if v != nil {
			out[i] = *v
		}
	}
	return out, nil
}

func execHSet(ks *Cache, args []string) (interface{}, error) {
	return int64(ks.HSet(args[0], args[1:]...)), nil
}

func execHMSet(ks *Cache, args []string) (interface{}, error) {
	ks.HSet(args[0], args[1:]...)
	return StatusOK, nil
}

func execHDel(ks *Cache, args []string) (interface{}, error) {
	return int64(ks.HDel(args[0], args[1:]...)), nil
}

func execHExists(ks *Cache, args []string) (interface{}, error) {
	if ks.HExists(args[0], args[1]) {
		return int64(1), nil
	}
	return int64(0), nil
}

func execHLen(ks *Cache, args []string) (interface{}, error) {
	return int64(ks.HLen(args[0])), nil
}

func execHKeys(ks *Cache, args []string) (interface{}, error) {
	return stringsReply(ks.HKeys(args[0])), nil
}

func execHVals(ks *Cache, args []string) (interface{}, error) {
	return stringsReply(ks.HVals(args[0])), nil
}

func execHGetAll(ks *Cache, args []string) (interface{}, error) {
	hash := ks.HGetAll(args[0])
	fields := sortedFields(hash)
	out := make([]interface{}, 0, len(fields)*2)
	for _, field := range fields {
		out = append(out, field, hash[field])
	}
	return out, nil
}

func execHIncrBy(ks *Cache, args []string) (interface{}, error) {
	delta, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return nil, serverErrorf("ERR value is not an integer or out of range")
	}
	n, err := ks.HIncrBy(args[0], args[1], delta)
	if err != nil {
		return nil, &protocol.ServerError{Message: err.Error()}
	}
	return n, nil
}

func execHIncrByFloat(ks *Cache, args []string) (interface{}, error) {
	delta, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return nil, serverErrorf("ERR value is not a valid float")
	}
	f, err := ks.HIncrByFloat(args[0], args[1], delta)
	if err != nil {
		return nil, &protocol.ServerError{Message: err.Error()}
	}
	return f, nil
}

func execDel(ks *Cache, args []string) (interface{}, error) {
	return int64(ks.Del(args...)), nil
}

func execExists(ks *Cache, args []string) (interface{}, error) {
	return int64(ks.Exists(args...)), nil
}

func execFlushDB(ks *Cache, _ []string) (interface{}, error) {
	ks.FlushDB()
	return StatusOK, nil
}

func stringsReply(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func serverErrorf(format string, args ...interface{}) error {
	return &protocol.ServerError{Message: fmt.Sprintf(format, args...)}
}
