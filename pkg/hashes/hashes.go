// Package hashes exposes the hash (field-map) commands of a Redis-compatible
// store as typed Go methods.
//
// Each method builds a (command, db, key, args...) tuple, hands it to a
// Dispatcher and converts the raw reply. Values written to the store pass
// through the Codec's Encode; values read back pass through Decode. Nothing
// else happens here: connection handling, retries and timeouts belong to
// the Dispatcher, and errors from the Dispatcher or the Codec are returned
// exactly as they were produced.
//
// Example:
//
//	cmds := hashes.New(client.New([]string{"localhost:6380"}), codec.JSON{})
//
//	_, err := cmds.HMSet(ctx, 0, "user:1", []hashes.FieldValue{
//		{Field: "name", Value: "ada"},
//		{Field: "langs", Value: []string{"go", "c"}},
//	})
//	profile, err := cmds.HGetAll(ctx, 0, "user:1")
//
// A Commands value holds no mutable state and is safe for concurrent use
// whenever its Dispatcher and Codec are.
package hashes

import (
	"context"
	"sort"

	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

// Dispatcher sends one command to the store and returns the raw reply.
//
// Replies are expected in RESP2 shapes: string, int64, nil for "no value",
// and []interface{} for arrays. A map reply is also accepted for HGETALL.
type Dispatcher interface {
	Dispatch(ctx context.Context, command string, db int, key string, args ...interface{}) (interface{}, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, command string, db int, key string, args ...interface{}) (interface{}, error)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, command string, db int, key string, args ...interface{}) (interface{}, error) {
	return f(ctx, command, db, key, args...)
}

// Codec converts values at the boundary. Decode must accept nil (a missing
// field) and return nil without an error.
type Codec interface {
	Encode(v interface{}) (string, error)
	Decode(raw interface{}) (interface{}, error)
}

// FieldValue is one field/value pair for HMSet. A slice of them fixes the
// order in which pairs are sent.
type FieldValue struct {
	Field string
	Value interface{}
}

// SortedPairs turns a map into FieldValue pairs ordered by field name, for
// callers that hold an unordered map but want a reproducible command.
func SortedPairs(m map[string]interface{}) []FieldValue {
	pairs := make([]FieldValue, 0, len(m))
	for field, value := range m {
		pairs = append(pairs, FieldValue{Field: field, Value: value})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Field < pairs[j].Field })
	return pairs
}

// Commands is the hash command facade.
type Commands struct {
	dispatcher Dispatcher
	codec      Codec
}

// New returns a facade that sends commands through d and converts values
// with c.
func New(d Dispatcher, c Codec) *Commands {
	return &Commands{dispatcher: d, codec: c}
}

// HVals returns every value stored in the hash at key, decoded.
func (c *Commands) HVals(ctx context.Context, db int, key string) ([]interface{}, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHVals, db, key)
	if err != nil {
		return nil, err
	}
	return c.decodeList(protocol.CmdHVals, raw)
}

// HKeys returns every field name in the hash at key. Field names are not
// decoded.
func (c *Commands) HKeys(ctx context.Context, db int, key string) ([]string, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHKeys, db, key)
	if err != nil {
		return nil, err
	}
	return toStrings(protocol.CmdHKeys, raw)
}

// HGetAll returns the whole hash at key with every value decoded. The
// result has exactly the fields the store returned.
func (c *Commands) HGetAll(ctx context.Context, db int, key string) (map[string]interface{}, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHGetAll, db, key)
	if err != nil {
		return nil, err
	}

	hash, err := toFieldMap(protocol.CmdHGetAll, raw)
	if err != nil {
		return nil, err
	}
	for field, val := range hash {
		decoded, err := c.codec.Decode(val)
		if err != nil {
			return nil, err
		}
		hash[field] = decoded
	}
	return hash, nil
}

// HMGet returns the values of fields in the order requested. The result
// always has len(fields) entries; a field that does not exist decodes from
// the store's "no value" reply, which is nil for the bundled codecs.
func (c *Commands) HMGet(ctx context.Context, db int, key string, fields []string) ([]interface{}, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHMGet, db, key, stringArgs(fields)...)
	if err != nil {
		return nil, err
	}
	return c.decodeList(protocol.CmdHMGet, raw)
}

// HGet returns the decoded value of field, or the decoded "no value" reply
// (nil for the bundled codecs) when the field or key does not exist.
func (c *Commands) HGet(ctx context.Context, db int, key, field string) (interface{}, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHGet, db, key, field)
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(raw)
}

// HMSet writes every pair in one command. Arguments are sent as
// field1, Encode(value1), field2, Encode(value2), ... in slice order,
// without reordering or removing duplicate fields.
//
// Returns the store's acknowledgement, normally "OK".
func (c *Commands) HMSet(ctx context.Context, db int, key string, pairs []FieldValue) (string, error) {
	args := make([]interface{}, 0, len(pairs)*2)
	for _, p := range pairs {
		enc, err := c.codec.Encode(p.Value)
		if err != nil {
			return "", err
		}
		args = append(args, p.Field, enc)
	}

	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHMSet, db, key, args...)
	if err != nil {
		return "", err
	}
	return toStatus(protocol.CmdHMSet, raw)
}

// HSet encodes value and stores it in field.
//
// Returns the number of fields that were newly created (0 or 1).
func (c *Commands) HSet(ctx context.Context, db int, key, field string, value interface{}) (int64, error) {
	enc, err := c.codec.Encode(value)
	if err != nil {
		return 0, err
	}

	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHSet, db, key, field, enc)
	if err != nil {
		return 0, err
	}
	return toInt(protocol.CmdHSet, raw)
}

// HDel removes fields from the hash and returns how many existed.
func (c *Commands) HDel(ctx context.Context, db int, key string, fields []string) (int64, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHDel, db, key, stringArgs(fields)...)
	if err != nil {
		return 0, err
	}
	return toInt(protocol.CmdHDel, raw)
}

// HExists reports whether field exists in the hash.
func (c *Commands) HExists(ctx context.Context, db int, key, field string) (bool, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHExists, db, key, field)
	if err != nil {
		return false, err
	}
	return toBool(protocol.CmdHExists, raw)
}

// HLen returns the number of fields in the hash, 0 for a missing key.
func (c *Commands) HLen(ctx context.Context, db int, key string) (int64, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHLen, db, key)
	if err != nil {
		return 0, err
	}
	return toInt(protocol.CmdHLen, raw)
}

// HIncrBy adds increment to the integer in field and returns the result.
func (c *Commands) HIncrBy(ctx context.Context, db int, key, field string, increment int64) (int64, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHIncrBy, db, key, field, increment)
	if err != nil {
		return 0, err
	}
	return toInt(protocol.CmdHIncrBy, raw)
}

// HIncrByFloat adds increment to the number in field and returns the
// result. Stores reply with the new value as text; it is parsed, not
// decoded.
func (c *Commands) HIncrByFloat(ctx context.Context, db int, key, field string, increment float64) (float64, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHIncrByFloat, db, key, field, increment)
	if err != nil {
		return 0, err
	}
	return toFloat(protocol.CmdHIncrByFloat, raw)
}

// HIncrByFloatText is HIncrByFloat returning the new value exactly as the
// store formatted it, e.g. "10.5".
func (c *Commands) HIncrByFloatText(ctx context.Context, db int, key, field string, increment float64) (string, error) {
	raw, err := c.dispatcher.Dispatch(ctx, protocol.CmdHIncrByFloat, db, key, field, increment)
	if err != nil {
		return "", err
	}
	return toText(protocol.CmdHIncrByFloat, raw)
}

func (c *Commands) decodeList(command string, raw interface{}) ([]interface{}, error) {
	items, err := toList(command, raw)
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, len(items))
	for i, item := range items {
		decoded, err := c.codec.Decode(item)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}

func stringArgs(ss []string) []interface{} {
	args := make([]interface{}, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
