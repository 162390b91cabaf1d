package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuikangjie/redis-cli/pkg/hashes"
)

type usageError struct {
	command string
	usage   string
}

func (e *usageError) Error() string {
	return fmt.Sprintf("usage: %s %s", e.command, e.usage)
}

// execute runs one facade operation. args are the words after the key.
// With jsonArgs, values that are valid JSON are written as JSON values.
func execute(ctx context.Context, cmds *hashes.Commands, db int, command, key string, args []string, jsonArgs bool) (interface{}, error) {
	name := strings.ToLower(command)
	need := func(ok bool, usage string) error {
		if ok {
			return nil
		}
		return &usageError{command: name, usage: usage}
	}

	switch name {
	case "hvals":
		if err := need(len(args) == 0, "<key>"); err != nil {
			return nil, err
		}
		return cmds.HVals(ctx, db, key)
	case "hkeys":
		if err := need(len(args) == 0, "<key>"); err != nil {
			return nil, err
		}
		return cmds.HKeys(ctx, db, key)
	case "hgetall":
		if err := need(len(args) == 0, "<key>"); err != nil {
			return nil, err
		}
		return cmds.HGetAll(ctx, db, key)
	case "hlen":
		if err := need(len(args) == 0, "<key>"); err != nil {
			return nil, err
		}
		return cmds.HLen(ctx, db, key)
	case "hmget":
		if err := need(len(args) > 0, "<key> <field> [field...]"); err != nil {
			return nil, err
		}
		return cmds.HMGet(ctx, db, key, args)
	case "hdel":
		if err := need(len(args) > 0, "<key> <field> [field...]"); err != nil {
			return nil, err
		}
		return cmds.HDel(ctx, db, key, args)
	case "hget":
		if err := need(len(args) == 1, "<key> <field>"); err != nil {
			return nil, err
		}
		return cmds.HGet(ctx, db, key, args[0])
	case "hexists":
		if err := need(len(args) == 1, "<key> <field>"); err != nil {
			return nil, err
		}
		return cmds.HExists(ctx, db, key, args[0])
	case "hset":
		if err := need(len(args) == 2, "<key> <field> <value>"); err != nil {
			return nil, err
		}
		return cmds.HSet(ctx, db, key, args[0], argValue(args[1], jsonArgs))
	case "hmset":
		if err := need(len(args) > 0 && len(args)%2 == 0, "<key> <field> <value> [field value...]"); err != nil {
			return nil, err
		}
		pairs := make([]hashes.FieldValue, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			pairs = append(pairs, hashes.FieldValue{Field: args[i], Value: argValue(args[i+1], jsonArgs)})
		}
		return cmds.HMSet(ctx, db, key, pairs)
	case "hincrby":
		if err := need(len(args) == 2, "<key> <field> <increment>"); err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("increment %q is not an integer", args[1])
		}
		return cmds.HIncrBy(ctx, db, key, args[0], n)
	case "hincrbyfloat":
		if err := need(len(args) == 2, "<key> <field> <increment>"); err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, fmt.Errorf("increment %q is not a float", args[1])
		}
		return cmds.HIncrByFloat(ctx, db, key, args[0], f)
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}

// argValue keeps `hset k n 42` storing the number 42 rather than the
// string "42" when values are JSON encoded.
func argValue(s string, jsonArgs bool) interface{} {
	if jsonArgs && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}
