package cache

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

func TestExecHashCommands(t *testing.T) {
	dbs := NewDatabases(2)

	steps := []struct {
		words []string
		want  interface{}
	}{
		{[]string{"HSET", "user", "name", "ada", "lang", "go"}, int64(2)},
		{[]string{"hmset", "user", "age", "36"}, StatusOK},
		{[]string{"hget", "user", "name"}, "ada"},
		{[]string{"hget", "user", "missing"}, nil},
		{[]string{"hmget", "user", "lang", "missing", "age"}, []interface{}{"go", nil, "36"}},
		{[]string{"hlen", "user"}, int64(3)},
		{[]string{"hexists", "user", "age"}, int64(1)},
		{[]string{"hkeys", "user"}, []interface{}{"age", "lang", "name"}},
		{[]string{"hvals", "user"}, []interface{}{"36", "go", "ada"}},
		{[]string{"hgetall", "user"}, []interface{}{"age", "36", "lang", "go", "name", "ada"}},
		{[]string{"hincrby", "user", "age", "1"}, int64(37)},
		{[]string{"hincrbyfloat", "user", "score", "2.5"}, "2.5"},
		{[]string{"hdel", "user", "score", "nope"}, int64(1)},
		{[]string{"exists", "user", "other"}, int64(1)},
		{[]string{"del", "user"}, int64(1)},
	}

	for _, step := range steps {
		got, err := dbs.Exec(1, step.words)
		if err != nil {
			t.Fatalf("%v: unexpected error %v", step.words, err)
		}
		if !reflect.DeepEqual(got, step.want) {
			t.Errorf("%v: expected %#v, got %#v", step.words, step.want, got)
		}
	}

	ks, _ := dbs.Get(0)
	if ks.Stats()["keys"] != 0 {
		t.Error("Database 0 should be untouched")
	}
}

func TestExecErrors(t *testing.T) {
	dbs := NewDatabases(1)
	dbs.Exec(0, []string{"hset", "h", "text", "abc"})

	cases := []struct {
		db    int
		words []string
		msg   string
	}{
		{5, []string{"hget", "h", "f"}, "ERR DB index is out of range"},
		{0, []string{"hnope", "h"}, "ERR unknown command 'hnope'"},
		{0, []string{"hget", "h"}, "ERR wrong number of arguments for 'hget' command"},
		{0, []string{"hset", "h", "f"}, "ERR wrong number of arguments for 'hset' command"},
		{0, []string{"hset", "h", "f", "v", "g"}, "ERR wrong number of arguments for 'hset' command"},
		{0, []string{"hincrby", "h", "text", "1"}, "ERR hash value is not an integer"},
		{0, []string{"hincrby", "h", "n", "x"}, "ERR value is not an integer or out of range"},
		{0, []string{"hincrbyfloat", "h", "text", "1"}, "ERR hash value is not a float"},
		{0, []string{"hincrbyfloat", "h", "n", "x"}, "ERR value is not a valid float"},
	}

	for _, tc := range cases {
		_, err := dbs.Exec(tc.db, tc.words)
		var se *protocol.ServerError
		if !errors.As(err, &se) {
			t.Errorf("%v: expected server error, got %v", tc.words, err)
			continue
		}
		if se.Message != tc.msg {
			t.Errorf("%v: expected %q, got %q", tc.words, tc.msg, se.Message)
		}
	}
}

func TestDispatchFormatsArguments(t *testing.T) {
	dbs := NewDatabases(4)
	ctx := context.Background()

	if _, err := dbs.Dispatch(ctx, protocol.CmdHIncrBy, 3, "c", "n", int64(4)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	got, err := dbs.Dispatch(ctx, protocol.CmdHIncrByFloat, 3, "c", "n", 0.5)
	if err != nil || got != "4.5" {
		t.Errorf("Expected 4.5, got %#v (error: %v)", got, err)
	}

	ack, err := dbs.Dispatch(ctx, protocol.CmdHMSet, 3, "c", "a", "1")
	if err != nil || ack != "OK" {
		t.Errorf("Expected plain OK string, got %#v (error: %v)", ack, err)
	}
}

func TestDispatchHonoursCancelledContext(t *testing.T) {
	dbs := NewDatabases(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := dbs.Dispatch(ctx, protocol.CmdHLen, 0, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
