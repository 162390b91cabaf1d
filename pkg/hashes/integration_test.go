package hashes_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/cuikangjie/redis-cli/pkg/cache"
	"github.com/cuikangjie/redis-cli/pkg/codec"
	"github.com/cuikangjie/redis-cli/pkg/hashes"
	"github.com/cuikangjie/redis-cli/pkg/logging"
	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

func TestCommandsAgainstInProcessStore(t *testing.T) {
	ctx := context.Background()
	cmds := hashes.New(cache.NewDatabases(4), codec.JSON{})

	ack, err := cmds.HMSet(ctx, 2, "user:1", []hashes.FieldValue{
		{Field: "name", Value: "ada"},
		{Field: "age", Value: 36},
		{Field: "tags", Value: []string{"go", "c"}},
	})
	if err != nil || ack != "OK" {
		t.Fatalf("HMSet: %q, %v", ack, err)
	}

	name, err := cmds.HGet(ctx, 2, "user:1", "name")
	if err != nil || name != "ada" {
		t.Errorf("Expected ada, got %#v (%v)", name, err)
	}

	if other, _ := cmds.HGet(ctx, 0, "user:1", "name"); other != nil {
		t.Errorf("Database 0 should not see database 2's hash, got %#v", other)
	}

	vals, err := cmds.HMGet(ctx, 2, "user:1", []string{"tags", "nope", "age"})
	if err != nil {
		t.Fatalf("HMGet: %v", err)
	}
	want := []interface{}{[]interface{}{"go", "c"}, nil, int64(36)}
	if !reflect.DeepEqual(vals, want) {
		t.Errorf("Expected %#v, got %#v", want, vals)
	}

	all, err := cmds.HGetAll(ctx, 2, "user:1")
	if err != nil || len(all) != 3 || all["age"] != int64(36) {
		t.Errorf("Unexpected HGetAll result %#v (%v)", all, err)
	}

	keys, _ := cmds.HKeys(ctx, 2, "user:1")
	if !reflect.DeepEqual(keys, []string{"age", "name", "tags"}) {
		t.Errorf("Unexpected keys %v", keys)
	}

	created, err := cmds.HSet(ctx, 2, "user:1", "email", "ada@example.com")
	if err != nil || created != 1 {
		t.Errorf("Expected 1 created field, got %d (%v)", created, err)
	}

	if n, _ := cmds.HLen(ctx, 2, "user:1"); n != 4 {
		t.Errorf("Expected 4 fields, got %d", n)
	}

	if age, err := cmds.HIncrBy(ctx, 2, "user:1", "age", 1); err != nil || age != 37 {
		t.Errorf("Expected 37, got %d (%v)", age, err)
	}

	if score, err := cmds.HIncrByFloat(ctx, 2, "user:1", "score", 2.5); err != nil || score != 2.5 {
		t.Errorf("Expected 2.5, got %v (%v)", score, err)
	}

	if removed, _ := cmds.HDel(ctx, 2, "user:1", []string{"email", "score", "nope"}); removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}

	if ok, _ := cmds.HExists(ctx, 2, "user:1", "email"); ok {
		t.Error("email should be gone")
	}

	_, err = cmds.HIncrBy(ctx, 2, "user:1", "name", 1)
	if !protocol.IsServerError(err) {
		t.Errorf("Expected server error for non-integer field, got %v", err)
	}
}

func TestCommandsConcurrentUse(t *testing.T) {
	ctx := context.Background()
	cmds := hashes.New(cache.NewDatabases(1), codec.Raw{})

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 50; i++ {
		i := i
		g.Go(func() error {
			if _, err := cmds.HIncrBy(ctx, 0, "counters", "hits", 1); err != nil {
				return err
			}
			_, err := cmds.HSet(ctx, 0, "seen", fmt.Sprintf("w%d", i), i)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Concurrent commands failed: %v", err)
	}

	hits, err := cmds.HGet(ctx, 0, "counters", "hits")
	if err != nil || hits != "50" {
		t.Errorf("Expected 50 hits, got %#v (%v)", hits, err)
	}
	if n, _ := cmds.HLen(ctx, 0, "seen"); n != 50 {
		t.Errorf("Expected 50 fields, got %d", n)
	}
}

func TestWithLoggingKeepsReplies(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.JSON("debug", &buf)

	d := hashes.WithLogging(cache.NewDatabases(1), logger)
	cmds := hashes.New(d, codec.Raw{})

	if _, err := cmds.HSet(context.Background(), 0, "h", "f", "v"); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	v, err := cmds.HGet(context.Background(), 0, "h", "f")
	if err != nil || v != "v" {
		t.Errorf("Expected v, got %#v (%v)", v, err)
	}

	_, err = cmds.HGet(context.Background(), 9, "h", "f")
	if err != cache.ErrDBIndex {
		t.Errorf("Expected ErrDBIndex unchanged, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"cmd":"hset"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("Expected dispatch log lines, got %s", out)
	}
}

func TestJSONStringsKeepTheirType(t *testing.T) {
	ctx := context.Background()
	cmds := hashes.New(cache.NewDatabases(1), codec.JSON{})

	if _, err := cmds.HMSet(ctx, 0, "h", []hashes.FieldValue{
		{Field: "word", Value: "null"},
		{Field: "digits", Value: "42"},
		{Field: "id", Value: int64(9007199254740993)},
	}); err != nil {
		t.Fatalf("HMSet: %v", err)
	}

	got, err := cmds.HMGet(ctx, 0, "h", []string{"word", "missing", "digits", "id"})
	if err != nil {
		t.Fatalf("HMGet: %v", err)
	}
	want := []interface{}{"null", nil, "42", int64(9007199254740993)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %#v, got %#v", want, got)
	}

	if _, err := cmds.HSet(ctx, 0, "h", "nothing", nil); !errors.Is(err, codec.ErrNilValue) {
		t.Errorf("Expected ErrNilValue, got %v", err)
	}
}
