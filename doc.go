// Package rediscli provides typed access to the hash commands of a
// Redis-compatible store, plus a small RESP server to run them against.
//
// The hash facade in pkg/hashes turns each command into a single dispatch
// and converts the reply. What carries the command is up to the caller:
//
//   - pkg/client: pooled RESP connections with client-side consistent hashing
//   - pkg/goredis: a go-redis client, one per database index
//   - pkg/cache: the in-process store, no network at all
//
// # Architecture Overview
//
//   - Facade: HGET, HSET, HMGET, HMSET, HDEL, HEXISTS, HLEN, HKEYS, HVALS,
//     HGETALL, HINCRBY and HINCRBYFLOAT as Go methods
//   - Codec: JSON or raw text encoding of stored values
//   - Dispatchers: RESP client, go-redis adapter, in-process store
//   - Server: redcon listener over the in-memory store with 16 databases
//   - Configuration: defaults, REDISCLI_* environment variables, flags
//
// # Quick Start
//
// Server:
//
//	srv := server.New(":6380", cache.NewDatabases(16))
//	log.Fatal(srv.Start())
//
// Client:
//
//	c := client.New([]string{"localhost:6380"})
//	defer c.Close()
//
//	cmds := hashes.New(c, codec.JSON{})
//	cmds.HSet(ctx, 0, "user:123", "name", "John Doe")
//	name, err := cmds.HGet(ctx, 0, "user:123", "name")
//
// Command line:
//
//	hashctl -nodes localhost:6380 hgetall user:123
//
// # Package Structure
//
//   - pkg/hashes: hash command facade and logging middleware
//   - pkg/codec: value codecs
//   - pkg/client: RESP dispatcher with consistent hashing
//   - pkg/goredis: go-redis dispatcher
//   - pkg/cache: in-memory hash store and command table
//   - pkg/protocol: RESP command framing and reply reading
//   - pkg/ring: consistent hashing ring
//   - pkg/config: configuration management
//   - pkg/logging: zerolog setup
//   - internal/server: RESP server
//   - cmd/server: server executable
//   - cmd/hashctl: one-shot command line client
package rediscli
