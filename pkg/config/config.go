// Package config provides configuration management for the redis-cli server and client components.
//
// The package supports configuration through multiple sources with the following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables
//  3. Default values (lowest priority)
//
// Server Configuration:
//   - Port and host binding settings
//   - Number of logical databases
//   - Logging configuration
//
// Client Configuration:
//   - Backend selection (resp, redis, memory)
//   - Node list, connection pooling and timeouts
//   - Retry policy and consistent hashing parameters
//   - Value codec and default database
//
// Example server usage:
//
//	cfg, err := config.LoadServerConfig(flag.CommandLine, os.Args[1:])
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Environment variables are prefixed with "REDISCLI_" and use uppercase names.
// For example, the server port can be set with REDISCLI_PORT=6380.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "REDISCLI_"

// Default configuration constants
const (
	DefaultServerPort       = 6380
	DefaultDatabases        = 16
	DefaultReadTimeoutSecs  = 30
	DefaultWriteTimeoutSecs = 10
	DefaultMaxConnsPerNode  = 10
	DefaultConnTimeoutSecs  = 5
	DefaultRetryAttempts    = 3
	DefaultVirtualNodes     = 150
	DefaultLogLevel         = "info"
)

// Backends a client can dispatch through.
const (
	BackendRESP   = "resp"   // pooled RESP client with consistent hashing
	BackendRedis  = "redis"  // go-redis client against a single server
	BackendMemory = "memory" // in-process store, no network
)

// Codecs a client can encode values with.
const (
	CodecJSON = "json"
	CodecRaw  = "raw"
)

// ServerConfig holds all configuration options for a server instance.
//
// Configuration sources (in order of precedence):
//  1. Command-line flags: -port, -host, -databases, -log-level
//  2. Environment variables: REDISCLI_PORT, REDISCLI_HOST, etc.
//  3. Default values
type ServerConfig struct {
	Host      string // Host address to bind to (default: "0.0.0.0")
	LogLevel  string // Log level: debug, info, warn, error (default: "info")
	Port      int    // TCP port to listen on (default: 6380)
	Databases int    // Number of logical databases (default: 16)
}

// ClientConfig holds all configuration options for a client.
//
// Configuration sources (in order of precedence):
//  1. Command-line flags (see BindClientFlags)
//  2. Environment variables: REDISCLI_NODES, REDISCLI_BACKEND, etc.
//  3. Default values
//
// Example:
//
//	cfg := &ClientConfig{
//		Backend:         config.BackendRESP,
//		Nodes:           []string{"server1:6380", "server2:6380"},
//		MaxConnsPerNode: 20,
//		RetryAttempts:   3,
//	}
type ClientConfig struct {
	Backend         string   // resp, redis or memory (default: resp)
	Codec           string   // json or raw (default: json)
	Password        string   // AUTH password, empty for none
	LogLevel        string   // Log level (default: "info")
	Nodes           []string // List of server addresses (default: ["localhost:6380"])
	Database        int      // Default database index (default: 0)
	MaxConnsPerNode int      // Max connections per server node (default: 10)
	ConnTimeout     int      // Connection timeout in seconds (default: 5)
	ReadTimeout     int      // Read timeout in seconds (default: 30)
	WriteTimeout    int      // Write timeout in seconds (default: 10)
	RetryAttempts   int      // Number of retry attempts (default: 3)
	VirtualNodes    int      // Virtual nodes for consistent hashing (default: 150)
}

// DefaultServerConfig returns a ServerConfig populated with defaults only.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:      DefaultServerPort,
		Host:      "0.0.0.0",
		Databases: DefaultDatabases,
		LogLevel:  DefaultLogLevel,
	}
}

// DefaultClientConfig returns a ClientConfig populated with defaults only.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Backend:         BackendRESP,
		Codec:           CodecJSON,
		LogLevel:        DefaultLogLevel,
		Nodes:           []string{fmt.Sprintf("localhost:%d", DefaultServerPort)},
		MaxConnsPerNode: DefaultMaxConnsPerNode,
		ConnTimeout:     DefaultConnTimeoutSecs,
		ReadTimeout:     DefaultReadTimeoutSecs,
		WriteTimeout:    DefaultWriteTimeoutSecs,
		RetryAttempts:   DefaultRetryAttempts,
		VirtualNodes:    DefaultVirtualNodes,
	}
}

// LoadServerConfig builds a ServerConfig from defaults, then environment
// variables, then the flags in args parsed with fs.
//
// Command-line flags:
//
//	-port: Server port (default: 6380)
//	-host: Server host (default: "0.0.0.0")
//	-databases: Number of logical databases (default: 16)
//	-log-level: Log level (default: "info")
//
// Environment variables:
//
//	REDISCLI_PORT, REDISCLI_HOST, REDISCLI_DATABASES, REDISCLI_LOG_LEVEL
func LoadServerConfig(fs *flag.FlagSet, args []string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	envInt("PORT", &cfg.Port)
	envString("HOST", &cfg.Host)
	envInt("DATABASES", &cfg.Databases)
	envString("LOG_LEVEL", &cfg.LogLevel)

	fs.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Server host")
	fs.IntVar(&cfg.Databases, "databases", cfg.Databases, "Number of logical databases")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadClientConfig builds a ClientConfig from defaults and environment
// variables.
//
// Environment variables:
//
//	REDISCLI_BACKEND: resp, redis or memory
//	REDISCLI_CODEC: json or raw
//	REDISCLI_NODES: Comma-separated list of server addresses
//	REDISCLI_DB: Default database index
//	REDISCLI_PASSWORD: AUTH password
//	REDISCLI_MAX_CONNS_PER_NODE: Maximum connections per server
//	REDISCLI_CONN_TIMEOUT: Connection timeout in seconds
//	REDISCLI_READ_TIMEOUT: Read timeout in seconds
//	REDISCLI_WRITE_TIMEOUT: Write timeout in seconds
//	REDISCLI_RETRY_ATTEMPTS: Number of retry attempts
//	REDISCLI_VIRTUAL_NODES: Virtual nodes for consistent hashing
//	REDISCLI_LOG_LEVEL: Log level
func LoadClientConfig() *ClientConfig {
	cfg := DefaultClientConfig()

	envString("BACKEND", &cfg.Backend)
	envString("CODEC", &cfg.Codec)
	envString("PASSWORD", &cfg.Password)
	envString("LOG_LEVEL", &cfg.LogLevel)
	envInt("DB", &cfg.Database)
	envInt("MAX_CONNS_PER_NODE", &cfg.MaxConnsPerNode)
	envInt("CONN_TIMEOUT", &cfg.ConnTimeout)
	envInt("READ_TIMEOUT", &cfg.ReadTimeout)
	envInt("WRITE_TIMEOUT", &cfg.WriteTimeout)
	envInt("RETRY_ATTEMPTS", &cfg.RetryAttempts)
	envInt("VIRTUAL_NODES", &cfg.VirtualNodes)

	if nodes := os.Getenv(EnvPrefix + "NODES"); nodes != "" {
		cfg.Nodes = splitNodes(nodes)
	}

	return cfg
}

// BindClientFlags registers flags on fs that override cfg's fields once
// fs is parsed. Call it after LoadClientConfig so flags win over the
// environment.
func BindClientFlags(fs *flag.FlagSet, cfg *ClientConfig) {
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Dispatch backend (resp, redis, memory)")
	fs.StringVar(&cfg.Codec, "codec", cfg.Codec, "Value codec (json, raw)")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "AUTH password")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.IntVar(&cfg.Database, "db", cfg.Database, "Database index")
	fs.IntVar(&cfg.RetryAttempts, "retries", cfg.RetryAttempts, "Retry attempts on transport errors")
	fs.IntVar(&cfg.ConnTimeout, "conn-timeout", cfg.ConnTimeout, "Connection timeout in seconds")
	fs.Func("nodes", "Comma-separated server addresses", func(s string) error {
		cfg.Nodes = splitNodes(s)
		return nil
	})
}

// Address returns the full address string for the server to bind to.
//
// Example:
//
//	cfg := &ServerConfig{Host: "0.0.0.0", Port: 6380}
//	addr := cfg.Address() // Returns "0.0.0.0:6380"
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the ServerConfig contains valid values.
//
// Validation rules:
//   - Port must be between 0 and 65535 (0 picks a free port)
//   - Databases must be positive
//   - LogLevel must be one of: debug, info, warn, error
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.Databases < 1 {
		return fmt.Errorf("databases must be positive: %d", c.Databases)
	}

	return validateLogLevel(c.LogLevel)
}

// Validate checks if the ClientConfig contains valid values.
//
// Validation rules:
//   - Backend must be resp, redis or memory
//   - Codec must be json or raw
//   - Network backends need at least one "host:port" node; redis uses only the first
//   - Database must be non-negative
//   - MaxConnsPerNode, timeouts and VirtualNodes must be positive
//   - RetryAttempts must be non-negative
func (c *ClientConfig) Validate() error {
	switch c.Backend {
	case BackendRESP, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid backend: %s", c.Backend)
	}

	switch c.Codec {
	case CodecJSON, CodecRaw:
	default:
		return fmt.Errorf("invalid codec: %s", c.Codec)
	}

	if c.Backend != BackendMemory {
		if len(c.Nodes) == 0 {
			return fmt.Errorf("at least one node must be specified")
		}
		for _, node := range c.Nodes {
			if node == "" {
				return fmt.Errorf("empty node address")
			}
			if !strings.Contains(node, ":") {
				return fmt.Errorf("invalid node address format: %s", node)
			}
		}
	}

	if c.Database < 0 {
		return fmt.Errorf("database index must be non-negative: %d", c.Database)
	}

	if c.MaxConnsPerNode < 1 {
		return fmt.Errorf("max connections per node must be positive: %d", c.MaxConnsPerNode)
	}

	if c.ConnTimeout < 1 {
		return fmt.Errorf("connection timeout must be positive: %d", c.ConnTimeout)
	}

	if c.ReadTimeout < 1 {
		return fmt.Errorf("read timeout must be positive: %d", c.ReadTimeout)
	}

	if c.WriteTimeout < 1 {
		return fmt.Errorf("write timeout must be positive: %d", c.WriteTimeout)
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must be non-negative: %d", c.RetryAttempts)
	}

	if c.VirtualNodes < 1 {
		return fmt.Errorf("virtual nodes must be positive: %d", c.VirtualNodes)
	}

	return validateLogLevel(c.LogLevel)
}

// ConnTimeoutDuration returns ConnTimeout as a time.Duration.
func (c *ClientConfig) ConnTimeoutDuration() time.Duration {
	return time.Duration(c.ConnTimeout) * time.Second
}

// ReadTimeoutDuration returns ReadTimeout as a time.Duration.
func (c *ClientConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (c *ClientConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

func validateLogLevel(level string) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[level] {
		return fmt.Errorf("invalid log level: %s", level)
	}
	return nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitNodes(s string) []string {
	nodes := strings.Split(s, ",")
	for i, node := range nodes {
		nodes[i] = strings.TrimSpace(node)
	}
	return nodes
}
