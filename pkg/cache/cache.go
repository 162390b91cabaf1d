// Package cache provides the in-memory hash store behind the redis-cli server
// and its in-process dispatcher.
//
// A Cache is one keyspace mapping keys to hashes (field-value mappings).
// Databases groups a fixed number of keyspaces addressed by index, the same
// way a Redis server exposes SELECT-able databases.
//
// Example usage:
//
//	dbs := cache.NewDatabases(16)
//	ks, _ := dbs.Get(0)
//
//	ks.HSet("user:123", "name", "John Doe", "email", "john@example.com")
//	name, exists := ks.HGet("user:123", "name")
//	profile := ks.HGetAll("user:123")
//
// All operations are thread-safe and can be called concurrently from multiple goroutines.
// A hash whose last field is deleted disappears from the keyspace.
package cache

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"
)

// Error replies produced by the hash operations. The messages match what a
// Redis server returns so clients can treat both backends alike.
var (
	ErrNotInteger = errors.New("ERR hash value is not an integer")
	ErrNotFloat   = errors.New("ERR hash value is not a float")
	ErrOverflow   = errors.New("ERR increment or decrement would overflow")
	ErrNaN        = errors.New("ERR increment would produce NaN or Infinity")
)

// Cache is a single keyspace of hashes.
//
// Example:
//
//	c := cache.New()
//	c.HSet("session:abc", "user", "123")
//	if user, ok := c.HGet("session:abc", "user"); ok {
//		fmt.Printf("Session user: %s\n", user)
//	}
type Cache struct {
	data map[string]map[string]string // key -> field -> value
	mu   sync.RWMutex                 // Protects the data map
}

// New creates an empty keyspace.
func New() *Cache {
	return &Cache{
		data: make(map[string]map[string]string),
	}
}

// HGet retrieves the value of a hash field.
//
// Returns:
//   - The field value if found
//   - Boolean indicating if the field exists
func (c *Cache) HGet(key, field string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash, exists := c.data[key]
	if !exists {
		return "", false
	}
	val, exists := hash[field]
	return val, exists
}

// HMGet returns the values of the given fields in request order.
// Missing fields are reported as nil entries.
func (c *Cache) HMGet(key string, fields ...string) []*string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash := c.data[key]
	out := make([]*string, len(fields))
	for i, field := range fields {
		if val, ok := hash[field]; ok {
			v := val
			out[i] = &v
		}
	}
	return out
}

// HSet sets one or more field-value pairs, given as alternating
// field, value arguments. If the hash doesn't exist, it's created.
// A trailing field without a value is ignored.
//
// Example:
//
//	created := cache.HSet("user:123", "name", "John Doe", "age", "30")
//
// Returns:
//   - Number of fields that did not exist before the call
func (c *Cache) HSet(key string, pairs ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, exists := c.data[key]
	if !exists {
		hash = make(map[string]string, len(pairs)/2)
		c.data[key] = hash
	}

	created := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		if _, ok := hash[pairs[i]]; !ok {
			created++
		}
		hash[pairs[i]] = pairs[i+1]
	}

	if len(hash) == 0 {
		delete(c.data, key)
	}
	return created
}

// HDel deletes fields from a hash and returns how many existed.
// The key is removed once its last field is gone.
func (c *Cache) HDel(key string, fields ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, exists := c.data[key]
	if !exists {
		return 0
	}

	removed := 0
	for _, field := range fields {
		if _, ok := hash[field]; ok {
			delete(hash, field)
			removed++
		}
	}
	if len(hash) == 0 {
		delete(c.data, key)
	}
	return removed
}

// HExists checks if a field exists in a hash.
//
// Example:
//
//	cache.HSet("user:123", "name", "John")
//	exists := cache.HExists("user:123", "name") // returns true
//	exists = cache.HExists("user:123", "age")   // returns false
func (c *Cache) HExists(key, field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.data[key][field]
	return exists
}

// HLen returns the number of fields in a hash, 0 when the key is missing.
func (c *Cache) HLen(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data[key])
}

// HGetAll returns a copy of all fields and values in a hash.
// If the hash doesn't exist, returns an empty map.
func (c *Cache) HGetAll(key string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash := c.data[key]
	result := make(map[string]string, len(hash))
	for k, v := range hash {
		result[k] = v
	}
	return result
}

// HKeys returns the field names of a hash, sorted.
func (c *Cache) HKeys(key string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return sortedFields(c.data[key])
}

// HVals returns the values of a hash in the same order HKeys reports fields.
func (c *Cache) HVals(key string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash := c.data[key]
	fields := sortedFields(hash)
	vals := make([]string, len(fields))
	for i, field := range fields {
		vals[i] = hash[field]
	}
	return vals
}

// HIncrBy adds delta to the integer stored in a hash field. A missing
// field counts as 0.
//
// Returns:
//   - The new value
//   - ErrNotInteger if the current value does not parse as int64
//   - ErrOverflow if the addition would overflow
func (c *Cache) HIncrBy(key, field string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	if raw, ok := c.data[key][field]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		current = n
	}

	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return 0, ErrOverflow
	}

	current += delta
	c.setLocked(key, field, strconv.FormatInt(current, 10))
	return current, nil
}

// HIncrByFloat adds delta to the float stored in a hash field. A missing
// field counts as 0. The stored value uses the shortest representation.
//
// Returns:
//   - The new value as stored
//   - ErrNotFloat if the current value does not parse as a float
//   - ErrNaN if the result is NaN or infinite
func (c *Cache) HIncrByFloat(key, field string, delta float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current float64
	if raw, ok := c.data[key][field]; ok {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", ErrNotFloat
		}
		current = f
	}

	current += delta
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return "", ErrNaN
	}

	formatted := strconv.FormatFloat(current, 'f', -1, 64)
	c.setLocked(key, field, formatted)
	return formatted, nil
}

// Del removes keys and returns how many existed.
func (c *Cache) Del(keys ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if _, exists := c.data[key]; exists {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Exists counts how many of the given keys exist.
func (c *Cache) Exists(keys ...string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, key := range keys {
		if _, exists := c.data[key]; exists {
			n++
		}
	}
	return n
}

// FlushDB removes every key.
func (c *Cache) FlushDB() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]map[string]string)
}

// Stats returns statistics about the keyspace.
//
// Returns:
//   - Map containing:
//   - "keys": number of hashes
//   - "fields": total number of fields across all hashes
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fields := 0
	for _, hash := range c.data {
		fields += len(hash)
	}

	return map[string]interface{}{
		"keys":   len(c.data),
		"fields": fields,
	}
}

func (c *Cache) setLocked(key, field, val string) {
	hash, exists := c.data[key]
	if !exists {
		hash = make(map[string]string)
		c.data[key] = hash
	}
	hash[field] = val
}

func sortedFields(hash map[string]string) []string {
	fields := make([]string, 0, len(hash))
	for field := range hash {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
