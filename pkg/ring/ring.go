// Package ring routes keys to server nodes with consistent hashing.
//
// Each physical node is placed on the ring many times (virtual nodes) so keys
// spread evenly and adding or removing a node only moves the keys that node
// owned. The client uses it to pick which server receives a command.
//
// Example usage:
//
//	r := ring.New(150)
//	r.Add("10.0.0.1:6379")
//	r.Add("10.0.0.2:6379")
//	node := r.Locate("user:123")
package ring

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strconv"
	"sync"
)

// DefaultReplicas is the number of virtual nodes per physical node.
const DefaultReplicas = 150

// Ring is a thread-safe consistent hash ring.
type Ring struct {
	mu       sync.RWMutex
	owners   map[uint32]string // point -> node
	points   []uint32          // sorted for binary search
	members  map[string]struct{}
	replicas int
}

// New creates an empty ring. replicas <= 0 selects DefaultReplicas.
func New(replicas int) *Ring {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	return &Ring{
		owners:   make(map[uint32]string),
		members:  make(map[string]struct{}),
		replicas: replicas,
	}
}

// Add places node on the ring. Adding an existing node is a no-op.
func (r *Ring) Add(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[node]; ok {
		return
	}
	r.members[node] = struct{}{}

	for i := 0; i < r.replicas; i++ {
		p := point(node + "#" + strconv.Itoa(i))
		r.owners[p] = node
		r.points = append(r.points, p)
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i] < r.points[j] })
}

// Remove takes node and all of its virtual nodes off the ring.
func (r *Ring) Remove(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[node]; !ok {
		return
	}
	delete(r.members, node)

	kept := r.points[:0]
	for _, p := range r.points {
		if r.owners[p] == node {
			delete(r.owners, p)
			continue
		}
		kept = append(kept, p)
	}
	r.points = kept
}

// Locate returns the node that owns key, or "" when the ring is empty.
// The same key maps to the same node until membership changes.
func (r *Ring) Locate(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 {
		return ""
	}

	p := point(key)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= p })
	if idx == len(r.points) {
		idx = 0
	}
	return r.owners[r.points[idx]]
}

// Nodes returns the physical nodes, sorted.
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]string, 0, len(r.members))
	for node := range r.members {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// Len returns the number of physical nodes.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members)
}

// point hashes s onto the ring using the first four bytes of its SHA-256.
func point(s string) uint32 {
	sum := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint32(sum[:4])
}
