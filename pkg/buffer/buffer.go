// Package buffer provides stable, identity-bearing references to caller-owned
// byte regions for submission to the write-behind engine.
//
// Two reference kinds are provided:
//
//   - Slice wraps an ad-hoc []byte and derives its identity token from the
//     address of the backing array. This mirrors address-as-identity
//     semantics and is cheap, but two distinct regions that reuse the same
//     start address while both are outstanding would collide.
//   - Registry hands out Tracked references with arena-unique tokens, so
//     identity stays unambiguous regardless of how the underlying memory is
//     allocated or recycled. Prefer it whenever buffers come from a pool.
//
// Neither kind copies the region: the caller must keep it valid and
// unmodified from Submit until the engine signals completion for that
// reference.
package buffer

import (
	"sync"
	"unsafe"
)

// Slice is an ad-hoc reference whose token is the address of the slice's
// backing array.
type Slice struct {
	data []byte
}

// NewSlice wraps b without copying it.
func NewSlice(b []byte) *Slice {
	return &Slice{data: b}
}

// Bytes returns the wrapped region.
func (s *Slice) Bytes() []byte {
	return s.data
}

// Token returns the address of the backing array. Zero-length slices with no
// backing array yield token 0.
func (s *Slice) Token() uint64 {
	return uint64(uintptr(unsafe.Pointer(unsafe.SliceData(s.data))))
}

// Tracked is a registry-issued reference with an arena-unique token.
type Tracked struct {
	token uint64
	data  []byte
}

// Bytes returns the registered region.
func (t *Tracked) Bytes() []byte {
	return t.data
}

// Token returns the registry-issued identity.
func (t *Tracked) Token() uint64 {
	return t.token
}

// Registry is an arena of tracked buffer descriptors. Tokens are never
// reused for the lifetime of the registry, so releasing a buffer and
// registering another at the same address cannot confuse in-flight
// deduplication.
type Registry struct {
	mu   sync.Mutex
	next uint64
	refs map[uint64]*Tracked
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{refs: make(map[uint64]*Tracked)}
}

// Register wraps b in a Tracked reference with a fresh token. The region is
// not copied.
func (r *Registry) Register(b []byte) *Tracked {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	t := &Tracked{token: r.next, data: b}
	r.refs[t.token] = t
	return t
}

// Release forgets a tracked reference. The caller is responsible for draining
// the reference first; releasing does not wait for in-flight writes.
func (r *Registry) Release(t *Tracked) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refs, t.token)
}

// Len returns the number of live tracked references.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}
