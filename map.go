package chainmap

import (
	"math/bits"
	"math/rand"
)

const (
	// mapLoadFactor defines the occupancy threshold that triggers a
	// table resize during insertion. The check runs after the new entry
	// is linked, so a Map can momentarily hold
	// mapLoadFactor*tableLen + 1 entries before growing.
	mapLoadFactor = 0.75
	// defaultTableLen defines the baseline table size (number of
	// buckets). Capacity is always a power of two and never shrinks;
	// Clear and MoveFrom reset the affected map back to this baseline.
	defaultTableLen = 16
)

// Map is a mutable mapping from K to V built on a separate-chaining hash
// table with automatic growth.
//
// Key features:
//   - Implements zero-value usability for convenient initialization
//   - Provides lazy initialization: the bucket array is only allocated on
//     first use
//   - Per-type key hashing with a per-instance random seed
//   - Entries live in a chunked arena addressed by stable references, so
//     growth relinks entries in place and never copies a key or value
//   - Value-semantics operations: Clone, CopyFrom and MoveFrom
//
// A Map carries no internal synchronization and must not be accessed from
// multiple goroutines without external locking. No aliasing exists between
// distinct Map instances: Clone and CopyFrom build fully independent deep
// copies, and MoveFrom transfers ownership of the whole table in O(1).
type Map[K comparable, V any] struct {
	table       *tableOf[K, V]
	keyHash     hashFunc[K]
	seed        uintptr
	minTableLen int // WithPresize
}

// tableOf is the bucket array: chain heads indexed by hash, the arena that
// owns every entry, and the live-entry count.
type tableOf[K comparable, V any] struct {
	buckets []entryRef
	arena   arenaOf[K, V]
	size    int
}

func newTableOf[K comparable, V any](tableLen int) *tableOf[K, V] {
	return &tableOf[K, V]{
		buckets: make([]entryRef, tableLen),
		arena:   newArenaOf[K, V](),
	}
}

// Config defines configurable Map options.
type Config struct {
	sizeHint int
}

// WithPresize configures a new Map instance with capacity enough to hold
// sizeHint entries without growing. The capacity is treated as the minimal
// capacity, meaning the underlying table will never shrink below it. If
// sizeHint is zero or negative, the value is ignored.
func WithPresize(sizeHint int) func(*Config) {
	return func(c *Config) {
		c.sizeHint = sizeHint
	}
}

// New creates a new Map instance. Direct initialization of the zero value
// is also supported.
//
// Parameters:
//   - WithPresize option for initial capacity
func New[K comparable, V any](options ...func(*Config)) *Map[K, V] {
	c := &Config{}
	for _, o := range options {
		o(c)
	}
	m := &Map[K, V]{minTableLen: calcTableLen(c.sizeHint)}
	m.lazyInit()
	return m
}

// lazyInit builds the table at the baseline capacity. It runs on first use
// of a zero Map and after Clear or MoveFrom dropped the previous table.
func (m *Map[K, V]) lazyInit() *tableOf[K, V] {
	if m.keyHash == nil {
		m.keyHash = defaultHasher[K]()
		m.seed = uintptr(rand.Uint64())
	}
	if m.minTableLen == 0 {
		m.minTableLen = defaultTableLen
	}
	t := newTableOf[K, V](m.minTableLen)
	m.table = t
	return t
}

// calcTableLen computes the bucket count needed to hold sizeHint entries
// below the load factor.
func calcTableLen(sizeHint int) int {
	tableLen := defaultTableLen
	if float64(sizeHint) > defaultTableLen*mapLoadFactor {
		tableLen = nextPowOf2(int(float64(sizeHint) / mapLoadFactor))
	}
	return tableLen
}

// Store inserts or updates a key-value pair.
//
// If an entry with an equal key already exists its value is overwritten in
// place and the size is unchanged. Otherwise a new entry is linked at the
// head of its bucket chain and the size increments; if the load factor is
// then exceeded, the table grows to double capacity before Store returns.
func (m *Map[K, V]) Store(key K, value V) {
	t := m.table
	if t == nil {
		t = m.lazyInit()
	}
	hash := m.keyHash(key, m.seed)
	bidx := uintptr(len(t.buckets)-1) & hash

	for ref := t.buckets[bidx]; ref != nilRef; {
		e := t.arena.at(ref)
		if e.key == key {
			e.value = value
			return
		}
		ref = e.next
	}

	t.buckets[bidx] = t.arena.alloc(key, value, t.buckets[bidx])
	t.size++
	if float64(t.size) > float64(len(t.buckets))*mapLoadFactor {
		m.grow(len(t.buckets) * 2)
	}
}

// Load retrieves the value for a key. The second result reports whether
// the key was present. Load never mutates the map.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	t := m.table
	if t == nil || t.size == 0 {
		return
	}
	hash := m.keyHash(key, m.seed)

	for ref := t.buckets[uintptr(len(t.buckets)-1)&hash]; ref != nilRef; {
		e := t.arena.at(ref)
		if e.key == key {
			return e.value, true
		}
		ref = e.next
	}
	return
}

// Delete removes the entry with the given key. Deleting an absent key is a
// no-op. The entry is unlinked from its chain without disturbing sibling
// entries and its arena slot is recycled.
func (m *Map[K, V]) Delete(key K) {
	t := m.table
	if t == nil || t.size == 0 {
		return
	}
	hash := m.keyHash(key, m.seed)
	bidx := uintptr(len(t.buckets)-1) & hash

	prev := nilRef
	for ref := t.buckets[bidx]; ref != nilRef; {
		e := t.arena.at(ref)
		if e.key == key {
			if prev == nilRef {
				t.buckets[bidx] = e.next
			} else {
				t.arena.at(prev).next = e.next
			}
			t.arena.release(ref)
			t.size--
			return
		}
		prev = ref
		ref = e.next
	}
}

// Size returns the number of live entries. This is an O(1) operation.
func (m *Map[K, V]) Size() int {
	t := m.table
	if t == nil {
		return 0
	}
	return t.size
}

// IsZero checks for an empty map, equivalent to Size() == 0.
func (m *Map[K, V]) IsZero() bool {
	return m.Size() == 0
}

// Clear removes all entries and resets the map to its baseline capacity.
func (m *Map[K, V]) Clear() {
	m.table = nil
}

// grow rebuilds the bucket slice at newLen and relinks every entry under
// the new capacity. The new slice is fully allocated before any chain is
// touched, and each entry is fully migrated before the next one, so every
// entry stays reachable at every point: either from the untouched
// remainder of the old slice or from the new one. Entries are relinked by
// reference; keys and values are never copied.
func (m *Map[K, V]) grow(newLen int) {
	t := m.table
	buckets := make([]entryRef, newLen)
	mask := uintptr(newLen - 1)
	for i := range t.buckets {
		ref := t.buckets[i]
		for ref != nilRef {
			e := t.arena.at(ref)
			next := e.next
			bidx := m.keyHash(e.key, m.seed) & mask
			e.next = buckets[bidx]
			buckets[bidx] = ref
			ref = next
		}
	}
	t.buckets = buckets
}

// Clone creates a deep copy of the map.
//
// Returns:
//   - A new Map instance with the same key-value pairs, hasher and seed.
//
// Mutating the clone never affects the original and vice versa.
func (m *Map[K, V]) Clone() *Map[K, V] {
	clone := &Map[K, V]{}
	clone.CopyFrom(m)
	return clone
}

// CopyFrom replaces m's contents with an independent deep copy of src:
// same size, same mapping, same relative chain order, same hasher and
// seed. The previous contents of m are dropped. m.CopyFrom(m) is a no-op.
func (m *Map[K, V]) CopyFrom(src *Map[K, V]) {
	if m == src {
		return
	}
	m.keyHash = src.keyHash
	m.seed = src.seed
	m.minTableLen = src.minTableLen
	st := src.table
	if st == nil {
		m.table = nil
		return
	}

	t := newTableOf[K, V](len(st.buckets))
	for i, ref := range st.buckets {
		prev := nilRef
		for ; ref != nilRef; ref = st.arena.at(ref).next {
			e := st.arena.at(ref)
			nref := t.arena.alloc(e.key, e.value, nilRef)
			if prev == nilRef {
				t.buckets[i] = nref
			} else {
				t.arena.at(prev).next = nref
			}
			prev = nref
		}
	}
	t.size = st.size
	m.table = t
}

// MoveFrom transfers ownership of src's table to m in O(1). The previous
// contents of m are dropped. src is left valid and empty: it reports size
// zero and is reusable, rebuilding its table at the baseline capacity on
// the next insertion. m.MoveFrom(m) is a no-op.
func (m *Map[K, V]) MoveFrom(src *Map[K, V]) {
	if m == src {
		return
	}
	m.table = src.table
	m.keyHash = src.keyHash
	m.seed = src.seed
	m.minTableLen = src.minTableLen
	src.table = nil
}

func nextPowOf2(n int) int {
	if n <= 0 {
		return 1
	}

	if bits.UintSize == 32 {
		v := uint32(n)
		v--
		v |= v >> 1
		v |= v >> 2
		v |= v >> 4
		v |= v >> 8
		v |= v >> 16
		v++
		return int(v)
	}

	v := uint64(n)
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return int(v)
}
