package chainmap

import "unsafe"

// entryRef addresses an entry slot inside an arena. The zero ref is the
// nil reference; slot i is addressed by ref i+1.
type entryRef uint32

const nilRef entryRef = 0

// entryOf is one stored key-value pair plus the reference to its successor
// in the bucket chain.
type entryOf[K comparable, V any] struct {
	next  entryRef
	key   K
	value V
}

const (
	// arenaChunkLines is the target chunk footprint in cache lines
	// (4 KiB on platforms with 64-byte lines).
	arenaChunkLines = 64
	// minArenaChunkLen bounds the chunk length from below for very
	// large entry types.
	minArenaChunkLen = 8
)

// arenaOf owns the storage for every entry of one table. Entries live in
// fixed-length chunks and are addressed by stable entryRefs, so relinking
// a chain never moves, copies, or reconstructs a key or value. Released
// slots are kept on an internal free list and handed out again before the
// arena grows.
//
// The arena is the single owner of its entries: dropping the arena drops
// every entry with it, which makes table teardown and replacement a plain
// pointer swap.
type arenaOf[K comparable, V any] struct {
	chunks   [][]entryOf[K, V]
	chunkLen int
	free     entryRef // head of the released-slot list
	used     int      // slots handed out at least once
}

func newArenaOf[K comparable, V any]() arenaOf[K, V] {
	chunkLen := int(arenaChunkLines * CacheLineSize / unsafe.Sizeof(entryOf[K, V]{}))
	if chunkLen < minArenaChunkLen {
		chunkLen = minArenaChunkLen
	}
	return arenaOf[K, V]{chunkLen: chunkLen}
}

func (a *arenaOf[K, V]) at(ref entryRef) *entryOf[K, V] {
	i := int(ref) - 1
	return &a.chunks[i/a.chunkLen][i%a.chunkLen]
}

// alloc hands out a slot holding (key, value, next) and returns its ref.
// Any chunk growth happens before the slot is written, so a failed
// allocation leaves previously stored entries untouched.
func (a *arenaOf[K, V]) alloc(key K, value V, next entryRef) entryRef {
	ref := a.free
	if ref != nilRef {
		e := a.at(ref)
		a.free = e.next
		e.key, e.value, e.next = key, value, next
		return ref
	}
	if a.used == len(a.chunks)*a.chunkLen {
		a.chunks = append(a.chunks, make([]entryOf[K, V], a.chunkLen))
	}
	a.used++
	ref = entryRef(a.used)
	e := a.at(ref)
	e.key, e.value, e.next = key, value, next
	return ref
}

// release returns a slot to the free list. The key and value are zeroed
// so the arena does not pin memory the caller has logically dropped.
func (a *arenaOf[K, V]) release(ref entryRef) {
	e := a.at(ref)
	var zeroK K
	var zeroV V
	e.key, e.value = zeroK, zeroV
	e.next = a.free
	a.free = ref
}
