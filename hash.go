package chainmap

import (
	"math/bits"
	"unsafe"

	"github.com/dchest/siphash"
)

// hashFunc computes the hash of one key under a per-map seed.
type hashFunc[K comparable] func(key K, seed uintptr) uintptr

// sipSeedMix derives the second SipHash key half from the map seed.
const sipSeedMix = 0x9e3779b97f4a7c15

// defaultHasher selects the hash routine for the key type: integer keys
// hash as their own value, string keys go through seeded SipHash-2-4, and
// every other comparable type falls back to the hash routine the runtime
// itself uses for map[K]struct{}.
func defaultHasher[K comparable]() hashFunc[K] {
	switch any(*new(K)).(type) {
	case uint, int, uintptr:
		return func(key K, _ uintptr) uintptr {
			return *(*uintptr)(unsafe.Pointer(&key))
		}

	case uint64, int64:
		if bits.UintSize == 32 {
			return func(key K, _ uintptr) uintptr {
				v := *(*uint64)(unsafe.Pointer(&key))
				return uintptr(v) ^ uintptr(v>>32)
			}
		}

		return func(key K, _ uintptr) uintptr {
			return uintptr(*(*uint64)(unsafe.Pointer(&key)))
		}

	case uint32, int32:
		return func(key K, _ uintptr) uintptr {
			return uintptr(*(*uint32)(unsafe.Pointer(&key)))
		}

	case uint16, int16:
		return func(key K, _ uintptr) uintptr {
			return uintptr(*(*uint16)(unsafe.Pointer(&key)))
		}

	case uint8, int8:
		return func(key K, _ uintptr) uintptr {
			return uintptr(*(*uint8)(unsafe.Pointer(&key)))
		}

	case string:
		return func(key K, seed uintptr) uintptr {
			s := *(*string)(unsafe.Pointer(&key))
			b := unsafe.Slice(unsafe.StringData(s), len(s))
			return uintptr(siphash.Hash(uint64(seed), uint64(seed)^sipSeedMix, b))
		}

	default:
		return builtInHasher[K]()
	}
}

// builtInHasher obtains Go's built-in hash function for K from the map
// type descriptor.
//
// Notes:
//   - This relies on Go's internal type representation
//   - It should be verified for compatibility with each Go version upgrade
func builtInHasher[K comparable]() hashFunc[K] {
	var m map[K]struct{}
	hasher := iTypeOf(m).MapType().Hasher
	return func(key K, seed uintptr) uintptr {
		return hasher(noescape(unsafe.Pointer(&key)), seed)
	}
}

type iTFlag uint8
type iKind uint8
type iNameOff int32

// iTypeOff is the offset to a type from moduledata.types. See
// resolveTypeOff in runtime.
type iTypeOff int32

type iType struct {
	Size_       uintptr
	PtrBytes    uintptr // number of (prefix) bytes in the type that can contain pointers
	Hash        uint32  // hash of type; avoids computation in hash tables
	TFlag       iTFlag  // extra type information flags
	Align_      uint8   // alignment of variable with this type
	FieldAlign_ uint8   // alignment of struct field with this type
	Kind_       iKind   // enumeration for C
	// function for comparing objects of this type
	// (ptr to object A, ptr to object B) -> ==?
	Equal func(unsafe.Pointer, unsafe.Pointer) bool
	// GCData stores the GC type data for the garbage collector.
	GCData    *byte
	Str       iNameOff // string form
	PtrToThis iTypeOff // type for pointer to this type, may be zero
}

func (t *iType) MapType() *iMapType {
	return (*iMapType)(unsafe.Pointer(t))
}

type iMapType struct {
	iType
	Key   *iType
	Elem  *iType
	Group *iType // internal type representing a slot group
	// function for hashing keys (ptr to key, seed) -> hash
	Hasher func(unsafe.Pointer, uintptr) uintptr
}

func iTypeOf(a any) *iType {
	eface := *(*iEmptyInterface)(unsafe.Pointer(&a))
	// Types are either static (for compiler-created types) or
	// heap-allocated but always reachable (for reflection-created
	// types, held in the central map). So there is no need to
	// escape types. noescape here helps avoid unnecessary escape
	// of a.
	return (*iType)(noescape(unsafe.Pointer(eface.Type)))
}

type iEmptyInterface struct {
	Type *iType
	Data unsafe.Pointer
}

//go:nosplit
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
