package chainmap

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is used to size arena chunks so that entry storage spans
// whole cache lines. It's automatically calculated using the
// `golang.org/x/sys` package.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
