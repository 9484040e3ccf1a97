package rochost

// Memory is the foreign runtime's byte-addressed linear memory.
// All multi-byte accessors are little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// MemoryGrower grows linear memory by whole 64KiB pages.
// It returns the previous size in pages, or false when the limit is reached.
type MemoryGrower interface {
	Grow(deltaPages uint32) (previousPages uint32, ok bool)
}

// PageSize is the wasm page size used by MemoryGrower.
const PageSize = 65536

// Allocator hands out blocks of foreign memory.
// Alignment is advisory: implementations may round it up but never down
// below their own minimum.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Realloc(ptr, newSize, oldSize, align uint32) (uint32, error)
	Dealloc(ptr, align uint32) error
}

// Bridge is the full memory contract the Roc value layer relies on:
// allocation plus abort and raw fill.
type Bridge interface {
	Allocator
	// Abort reports an unrecoverable foreign fault. The returned error is
	// never nil; callers running on a guest stack panic with it.
	Abort(msg string, tag uint32) error
	Fill(ptr uint32, value byte, n uint32) error
}
