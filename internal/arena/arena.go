// Package arena implements the append-only data-segment arena: the single
// contiguous region of the glue module's own memory (memory index 1) that
// holds every constant byte string the glue module needs baked in -
// the embedded script source, interface and function names used by the
// bootstrap, and anything else that doesn't need to be allocated at
// runtime.
package arena

// PageSize is the WebAssembly linear memory page size in bytes.
const PageSize = 65536

// Arena accumulates bytes at monotonically increasing offsets starting at
// zero. It never reuses or frees space; every Add call extends it.
type Arena struct {
	data []byte
}

// New returns an empty arena.
func New() *Arena {
	return &Arena{}
}

// Add appends b to the arena and returns the offset at which it begins.
func (a *Arena) Add(b []byte) uint32 {
	offset := uint32(len(a.data))
	a.data = append(a.data, b...)
	return offset
}

// AddString is a convenience wrapper around Add for string constants.
func (a *Arena) AddString(s string) uint32 {
	return a.Add([]byte(s))
}

// Bytes returns the arena's current contents, suitable as the payload of
// the single active data segment targeting memory 1 at offset 0.
func (a *Arena) Bytes() []byte {
	return a.data
}

// Len returns the number of bytes appended so far.
func (a *Arena) Len() uint32 {
	return uint32(len(a.data))
}

// MinPages returns the minimum number of 64KiB pages memory 1 must declare
// to hold the arena's current contents.
func (a *Arena) MinPages() uint32 {
	if len(a.data) == 0 {
		return 0
	}
	return (uint32(len(a.data)) + PageSize - 1) / PageSize
}
