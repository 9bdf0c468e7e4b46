package logger

// bufferStatus is the two-state lifecycle of a ring cell: Free while the
// producer may still append to it, Full once sealed and handed to the
// consumer for persistence.
type bufferStatus uint8

const (
	statusFree bufferStatus = iota
	statusFull
)

// cellBuffer is one fixed-capacity node of the logger's ring. Ported from
// original_source/Log/log.hpp's cell_buffer: a byte slice with a used-length
// cursor, linked into a circular doubly-linked list by the ring itself.
type cellBuffer struct {
	data   []byte
	used   int
	status bufferStatus

	prev *cellBuffer
	next *cellBuffer
}

func newCellBuffer(size int) *cellBuffer {
	return &cellBuffer{data: make([]byte, size)}
}

func (b *cellBuffer) avail() int {
	return len(b.data) - b.used
}

func (b *cellBuffer) empty() bool {
	return b.used == 0
}

// append copies line into the buffer's free tail. Caller must have already
// checked avail() >= len(line).
func (b *cellBuffer) append(line []byte) {
	n := copy(b.data[b.used:], line)
	b.used += n
}

func (b *cellBuffer) clear() {
	b.used = 0
	b.status = statusFree
}

func (b *cellBuffer) bytes() []byte {
	return b.data[:b.used]
}
