package protocol

// BufferSize is the capacity of the receive buffer. A control line or a message
// payload plus its trailing CRLF has to fit in it.
const BufferSize = 4096

// MaxPayload is the largest payload a Buffer can hold.
const MaxPayload = BufferSize - len("\r\n")

// Buffer is a fixed capacity byte buffer that is filled at the tail and consumed
// from the head. Consuming shifts the unread bytes back to the start, so a Buffer never
// grows and never allocates.
//
// The zero value is an empty buffer ready to use.
type Buffer struct {
	data [BufferSize]byte
	n    int
}

// Free returns the unused tail of the buffer, read into it and then call Commit.
func (b *Buffer) Free() []byte {
	return b.data[b.n:]
}

// Commit marks n bytes of the slice returned by Free as filled.
func (b *Buffer) Commit(n int) {
	if n < 0 || b.n+n > len(b.data) {
		panic("protocol: commit outside of buffer")
	}
	b.n += n
}

// Write copies as much of p as fits and returns how many bytes were copied.
func (b *Buffer) Write(p []byte) int {
	n := copy(b.data[b.n:], p)
	b.n += n
	return n
}

// Bytes returns the buffered, unconsumed bytes.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

func (b *Buffer) Len() int {
	return b.n
}

// Full is true when there is no room left to read into.
func (b *Buffer) Full() bool {
	return b.n == len(b.data)
}

// Consume drops the first n buffered bytes.
func (b *Buffer) Consume(n int) {
	if n <= 0 {
		return
	}

	if n >= b.n {
		b.n = 0
		return
	}

	copy(b.data[:], b.data[n:b.n])
	b.n -= n
}

// Reset discards everything buffered.
func (b *Buffer) Reset() {
	b.n = 0
}
