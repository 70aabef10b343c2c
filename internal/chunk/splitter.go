// Package chunk implements the streaming transform pipeline that turns an
// arbitrary byte stream into transport-sized encrypted pieces: compression,
// per-object stream encryption, fixed-size chunking and fixed-count batching.
package chunk

// DefaultSize is the chunk size used in production. It matches the
// transport's per-attachment limit.
const DefaultSize = 8 << 20

// A Splitter accumulates bytes and cuts them into fixed-size chunks. It
// holds no I/O; Write returns the full chunks ready to emit and Flush
// returns the trailing short chunk, if any.
type Splitter struct {
	size int
	buf  []byte
}

// NewSplitter returns a Splitter cutting chunks of size bytes.
func NewSplitter(size int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	return &Splitter{size: size}
}

// Write appends p to the accumulator and returns every full chunk it now
// holds, in input order. A single write spanning several chunk boundaries
// yields as many chunks as it crosses. The returned slices do not alias p.
func (s *Splitter) Write(p []byte) [][]byte {
	s.buf = append(s.buf, p...)

	var chunks [][]byte
	for len(s.buf) >= s.size {
		chunk := make([]byte, s.size)
		copy(chunk, s.buf[:s.size])
		chunks = append(chunks, chunk)
		s.buf = s.buf[s.size:]
	}
	return chunks
}

// Flush terminates the stream and returns the remaining short chunk, or nil
// when the accumulator is empty.
func (s *Splitter) Flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}

	chunk := make([]byte, len(s.buf))
	copy(chunk, s.buf)
	s.buf = nil
	return chunk
}
