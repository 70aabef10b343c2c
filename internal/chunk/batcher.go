package chunk

// DefaultBatchLength is the number of chunks grouped in one transport
// message. It matches the transport's per-message attachment limit.
const DefaultBatchLength = 10

// A Batcher groups consecutive chunks into fixed-count batches.
type Batcher struct {
	length  int
	pending [][]byte
}

// NewBatcher returns a Batcher emitting batches of length chunks.
func NewBatcher(length int) *Batcher {
	if length <= 0 {
		length = DefaultBatchLength
	}
	return &Batcher{length: length}
}

// Add appends the chunk and returns the batch when it is full, nil otherwise.
func (b *Batcher) Add(chunk []byte) [][]byte {
	b.pending = append(b.pending, chunk)
	if len(b.pending) < b.length {
		return nil
	}

	batch := b.pending
	b.pending = nil
	return batch
}

// Flush terminates the stream and returns the partial batch, or nil when no
// chunk is pending.
func (b *Batcher) Flush() [][]byte {
	batch := b.pending
	b.pending = nil
	return batch
}
