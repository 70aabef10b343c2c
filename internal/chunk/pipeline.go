package chunk

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const (
	keySize = 32
	ivSize  = aes.BlockSize

	// KeySeparator joins the hex-encoded key and IV in the descriptor's
	// encryption field.
	KeySeparator = "."
)

// A Batch is an ordered group of chunks ready to be sent as one transport
// message. Index is the emission order, starting at zero.
type Batch struct {
	Index  int
	Chunks [][]byte
}

// A Pipeline compresses, encrypts, chunks and batches a byte stream. It
// implements io.WriteCloser: raw object bytes go in, and every time a batch
// is complete the emit callback receives it, in strict emission order and on
// the writing goroutine. Close flushes the trailing chunk and batch.
//
// Each Pipeline owns a freshly generated AES-256 key and IV, never reused
// across objects.
type Pipeline struct {
	key []byte
	iv  []byte

	gz       *gzip.Writer
	splitter *Splitter
	batcher  *Batcher
	stream   cipher.Stream
	emit     func(Batch) error
	index    int
	closed   bool
}

// NewPipeline returns a ready Pipeline. Zero or negative sizes fall back to
// the defaults.
func NewPipeline(chunkSize, batchLength int, emit func(Batch) error) (*Pipeline, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "could not generate object key")
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "could not generate object iv")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "could not build object cipher")
	}

	p := &Pipeline{
		key:      key,
		iv:       iv,
		splitter: NewSplitter(chunkSize),
		batcher:  NewBatcher(batchLength),
		stream:   cipher.NewCTR(block, iv),
		emit:     emit,
	}
	p.gz = gzip.NewWriter((*cipherStage)(p))
	return p, nil
}

// EncryptionKey returns the hex-encoded key material, "keyhex.ivhex". This
// is the format persisted in the object descriptor.
func (p *Pipeline) EncryptionKey() string {
	return hex.EncodeToString(p.key) + KeySeparator + hex.EncodeToString(p.iv)
}

// Write feeds raw object bytes into the pipeline. An error returned by the
// emit callback aborts the write.
func (p *Pipeline) Write(b []byte) (int, error) {
	return p.gz.Write(b)
}

// Close flushes the compressor and emits the trailing short chunk and
// partial batch. It must be called exactly once, after all writes.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.gz.Close(); err != nil {
		return err
	}

	stage := (*cipherStage)(p)
	if chunk := p.splitter.Flush(); chunk != nil {
		if err := stage.feed(chunk); err != nil {
			return err
		}
	}
	if batch := p.batcher.Flush(); batch != nil {
		return p.emitBatch(batch)
	}
	return nil
}

func (p *Pipeline) emitBatch(chunks [][]byte) error {
	batch := Batch{Index: p.index, Chunks: chunks}
	p.index++
	return p.emit(batch)
}

// cipherStage receives the compressed stream, encrypts it and forwards it to
// the splitter/batcher pair.
type cipherStage Pipeline

func (s *cipherStage) Write(b []byte) (int, error) {
	encrypted := make([]byte, len(b))
	s.stream.XORKeyStream(encrypted, b)

	for _, chunk := range s.splitter.Write(encrypted) {
		if err := s.feed(chunk); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func (s *cipherStage) feed(chunk []byte) error {
	if batch := s.batcher.Add(chunk); batch != nil {
		return (*Pipeline)(s).emitBatch(batch)
	}
	return nil
}

// ParseEncryptionKey splits the "keyhex.ivhex" key material recovered from a
// descriptor. It fails when either half is missing or not valid hex.
func ParseEncryptionKey(material string) (key, iv []byte, err error) {
	parts := strings.SplitN(material, KeySeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil, errors.New("malformed encryption key material")
	}

	key, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, errors.Wrap(err, "malformed encryption key")
	}

	iv, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, errors.Wrap(err, "malformed encryption iv")
	}
	return key, iv, nil
}

// NewDecryptReader wraps r with the inverse transforms of a Pipeline built
// from the given key material: decryption, then decompression when
// compressed is true. The reader verifies the compressed stream's checksum
// on EOF, so a truncated or corrupted stream surfaces as a read error.
func NewDecryptReader(r io.Reader, key, iv []byte, compressed bool) (io.Reader, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "could not build object cipher")
	}
	if len(iv) != block.BlockSize() {
		return nil, errors.New("malformed encryption iv")
	}

	var out io.Reader = cipher.StreamReader{
		S: cipher.NewCTR(block, iv),
		R: r,
	}

	if compressed {
		out, err = gzip.NewReader(out)
		if err != nil {
			return nil, errors.Wrap(err, "could not open compressed stream")
		}
	}
	return out, nil
}
