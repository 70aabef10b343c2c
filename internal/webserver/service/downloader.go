package service

import (
	"context"
	"io"

	"github.com/beamstore/beamstore/internal/chunk"
	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/beamstore/beamstore/internal/transport"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
)

// A Downloader resolves an ident to its descriptor and streams the original
// bytes back out: chunks are fetched strictly in stored order and fed
// through the decrypt and decompress stages as they arrive. Nothing is
// buffered beyond one chunk fetch.
type Downloader struct {
	logger    logger.Logger
	db        database.Client
	messenger transport.Messenger
	metadata  *metadata.Store
}

// NewDownloader returns a new Downloader.
func NewDownloader(l logger.Logger, db database.Client, messenger transport.Messenger, store *metadata.Store) *Downloader {
	return &Downloader{
		logger:    l,
		db:        db,
		messenger: messenger,
		metadata:  store,
	}
}

// A Download exposes the decoded descriptor and the plaintext stream.
type Download struct {
	Descriptor *metadata.Descriptor

	r      io.Reader
	chunks io.Closer
}

func (d *Download) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

// Close releases the underlying chunk stream.
func (d *Download) Close() error {
	return d.chunks.Close()
}

// Open prepares the streaming download of an object. It fails with
// ErrNotFound when the catalog holds no record (or one without attachments)
// and with a metadata decode error when the descriptor or its key material
// is unreadable.
func (s *Downloader) Open(ctx context.Context, ident string) (*Download, error) {
	file, err := s.db.FindFileByIdent(ident)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, errors.WithStack(ErrNotFound)
		}
		return nil, err
	}
	if len(file.Attachments) == 0 || len(file.Messages) == 0 {
		return nil, errors.WithStack(ErrNotFound)
	}

	// The view counts even when the chunk fetches fail later; the counter is
	// advisory and a compensating write would buy no consistency.
	if err = s.db.IncrementFileViews(file.ID); err != nil {
		s.logger.Errorf("could not increment views of %s: %s", file.Ident, err)
	}

	descriptor, err := s.metadata.Load(ctx, file.Messages[0].MessageID)
	if err != nil {
		return nil, err
	}

	key, iv, err := chunk.ParseEncryptionKey(descriptor.Encryption)
	if err != nil {
		return nil, errors.Wrap(metadata.ErrDecode, err.Error())
	}

	chunks := &chunkReader{
		ctx:       ctx,
		messenger: s.messenger,
		urls:      file.Attachments,
	}

	r, err := chunk.NewDecryptReader(chunks, key, iv, descriptor.Compressed)
	if err != nil {
		chunks.Close()

		// Opening the decompress stage reads the stream header, so a chunk
		// fetch failure can surface here; it is not a key-material fault.
		var terr *TransportError
		if errors.As(err, &terr) {
			return nil, err
		}
		return nil, errors.Wrap(metadata.ErrDecode, err.Error())
	}

	return &Download{
		Descriptor: descriptor,
		r:          r,
		chunks:     chunks,
	}, nil
}

// chunkReader concatenates the attachments of an object, fetching them one
// at a time. Retrieval is strictly sequential: the decrypt stage is a
// stateful stream cipher and requires exact byte order.
type chunkReader struct {
	ctx       context.Context
	messenger transport.Messenger
	urls      []string
	index     int
	current   io.ReadCloser
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for {
		if r.current == nil {
			if r.index >= len(r.urls) {
				return 0, io.EOF
			}

			rc, err := r.messenger.FetchBytes(r.ctx, r.urls[r.index])
			if err != nil {
				// Abort the stream, never skip a chunk.
				return 0, &TransportError{Op: "fetch chunk", Err: err}
			}
			r.current = rc
			r.index++
		}

		n, err := r.current.Read(p)
		if err == io.EOF {
			r.current.Close()
			r.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *chunkReader) Close() error {
	if r.current != nil {
		err := r.current.Close()
		r.current = nil
		return err
	}
	return nil
}
