package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/beamstore/beamstore/internal/chunk"
	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/beamstore/beamstore/internal/model"
	"github.com/beamstore/beamstore/internal/transport"
	"github.com/beamstore/beamstore/internal/xname"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const identSize = 10

// A Config carries the tunables shared by the services.
type Config struct {
	// ChunkSize is the size of one chunk. Defaults to chunk.DefaultSize.
	ChunkSize int
	// BatchLength is the number of chunks per message. Defaults to
	// chunk.DefaultBatchLength.
	BatchLength int
	// MaxObjectSize caps the raw size of one upload. Zero means unbounded.
	MaxObjectSize int64
	// Timeout bounds each transport call. Defaults to 60s.
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return c.Timeout
}

// An Uploader drives the transform pipeline and commits uploads: it sends
// every batch to the transport, verifies the acknowledgements, stores the
// descriptor and writes the catalog record. Any failure rolls back every
// message already sent, so an upload is never partially visible.
type Uploader struct {
	logger    logger.Logger
	db        database.Client
	messenger transport.Messenger
	metadata  *metadata.Store
	config    Config
}

// NewUploader returns a new Uploader.
func NewUploader(l logger.Logger, db database.Client, messenger transport.Messenger, store *metadata.Store, config Config) *Uploader {
	return &Uploader{
		logger:    l,
		db:        db,
		messenger: messenger,
		metadata:  store,
		config:    config,
	}
}

// Upload stores the content of r as a new immutable object owned by
// ownerKey and returns its committed catalog record.
func (s *Uploader) Upload(ctx context.Context, ownerKey, filename, mimeType string, r io.Reader) (*model.File, error) {
	sanitized := xname.Sanitize(filename)
	if sanitized == "" {
		return nil, &ValidationError{Reason: "unusable filename"}
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		mu       sync.Mutex
		counts   []int                // chunks per batch, emission order
		messages []*transport.Message // acknowledgements, emission order
	)

	pipeline, err := chunk.NewPipeline(s.config.ChunkSize, s.config.BatchLength, func(b chunk.Batch) error {
		// Emission order: the callback runs on the writing goroutine, so
		// counts grows in batch index order. Only sends are concurrent.
		mu.Lock()
		counts = append(counts, len(b.Chunks))
		messages = append(messages, nil)
		mu.Unlock()

		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, s.config.timeout())
			defer cancel()

			msg, err := s.messenger.SendBatch(sctx, b.Chunks)
			if err != nil {
				return &TransportError{Op: "send batch", Err: err}
			}

			mu.Lock()
			messages[b.Index] = msg
			mu.Unlock()
			return nil
		})
		return gctx.Err()
	})
	if err != nil {
		return nil, err
	}

	size, err := io.Copy(pipeline, s.limit(r))
	if err == nil {
		if size == 0 {
			// No batch was emitted yet: rejecting here leaves no side effects.
			return nil, &ValidationError{Reason: "empty upload"}
		}
		err = pipeline.Close()
	}
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		s.rollback(messages)
		return nil, err
	}

	for i, msg := range messages {
		if len(msg.AttachmentURLs) != counts[i] {
			s.rollback(messages)
			return nil, errors.WithStack(&VerificationError{
				MessageID: msg.ID,
				Expected:  counts[i],
				Got:       len(msg.AttachmentURLs),
			})
		}
	}

	ident, err := newIdent()
	if err != nil {
		s.rollback(messages)
		return nil, err
	}

	descriptor := &metadata.Descriptor{
		Ident:      ident,
		Filename:   sanitized,
		MimeType:   mimeType,
		Size:       size,
		Compressed: true,
		Encryption: pipeline.EncryptionKey(),
		Chunks:     map[string]int{},
	}

	file := &model.File{
		Ident:    ident,
		Filename: sanitized,
		MimeType: mimeType,
		Size:     size,
	}
	for i, msg := range messages {
		descriptor.Chunks[msg.ID] = counts[i]
		file.Messages = append(file.Messages, model.ChunkLocation{MessageID: msg.ID, Chunks: counts[i]})
		file.Attachments = append(file.Attachments, msg.AttachmentURLs...)
	}

	// The descriptor must be durable before the catalog commit: a download
	// reaches it through the first recorded message id.
	sctx, cancel := context.WithTimeout(ctx, s.config.timeout())
	defer cancel()
	if err = s.metadata.Save(sctx, messages[0].ID, descriptor); err != nil {
		s.rollback(messages)
		return nil, err
	}

	if err = s.db.CreateFileForOwner(ownerKey, file); err != nil {
		s.rollback(messages)
		return nil, err
	}

	s.logger.Infof("File uploaded[%s]: %s, size: %d, mimeType: %s [%s]",
		file.Ident, file.Filename, file.Size, file.MimeType, ownerKey)
	return file, nil
}

// limit rejects streams exceeding MaxObjectSize mid-copy.
func (s *Uploader) limit(r io.Reader) io.Reader {
	if s.config.MaxObjectSize <= 0 {
		return r
	}
	return &limitedReader{r: r, left: s.config.MaxObjectSize}
}

// rollback deletes every acknowledged message of a failed upload. Deletion
// is best-effort: failures are logged and the messages recorded as orphans
// for the scheduler to retry.
func (s *Uploader) rollback(messages []*transport.Message) {
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg != nil {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	// The request context may already be canceled; the cleanup gets its own.
	ctx, cancel := context.WithTimeout(context.Background(), s.config.timeout())
	defer cancel()

	if err := s.messenger.DeleteMessages(ctx, ids); err != nil {
		s.logger.Errorf("rollback: could not delete %d message(s): %s", len(ids), err)
		if err = s.db.CreateOrphans(ids); err != nil {
			s.logger.Errorf("rollback: could not record orphans: %s", err)
		}
	}
}

type limitedReader struct {
	r    io.Reader
	left int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n, errors.WithStack(&ValidationError{Reason: "object exceeds the maximum size", TooLarge: true})
	}
	return n, err
}

func newIdent() (string, error) {
	buf := make([]byte, identSize)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "could not generate ident")
	}
	return hex.EncodeToString(buf), nil
}
