package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/gofrs/uuid"
	"github.com/ncw/swift/v2"
	"github.com/pkg/errors"
)

// SwiftConfig configures the OpenStack Swift-backed Messenger.
type SwiftConfig struct {
	// Connection is an authenticated Swift connection.
	Connection *swift.Connection
	// Container holds every chunk and descriptor object.
	Container string
	// Limits are the per-message constraints. Zero fields get the defaults.
	Limits Limits
}

type swiftMessenger struct {
	cfg SwiftConfig
}

// NewSwift returns a Messenger emulating message semantics on a Swift
// container: a batch becomes objects "chunks/<msgid>/<n>" and the message
// body lives at "meta/<msgid>". Attachment URLs are the object names.
func NewSwift(cfg SwiftConfig) Messenger {
	if cfg.Limits.MaxAttachments == 0 {
		cfg.Limits.MaxAttachments = DefaultMaxAttachments
	}
	if cfg.Limits.MaxMessageSize == 0 {
		cfg.Limits.MaxMessageSize = DefaultMaxMessageSize
	}

	return &swiftMessenger{cfg: cfg}
}

func (s *swiftMessenger) Name() string {
	return "swift"
}

func (s *swiftMessenger) SendBatch(ctx context.Context, attachments [][]byte) (*Message, error) {
	if len(attachments) == 0 {
		return nil, errors.New("empty batch")
	}
	if err := s.cfg.Limits.check(attachments); err != nil {
		return nil, err
	}

	id := uuid.Must(uuid.NewV4()).String()

	urls := make([]string, 0, len(attachments))
	for i, attachment := range attachments {
		name := fmt.Sprintf("chunks/%s/%d", id, i)

		err := s.cfg.Connection.ObjectPutBytes(ctx, s.cfg.Container, name, attachment, "application/zip")
		if err != nil {
			// Do not leave a partial message behind.
			s.remove(ctx, id)
			return nil, errors.Wrap(err, "could not store chunk object")
		}
		urls = append(urls, name)
	}

	// The body object materializes the message before any patch.
	err := s.cfg.Connection.ObjectPutBytes(ctx, s.cfg.Container, bodyName(id), nil, "text/plain")
	if err != nil {
		s.remove(ctx, id)
		return nil, errors.Wrap(err, "could not store message body")
	}

	return &Message{ID: id, AttachmentURLs: urls}, nil
}

func (s *swiftMessenger) FetchBytes(ctx context.Context, url string) (io.ReadCloser, error) {
	file, _, err := s.cfg.Connection.ObjectOpen(ctx, s.cfg.Container, url, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not open chunk object")
	}
	return file, nil
}

func (s *swiftMessenger) FetchMessageBody(ctx context.Context, id string) (string, error) {
	payload, err := s.cfg.Connection.ObjectGetBytes(ctx, s.cfg.Container, bodyName(id))
	if err != nil {
		return "", errors.Wrap(err, "could not fetch message body")
	}
	return string(payload), nil
}

func (s *swiftMessenger) PatchMessageBody(ctx context.Context, id, body string) error {
	err := s.cfg.Connection.ObjectPutBytes(ctx, s.cfg.Container, bodyName(id), []byte(body), "text/plain")
	return errors.Wrap(err, "could not patch message body")
}

func (s *swiftMessenger) DeleteMessages(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.remove(ctx, id); err != nil {
			return errors.Wrapf(err, "could not delete message %s", id)
		}
	}
	return nil
}

func (s *swiftMessenger) remove(ctx context.Context, id string) error {
	names, err := s.cfg.Connection.ObjectNamesAll(ctx, s.cfg.Container, &swift.ObjectsOpts{
		Prefix: fmt.Sprintf("chunks/%s/", id),
	})
	if err != nil {
		return errors.Wrap(err, "could not list chunk objects")
	}

	names = append(names, bodyName(id))
	for _, name := range names {
		err = s.cfg.Connection.ObjectDelete(ctx, s.cfg.Container, name)
		if err != nil && err != swift.ObjectNotFound {
			return errors.Wrap(err, "could not delete object")
		}
	}
	return nil
}

func bodyName(id string) string {
	return "meta/" + id
}
