// Package transport abstracts the external message-based service used as
// chunk storage. A message carries up to a fixed number of binary
// attachments and a small text body; the service enforces per-attachment and
// per-message size limits and offers no large-object support. Everything
// above this package treats messages as the only durable home of chunk bytes
// and descriptors.
package transport

import (
	"context"
	"io"
)

// Default platform limits, matching the production transport.
const (
	DefaultMaxAttachments = 10
	DefaultMaxMessageSize = 100 << 20
)

// A Message is the acknowledgement of a sent batch: the message id and one
// fetch URL per attachment, in the order the attachments were sent.
type Message struct {
	ID             string
	AttachmentURLs []string
}

// Limits describes the per-message constraints enforced by a Messenger.
type Limits struct {
	// MaxAttachments is the maximum number of attachments per message.
	MaxAttachments int
	// MaxMessageSize is the maximum total attachment size per message.
	MaxMessageSize int64
}

// A Messenger sends and retrieves messages on the transport.
type Messenger interface {
	// Name returns the name of the transport implementation.
	Name() string

	// SendBatch sends one message carrying the given attachments. It fails
	// when the batch exceeds the platform limits.
	SendBatch(ctx context.Context, attachments [][]byte) (*Message, error)
	// FetchBytes streams the bytes of a single attachment. It fails on any
	// non-success status.
	FetchBytes(ctx context.Context, url string) (io.ReadCloser, error)

	// FetchMessageBody returns the text body of a message.
	FetchMessageBody(ctx context.Context, id string) (string, error)
	// PatchMessageBody replaces the text body of a message.
	PatchMessageBody(ctx context.Context, id, body string) error

	// DeleteMessages removes the given messages and their attachments. It
	// returns the first failure; callers treat deletion as best-effort.
	DeleteMessages(ctx context.Context, ids []string) error
}

func (l Limits) check(attachments [][]byte) error {
	if l.MaxAttachments > 0 && len(attachments) > l.MaxAttachments {
		return errTooManyAttachments
	}

	if l.MaxMessageSize > 0 {
		var total int64
		for _, a := range attachments {
			total += int64(len(a))
		}
		if total > l.MaxMessageSize {
			return errMessageTooLarge
		}
	}
	return nil
}
