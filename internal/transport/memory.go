package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

var (
	errTooManyAttachments = errors.New("too many attachments for one message")
	errMessageTooLarge    = errors.New("message exceeds the size limit")
)

type memMessage struct {
	body        string
	attachments map[string][]byte
}

type memory struct {
	limits Limits

	mu       sync.Mutex
	messages map[string]*memMessage
}

// NewInMemory returns a process-local Messenger. It backs the development
// mode and the test suites; it enforces the same limits as the real
// transports.
func NewInMemory(limits Limits) Messenger {
	return &memory{
		limits:   limits,
		messages: map[string]*memMessage{},
	}
}

func (m *memory) Name() string {
	return "memory"
}

func (m *memory) SendBatch(ctx context.Context, attachments [][]byte) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(attachments) == 0 {
		return nil, errors.New("empty batch")
	}
	if err := m.limits.check(attachments); err != nil {
		return nil, err
	}

	id := uuid.Must(uuid.NewV4()).String()
	msg := &memMessage{attachments: map[string][]byte{}}

	urls := make([]string, 0, len(attachments))
	for i, attachment := range attachments {
		url := fmt.Sprintf("mem://%s/%d", id, i)
		buf := make([]byte, len(attachment))
		copy(buf, attachment)

		msg.attachments[url] = buf
		urls = append(urls, url)
	}

	m.mu.Lock()
	m.messages[id] = msg
	m.mu.Unlock()

	return &Message{ID: id, AttachmentURLs: urls}, nil
}

func (m *memory) FetchBytes(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if buf, ok := msg.attachments[url]; ok {
			return io.NopCloser(bytes.NewReader(buf)), nil
		}
	}
	return nil, errors.Errorf("unknown attachment %s", url)
}

func (m *memory) FetchMessageBody(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return "", errors.Errorf("unknown message %s", id)
	}
	return msg.body, nil
}

func (m *memory) PatchMessageBody(ctx context.Context, id, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return errors.Errorf("unknown message %s", id)
	}
	msg.body = body
	return nil
}

func (m *memory) DeleteMessages(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.messages, id)
	}
	return nil
}
