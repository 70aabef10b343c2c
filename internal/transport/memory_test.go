package transport_test

import (
	"context"
	"io"
	"testing"

	"github.com/beamstore/beamstore/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySendAndFetch(t *testing.T) {
	m := transport.NewInMemory(transport.Limits{})
	ctx := context.Background()

	msg, err := m.SendBatch(ctx, [][]byte{{1, 2}, {3}, {4, 5, 6}})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.Len(t, msg.AttachmentURLs, 3)

	rc, err := m.FetchBytes(ctx, msg.AttachmentURLs[2])
	require.NoError(t, err)
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5, 6}, payload)
}

func TestMemoryLimits(t *testing.T) {
	m := transport.NewInMemory(transport.Limits{MaxAttachments: 2, MaxMessageSize: 4})
	ctx := context.Background()

	_, err := m.SendBatch(ctx, [][]byte{{1}, {2}, {3}})
	assert.Error(t, err)

	_, err = m.SendBatch(ctx, [][]byte{{1, 2, 3}, {4, 5}})
	assert.Error(t, err)

	_, err = m.SendBatch(ctx, [][]byte{{1, 2}, {3, 4}})
	assert.NoError(t, err)

	_, err = m.SendBatch(ctx, nil)
	assert.Error(t, err)
}

func TestMemoryBody(t *testing.T) {
	m := transport.NewInMemory(transport.Limits{})
	ctx := context.Background()

	msg, err := m.SendBatch(ctx, [][]byte{{1}})
	require.NoError(t, err)

	body, err := m.FetchMessageBody(ctx, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, body)

	require.NoError(t, m.PatchMessageBody(ctx, msg.ID, "encoded"))

	body, err = m.FetchMessageBody(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "encoded", body)

	assert.Error(t, m.PatchMessageBody(ctx, "unknown", "encoded"))
}

func TestMemoryDelete(t *testing.T) {
	m := transport.NewInMemory(transport.Limits{})
	ctx := context.Background()

	msg, err := m.SendBatch(ctx, [][]byte{{1}})
	require.NoError(t, err)

	require.NoError(t, m.DeleteMessages(ctx, []string{msg.ID}))

	_, err = m.FetchMessageBody(ctx, msg.ID)
	assert.Error(t, err)

	_, err = m.FetchBytes(ctx, msg.AttachmentURLs[0])
	assert.Error(t, err)
}

func TestMemoryFetchUnknownAttachment(t *testing.T) {
	m := transport.NewInMemory(transport.Limits{})

	_, err := m.FetchBytes(context.Background(), "mem://unknown/0")
	assert.Error(t, err)
}
