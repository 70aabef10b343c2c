package metadata_test

import (
	"context"
	"testing"

	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/beamstore/beamstore/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func store(t *testing.T) (*metadata.Store, transport.Messenger, string) {
	t.Helper()

	messenger := transport.NewInMemory(transport.Limits{})
	s, err := metadata.NewStore(codec(t), messenger, 10)
	require.NoError(t, err)

	msg, err := messenger.SendBatch(context.Background(), [][]byte{{1}})
	require.NoError(t, err)

	return s, messenger, msg.ID
}

func TestStoreRoundTrip(t *testing.T) {
	s, _, id := store(t)
	ctx := context.Background()

	d := descriptor()
	require.NoError(t, s.Save(ctx, id, d))

	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, d, loaded)

	// The message body holds the encoded descriptor, not the cache only.
	s.Forget(id)
	loaded, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, d, loaded)
}

func TestStoreWriteThrough(t *testing.T) {
	s, messenger, id := store(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, id, descriptor()))

	// A stale body does not disturb a cached descriptor.
	require.NoError(t, messenger.PatchMessageBody(ctx, id, "garbage"))

	_, err := s.Load(ctx, id)
	assert.NoError(t, err)
}

func TestStoreUndecodableBody(t *testing.T) {
	s, messenger, id := store(t)
	ctx := context.Background()

	require.NoError(t, messenger.PatchMessageBody(ctx, id, "garbage"))

	_, err := s.Load(ctx, id)
	require.Error(t, err)
	assert.True(t, metadata.IsDecode(err))
}

func TestStoreEmptyBody(t *testing.T) {
	s, _, id := store(t)

	_, err := s.Load(context.Background(), id)
	require.Error(t, err)
	assert.True(t, metadata.IsDecode(err))
}

func TestStoreUnknownMessage(t *testing.T) {
	s, _, _ := store(t)

	_, err := s.Load(context.Background(), "unknown")
	require.Error(t, err)
	assert.False(t, metadata.IsDecode(err))
}
