package service_test

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/beamstore/beamstore/internal/transport"
	"github.com/beamstore/beamstore/internal/webserver/service"
	"github.com/mdouchement/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type env struct {
	db         database.Client
	messenger  transport.Messenger
	store      *metadata.Store
	uploader   *service.Uploader
	downloader *service.Downloader
	destroyer  *service.Destroyer
}

var testConfig = service.Config{
	ChunkSize:   4096,
	BatchLength: 3,
}

// setup builds the services over a temporary database and the given
// messenger (the in-memory transport when nil).
func setup(t *testing.T, messenger transport.Messenger, config service.Config) *env {
	t.Helper()

	if messenger == nil {
		messenger = transport.NewInMemory(transport.Limits{})
	}

	dbfile, err := os.CreateTemp(t.TempDir(), "beamstore.db.")
	require.NoError(t, err)
	require.NoError(t, dbfile.Close())

	db, err := database.StormOpen(dbfile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	codec, err := metadata.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	store, err := metadata.NewStore(codec, messenger, 10)
	require.NoError(t, err)

	log := testLogger()

	return &env{
		db:         db,
		messenger:  messenger,
		store:      store,
		uploader:   service.NewUploader(log, db, messenger, store, config),
		downloader: service.NewDownloader(log, db, messenger, store),
		destroyer:  service.NewDestroyer(log, db, messenger, store, config.Timeout),
	}
}

func testLogger() logger.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logger.WrapLogrus(log)
}

// hooked wraps a Messenger and lets a test intercept individual calls.
type hooked struct {
	transport.Messenger

	send       func(ctx context.Context, attachments [][]byte, next transport.Messenger) (*transport.Message, error)
	fetch      func(ctx context.Context, url string, next transport.Messenger) (io.ReadCloser, error)
	deleteHook func(ctx context.Context, ids []string, next transport.Messenger) error
}

func (h *hooked) SendBatch(ctx context.Context, attachments [][]byte) (*transport.Message, error) {
	if h.send != nil {
		return h.send(ctx, attachments, h.Messenger)
	}
	return h.Messenger.SendBatch(ctx, attachments)
}

func (h *hooked) FetchBytes(ctx context.Context, url string) (io.ReadCloser, error) {
	if h.fetch != nil {
		return h.fetch(ctx, url, h.Messenger)
	}
	return h.Messenger.FetchBytes(ctx, url)
}

func (h *hooked) DeleteMessages(ctx context.Context, ids []string) error {
	if h.deleteHook != nil {
		return h.deleteHook(ctx, ids, h.Messenger)
	}
	return h.Messenger.DeleteMessages(ctx, ids)
}
