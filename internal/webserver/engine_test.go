package webserver_test

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/metadata"
	"github.com/beamstore/beamstore/internal/transport"
	"github.com/beamstore/beamstore/internal/webserver"
	"github.com/beamstore/beamstore/internal/webserver/middleware"
	"github.com/beamstore/beamstore/internal/webserver/service"
	"github.com/mdouchement/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *httptest.Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	dbfile, err := os.CreateTemp(t.TempDir(), "beamstore.db.")
	require.NoError(t, err)
	require.NoError(t, dbfile.Close())

	db, err := database.StormOpen(dbfile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	messenger := transport.NewInMemory(transport.Limits{})

	codec, err := metadata.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	store, err := metadata.NewStore(codec, messenger, 10)
	require.NoError(t, err)

	engine := webserver.EchoEngine(webserver.Controller{
		Version:  "test",
		Logger:   logger.WrapLogrus(log),
		Database: db,
		Metadata: store,
		Service: service.Config{
			ChunkSize:     4096,
			BatchLength:   3,
			MaxObjectSize: 1 << 20,
		},
		Transport: messenger,
	})

	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	return ts
}

func upload(t *testing.T, ts *httptest.Server, ownerKey, filename string, content []byte) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("files", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/files", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set(middleware.OwnerKeyHeader, ownerKey)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func request(t *testing.T, ts *httptest.Server, method, path, ownerKey string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, nil)
	require.NoError(t, err)
	if ownerKey != "" {
		req.Header.Set(middleware.OwnerKeyHeader, ownerKey)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func decode(t *testing.T, res *http.Response, out interface{}) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(out))
}

func TestFileLifecycle(t *testing.T) {
	ts := setup(t)

	content := make([]byte, 50_000)
	_, err := rand.Read(content)
	require.NoError(t, err)

	// Upload
	res := upload(t, ts, "owner-1", "archive.tar", content)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var uploaded struct {
		Idents []struct {
			Ident    string `json:"ident"`
			Filename string `json:"filename"`
		} `json:"idents"`
	}
	decode(t, res, &uploaded)
	require.Len(t, uploaded.Idents, 1)
	assert.Equal(t, "archive.tar", uploaded.Idents[0].Filename)
	ident := uploaded.Idents[0].Ident
	require.Len(t, ident, 20)

	// List
	res = request(t, ts, http.MethodGet, "/api/files", "owner-1")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var listed struct {
		Files []struct {
			Filename string `json:"filename"`
			Ident    string `json:"ident"`
			Size     int64  `json:"size"`
			Views    int64  `json:"views"`
		} `json:"files"`
	}
	decode(t, res, &listed)
	require.Len(t, listed.Files, 1)
	assert.Equal(t, ident, listed.Files[0].Ident)
	assert.Equal(t, int64(len(content)), listed.Files[0].Size)

	// Download
	res = request(t, ts, http.MethodGet, "/api/files/"+ident, "owner-1")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, fmt.Sprint(len(content)), res.Header.Get("Content-Length"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "archive.tar")

	output, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	require.True(t, bytes.Equal(content, output))

	// Delete
	res = request(t, ts, http.MethodDelete, "/api/files/"+ident, "owner-1")
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = request(t, ts, http.MethodGet, "/api/files/"+ident, "owner-1")
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestMissingOwnerKey(t *testing.T) {
	ts := setup(t)

	res := request(t, ts, http.MethodGet, "/api/files", "")
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestMalformedMultipart(t *testing.T) {
	ts := setup(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/files", bytes.NewReader([]byte("not multipart")))
	require.NoError(t, err)
	req.Header.Set(middleware.OwnerKeyHeader, "owner-1")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestEmptyFileYieldsNoIdent(t *testing.T) {
	ts := setup(t)

	res := upload(t, ts, "owner-1", "empty.txt", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var uploaded struct {
		Idents []interface{} `json:"idents"`
	}
	decode(t, res, &uploaded)
	assert.Empty(t, uploaded.Idents)
}

func TestOversizeUploadRejected(t *testing.T) {
	ts := setup(t)

	content := make([]byte, 2<<20)
	res := upload(t, ts, "owner-1", "big.bin", content)
	res.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestDownloadUnknownIdent(t *testing.T) {
	ts := setup(t)

	res := request(t, ts, http.MethodGet, "/api/files/00112233445566778899", "owner-1")
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDeleteUnownedFile(t *testing.T) {
	ts := setup(t)

	content := make([]byte, 100)
	res := upload(t, ts, "owner-1", "data.bin", content)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var uploaded struct {
		Idents []struct {
			Ident string `json:"ident"`
		} `json:"idents"`
	}
	decode(t, res, &uploaded)
	require.Len(t, uploaded.Idents, 1)

	// No owner record at all: unauthorized.
	res = request(t, ts, http.MethodDelete, "/api/files/"+uploaded.Idents[0].Ident, "stranger")
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestUploadRateLimit(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	dbfile, err := os.CreateTemp(t.TempDir(), "beamstore.db.")
	require.NoError(t, err)
	require.NoError(t, dbfile.Close())

	db, err := database.StormOpen(dbfile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	messenger := transport.NewInMemory(transport.Limits{})
	codec, err := metadata.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	store, err := metadata.NewStore(codec, messenger, 10)
	require.NoError(t, err)

	engine := webserver.EchoEngine(webserver.Controller{
		Version:  "test",
		Logger:   logger.WrapLogrus(log),
		Database: db,
		Metadata: store,
		Service: service.Config{
			ChunkSize:   4096,
			BatchLength: 3,
		},
		Transport: messenger,
		// Burst of one: the second immediate upload is throttled.
		UploadsPerMinute: 1,
	})
	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)

	res := upload(t, ts, "owner-1", "a.bin", []byte("content"))
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = upload(t, ts, "owner-1", "b.bin", []byte("content"))
	res.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)

	// The read routes stay unthrottled.
	res = request(t, ts, http.MethodGet, "/api/files", "owner-1")
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestVersion(t *testing.T) {
	ts := setup(t)

	res, err := http.Get(ts.URL + "/version")
	require.NoError(t, err)

	var version struct {
		Version string `json:"version"`
	}
	decode(t, res, &version)
	assert.Equal(t, "test", version.Version)
}
