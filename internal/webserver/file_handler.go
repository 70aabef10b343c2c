package webserver

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/beamstore/beamstore/internal/database"
	"github.com/beamstore/beamstore/internal/webserver/middleware"
	"github.com/beamstore/beamstore/internal/webserver/serializer"
	"github.com/beamstore/beamstore/internal/webserver/service"
	"github.com/beamstore/beamstore/internal/webserver/weberror"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
)

type file struct {
	logger        logger.Logger
	db            database.Client
	uploader      *service.Uploader
	downloader    *service.Downloader
	destroyer     *service.Destroyer
	maxObjectSize int64
}

// Upload stores every file of the multipart request as a new object.
// Files rejected by validation (empty content, unusable filename) are
// skipped; the response lists the idents of the committed ones.
func (h *file) Upload(c echo.Context) error {
	c.Set("handler_method", "file.Upload")
	req := c.Request()

	if h.maxObjectSize > 0 && req.ContentLength > h.maxObjectSize {
		return weberror.New(http.StatusRequestEntityTooLarge, "upload exceeds the maximum object size")
	}

	mr, err := req.MultipartReader()
	if err != nil {
		return weberror.New(http.StatusBadRequest, "malformed multipart request")
	}

	uploads := make([]map[string]interface{}, 0)
	parts := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return weberror.New(http.StatusBadRequest, "malformed multipart request")
		}
		if part.FileName() == "" {
			continue
		}
		parts++

		mime := part.Header.Get("Content-Type")
		if mime == "" {
			mime = echo.MIMEOctetStream
		}

		record, err := h.uploader.Upload(req.Context(), middleware.OwnerKey(c), part.FileName(), mime, part)
		if err != nil {
			if service.IsValidation(err) && !service.IsTooLarge(err) {
				// Same contract as a missing file: no ident is returned.
				continue
			}
			return h.weberr(err)
		}
		uploads = append(uploads, serializer.Upload(record))
	}

	if parts == 0 {
		return weberror.New(http.StatusBadRequest, "no file in multipart request")
	}

	return c.JSON(http.StatusOK, echo.Map{"idents": uploads})
}

// List returns the current owner's files.
func (h *file) List(c echo.Context) error {
	c.Set("handler_method", "file.List")

	owner, err := h.db.FindOwnerByKey(middleware.OwnerKey(c))
	if err != nil {
		if h.db.IsNotFound(err) {
			return c.JSON(http.StatusOK, echo.Map{"files": serializer.Files(nil)})
		}
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	files, err := h.db.FindFilesByOwnerID(owner.ID)
	if err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"files": serializer.Files(files)})
}

// Download streams the decrypted content of an object.
func (h *file) Download(c echo.Context) error {
	c.Set("handler_method", "file.Download")

	download, err := h.downloader.Open(c.Request().Context(), c.Param("ident"))
	if err != nil {
		return h.weberr(err)
	}
	defer download.Close()

	descriptor := download.Descriptor
	c.Response().Header().Set(echo.HeaderContentDisposition,
		"attachment; filename*=utf-8''"+url.PathEscape(descriptor.Filename))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(descriptor.Size, 10))
	return c.Stream(http.StatusOK, descriptor.MimeType, download)
}

// Delete removes an object and its transport chunks.
func (h *file) Delete(c echo.Context) error {
	c.Set("handler_method", "file.Delete")

	err := h.destroyer.Destroy(c.Request().Context(), middleware.OwnerKey(c), c.Param("ident"))
	if err != nil {
		return h.weberr(err)
	}

	return c.NoContent(http.StatusOK)
}

func (h *file) weberr(err error) error {
	switch {
	case service.IsNotFound(err):
		return weberror.New(http.StatusNotFound, "file not found")
	case service.IsUnauthorized(err):
		return weberror.New(http.StatusUnauthorized, "file not owned")
	case service.IsForbidden(err):
		return weberror.New(http.StatusForbidden, "unreadable file metadata")
	case service.IsTooLarge(err):
		return weberror.New(http.StatusRequestEntityTooLarge, err.Error())
	case service.IsValidation(err):
		return weberror.New(http.StatusBadRequest, err.Error())
	default:
		return weberror.New(http.StatusInternalServerError, err.Error())
	}
}
