package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"filehost/pkg/apperr"
	"filehost/pkg/log"
	"filehost/pkg/models"
	"filehost/pkg/store"
	"filehost/pkg/upload"
)

// Multipart field names of POST /api/files/upload.
const (
	fieldUserID = "userId"
	fieldFiles  = "files"
)

func (srv *Server) uploadFiles(ctx echo.Context) error {
	log.Info().Msg("File upload request received")

	form, err := ctx.MultipartForm()
	if err != nil {
		var (
			maxBytesErr *http.MaxBytesError
			httpErr     *echo.HTTPError
		)
		if errors.As(err, &maxBytesErr) || errors.As(err, &httpErr) {
			return srv.respondError(ctx, err)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return srv.respondError(ctx, apperr.ValidationError{Reason: store.ReasonNoFiles})
		}
		log.Error().Err(err).Msg("Failed to parse multipart form")
		return srv.respondError(ctx, apperr.ValidationError{Reason: msgInvalidBody})
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			log.Error().Err(err).Msg("Failed to remove multipart temp files")
		}
	}()

	req := upload.Request{
		UserID: firstValue(form.Value[fieldUserID]),
		Files:  make([]*store.Incoming, 0, len(form.File[fieldFiles])),
	}
	for _, fh := range form.File[fieldFiles] {
		req.Files = append(req.Files, incomingFromHeader(fieldFiles, fh))
	}

	files, err := srv.uploads.Upload(ctx.Request().Context(), req)
	if err != nil {
		return srv.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, models.FileListResponse{Files: files})
}

func (srv *Server) listFiles(ctx echo.Context) error {
	userID := ctx.Param("userId")
	log.Info().Str("user_id", userID).Msg("File list request")

	files, err := srv.uploads.ListFiles(ctx.Request().Context(), userID)
	if err != nil {
		return srv.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.FileListResponse{Files: files})
}

func incomingFromHeader(field string, fh *multipart.FileHeader) *store.Incoming {
	return &store.Incoming{
		FieldName:    field,
		OriginalName: fh.Filename,
		MimeType:     fh.Header.Get(echo.HeaderContentType),
		Size:         fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
