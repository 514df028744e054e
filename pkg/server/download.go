package server

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"filehost/pkg/log"
)

func (srv *Server) downloadFile(ctx echo.Context) error {
	name := ctx.Param("filename")
	log.Info().Str("storage_name", name).Msg("File download request")

	obj, err := srv.files.Open(ctx.Request().Context(), name)
	if err != nil {
		return srv.respondError(ctx, err)
	}
	defer func() {
		if err := obj.Close(); err != nil {
			log.Error().Err(err).Str("storage_name", name).Msg("Failed to close stored file")
		}
	}()

	contentType := obj.Record.MimeType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	header := ctx.Response().Header()
	header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	header.Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": obj.Record.OriginalName}))

	log.Info().
		Str("storage_name", name).
		Str("original_name", obj.Record.OriginalName).
		Int64("size", obj.Size).
		Msg("Serving file download")

	if err := ctx.Stream(http.StatusOK, contentType, obj); err != nil {
		log.Error().Err(err).Str("storage_name", name).Msg("Download interrupted")
		return srv.respondError(ctx, err)
	}
	return nil
}
