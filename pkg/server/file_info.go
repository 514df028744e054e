package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"filehost/pkg/log"
)

func (srv *Server) getFileInfo(ctx echo.Context) error {
	name := ctx.Param("filename")
	log.Info().Str("storage_name", name).Msg("File info request")

	info, err := srv.files.Info(ctx.Request().Context(), name)
	if err != nil {
		return srv.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, info)
}

func (srv *Server) verifyFile(ctx echo.Context) error {
	name := ctx.Param("filename")
	log.Info().Str("storage_name", name).Msg("File verify request")

	result, err := srv.files.Verify(ctx.Request().Context(), name)
	if err != nil {
		return srv.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}
