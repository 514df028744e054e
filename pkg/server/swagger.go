package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"filehost/pkg/log"
)

//go:embed web/swagger.yml web/swagger-ui.html
var webFS embed.FS

var swaggerUI = template.Must(template.ParseFS(webFS, "web/swagger-ui.html"))

func (srv *Server) serveSwaggerUI(ctx echo.Context) error {
	data := struct {
		Title       string
		SwaggerPath string
	}{
		Title:       "File Host API Documentation",
		SwaggerPath: "/swagger.yml",
	}

	ctx.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	ctx.Response().WriteHeader(http.StatusOK)
	if err := swaggerUI.Execute(ctx.Response().Writer, data); err != nil {
		log.Error().Err(err).Msg("Failed to render swagger UI")
		return err
	}
	return nil
}

func (srv *Server) serveSwaggerSpec(ctx echo.Context) error {
	spec, err := webFS.ReadFile("web/swagger.yml")
	if err != nil {
		return srv.respondError(ctx, err)
	}
	return ctx.Blob(http.StatusOK, "application/yaml", spec)
}
