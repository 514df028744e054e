package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"filehost/pkg/log"
	"filehost/pkg/models"
)

const healthTimeout = 2 * time.Second

// health handles GET /health. It answers 503 when the metadata database is unreachable.
func (srv *Server) health(ctx echo.Context) error {
	resp := models.HealthResponse{
		Status:   "ok",
		Version:  srv.version,
		Database: "ok",
	}
	status := http.StatusOK

	if srv.database != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthTimeout)
		defer cancel()
		if err := srv.database.Ping(pingCtx); err != nil {
			log.Error().Err(err).Msg("Database health check failed")
			resp.Status = "degraded"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	if srv.storage != nil {
		usage, err := srv.storage.Usage()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to collect storage usage")
		} else {
			resp.Storage = usage
		}
	}

	return ctx.JSON(status, resp)
}
