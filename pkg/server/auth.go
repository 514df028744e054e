package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"filehost/pkg/accounts"
	"filehost/pkg/apperr"
	"filehost/pkg/log"
	"filehost/pkg/models"
)

func (srv *Server) register(ctx echo.Context) error {
	var req accounts.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		log.Debug().Err(err).Msg("Failed to bind registration request")
		return srv.respondError(ctx, apperr.ValidationError{Reason: msgInvalidBody})
	}

	log.Info().Str("username", req.Username).Msg("Registration request received")

	user, err := srv.accounts.Register(ctx.Request().Context(), req)
	if err != nil {
		return srv.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, models.NewUserResponse(user))
}

func (srv *Server) login(ctx echo.Context) error {
	var req accounts.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		log.Debug().Err(err).Msg("Failed to bind login request")
		return srv.respondError(ctx, apperr.ValidationError{Reason: msgInvalidBody})
	}

	user, err := srv.accounts.Login(ctx.Request().Context(), req)
	if err != nil {
		return srv.respondError(ctx, err)
	}

	log.Info().Int64("user_id", user.ID).Msg("User logged in")
	return ctx.JSON(http.StatusOK, models.NewUserResponse(user))
}
