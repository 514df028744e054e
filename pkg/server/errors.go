package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"filehost/pkg/apperr"
	"filehost/pkg/log"
)

// Client-facing messages for server-side failures. Details only go to the log.
const (
	msgStorageError   = "storage error"
	msgIntegrityError = "integrity check failed"
	msgInternalError  = "internal server error"
	msgBodyTooLarge   = "request body too large"
	msgInvalidBody    = "invalid request body"
)

// respondError maps a service error to a status code and a JSON error body.
func (srv *Server) respondError(ctx echo.Context, err error) error {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", ctx.Response().Header().Get(echo.HeaderXRequestID)).
			Str("path", ctx.Path()).
			Msg("Request failed")
	}

	if ctx.Response().Committed {
		// Headers and part of the body are already out; the handler's error makes
		// net/http drop the connection instead of finishing a truncated response.
		return err
	}
	return ctx.JSON(status, map[string]string{"error": message})
}

func classify(err error) (int, string) {
	var (
		validationErr apperr.ValidationError
		notFoundErr   apperr.NotFoundError
		conflictErr   apperr.ConflictError
		authErr       apperr.AuthError
		integrityErr  apperr.IntegrityError
		storageErr    apperr.StorageError
		maxBytesErr   *http.MaxBytesError
		httpErr       *echo.HTTPError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Reason
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, notFoundErr.Error()
	case errors.As(err, &conflictErr):
		return http.StatusConflict, conflictErr.Reason
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, authErr.Error()
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, msgBodyTooLarge
	case errors.As(err, &integrityErr):
		return http.StatusInternalServerError, msgIntegrityError
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError, msgStorageError
	case errors.As(err, &httpErr):
		if httpErr.Code == http.StatusRequestEntityTooLarge {
			return httpErr.Code, msgBodyTooLarge
		}
		return httpErr.Code, http.StatusText(httpErr.Code)
	}
	return http.StatusInternalServerError, msgInternalError
}
