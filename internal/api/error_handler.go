package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/provider"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
//
// Streaming handlers commit the response before relaying, so a failure
// mid-stream never reaches this handler; it reports through the stream's own
// error event instead.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Provider failures surface as a bad gateway; the message is the
	// provider's, the incurred cost was already settled by the service.
	var pe *provider.Error
	if errors.As(err, &pe) {
		return http.StatusBadGateway, fmt.Sprintf("provider error: %s", pe.Message)
	}

	// Known domain errors map to deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, domain.ErrAccountNotApproved):
		return http.StatusForbidden, "account pending approval"
	case errors.Is(err, domain.ErrAccountExpired):
		return http.StatusForbidden, "account expired"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound, "artifact not found"
	case errors.Is(err, domain.ErrTranscriptNotFound):
		return http.StatusNotFound, "transcript not found"
	case errors.Is(err, domain.ErrInvalidRefinement):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrEmptyUpload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrFileNotReady):
		return http.StatusGatewayTimeout, "uploaded file never became ready"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
