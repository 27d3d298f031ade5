package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/contentforge/studio-api/internal/core/ports"
)

// ArtifactHandler serves stored operation outputs.
type ArtifactHandler struct {
	repo ports.ArtifactRepository
}

func NewArtifactHandler(repo ports.ArtifactRepository) *ArtifactHandler {
	return &ArtifactHandler{repo: repo}
}

// Get returns one of the caller's artifacts.
func (h *ArtifactHandler) Get(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	artifact, err := h.repo.FindByID(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, artifact)
}
