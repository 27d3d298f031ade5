package handler

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/ports"
	"github.com/contentforge/studio-api/internal/core/service"
)

// StudioHandler exposes the image-oriented operation pipelines: research,
// single-shot image generation and editing, and the two-step infographic.
type StudioHandler struct {
	studio ports.StudioService
	idem   IdempotencyChecker
	sink   AuditSink
	log    zerolog.Logger
}

func NewStudioHandler(studio ports.StudioService, idem IdempotencyChecker, sink AuditSink, log zerolog.Logger) *StudioHandler {
	return &StudioHandler{studio: studio, idem: idem, sink: sink, log: log}
}

type researchRequest struct {
	Topic           string `json:"topic" validate:"required,max=500"`
	ComplexityLevel string `json:"complexity_level,omitempty" validate:"omitempty,oneof=simple moderate detailed"`
	VisualStyle     string `json:"visual_style,omitempty" validate:"omitempty,max=200"`
	Language        string `json:"language,omitempty" validate:"omitempty,max=50"`
	AspectRatio     string `json:"aspect_ratio,omitempty" validate:"omitempty,max=10"`
}

type generateImageRequest struct {
	Prompt      string `json:"prompt" validate:"required,max=4000"`
	AspectRatio string `json:"aspect_ratio,omitempty" validate:"omitempty,max=10"`
}

type editImageRequest struct {
	Instruction string `json:"instruction" validate:"required,max=4000"`
	ImageMIME   string `json:"image_mime" validate:"required"`
	ImageData   string `json:"image_data" validate:"required"` // base64
}

// Research runs the research step alone and returns the synthesized image
// prompt with its supporting facts and sources.
func (h *StudioHandler) Research(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	release, err := claimIdempotency(c, h.idem, userID, h.log)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := h.studio.Research(c.Request().Context(), ports.ResearchInput{
		UserID:          userID,
		Topic:           req.Topic,
		ComplexityLevel: req.ComplexityLevel,
		VisualStyle:     req.VisualStyle,
		Language:        req.Language,
		AspectRatio:     req.AspectRatio,
	})
	if err != nil {
		release()
		audit(h.sink, userID, service.FeatureResearch, 0, start, err)
		return err
	}

	audit(h.sink, userID, service.FeatureResearch, result.TokenCost, start, nil)
	return c.JSON(http.StatusOK, result)
}

// GenerateImage produces one image from a prompt.
func (h *StudioHandler) GenerateImage(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req generateImageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	release, err := claimIdempotency(c, h.idem, userID, h.log)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := h.studio.GenerateImage(c.Request().Context(), ports.GenerateImageInput{
		UserID:      userID,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		release()
		audit(h.sink, userID, service.FeatureImageGen, 0, start, err)
		return err
	}

	audit(h.sink, userID, service.FeatureImageGen, result.TokenCost, start, nil)
	return c.JSON(http.StatusOK, result)
}

// EditImage applies an instruction to an uploaded image.
func (h *StudioHandler) EditImage(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req editImageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	imageData, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image_data must be base64")
	}

	release, err := claimIdempotency(c, h.idem, userID, h.log)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := h.studio.EditImage(c.Request().Context(), ports.EditImageInput{
		UserID:      userID,
		Instruction: req.Instruction,
		ImageMIME:   req.ImageMIME,
		ImageData:   imageData,
	})
	if err != nil {
		release()
		audit(h.sink, userID, service.FeatureImageEdit, 0, start, err)
		return err
	}

	audit(h.sink, userID, service.FeatureImageEdit, result.TokenCost, start, nil)
	return c.JSON(http.StatusOK, result)
}

// CreateInfographic runs the research-then-generate pipeline.
func (h *StudioHandler) CreateInfographic(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	release, err := claimIdempotency(c, h.idem, userID, h.log)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := h.studio.CreateInfographic(c.Request().Context(), ports.ResearchInput{
		UserID:          userID,
		Topic:           req.Topic,
		ComplexityLevel: req.ComplexityLevel,
		VisualStyle:     req.VisualStyle,
		Language:        req.Language,
		AspectRatio:     req.AspectRatio,
	})
	if err != nil {
		release()
		audit(h.sink, userID, service.FeatureInfographic, 0, start, err)
		return err
	}

	audit(h.sink, userID, service.FeatureInfographic, result.TokenCost, start, nil)
	return c.JSON(http.StatusOK, result)
}
