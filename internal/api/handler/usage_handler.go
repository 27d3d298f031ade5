package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

// UsageHandler exposes the ledger: explicit usage logging and history.
type UsageHandler struct {
	ledger ports.LedgerService
	idem   IdempotencyChecker
	log    zerolog.Logger
}

func NewUsageHandler(ledger ports.LedgerService, idem IdempotencyChecker, log zerolog.Logger) *UsageHandler {
	return &UsageHandler{ledger: ledger, idem: idem, log: log}
}

type logUsageRequest struct {
	Feature string `json:"feature" validate:"required,max=64"`
	Amount  int64  `json:"amount" validate:"gte=0"`
}

type logUsageResponse struct {
	NewBalance int64 `json:"new_balance"`
}

type historyResponse struct {
	Records []*domain.UsageRecord `json:"records"`
}

// LogUsage debits the caller's balance by an explicit amount. Zero is legal
// and still produces a ledger record, so free operations stay auditable.
func (h *UsageHandler) LogUsage(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req logUsageRequest
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

	balance, err := h.ledger.Debit(c.Request().Context(), userID, req.Feature, req.Amount)
	if err != nil {
		release()
		return err
	}

	return c.JSON(http.StatusOK, logUsageResponse{NewBalance: balance})
}

// History returns the caller's usage records, newest first.
func (h *UsageHandler) History(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	filter := ports.UsageFilter{
		UserID:  userID,
		Feature: c.QueryParam("feature"),
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be RFC3339")
		}
		filter.DateFrom = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be RFC3339")
		}
		filter.DateTo = t
	}
	filter.Page = intQuery(c, "page", 1)
	filter.Limit = intQuery(c, "limit", 20)

	records, err := h.ledger.History(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if records == nil {
		records = []*domain.UsageRecord{}
	}
	return c.JSON(http.StatusOK, historyResponse{Records: records})
}
