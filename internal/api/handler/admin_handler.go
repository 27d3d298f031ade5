package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

// AdminHandler exposes account administration. All routes sit behind RBAC
// for the admin role.
type AdminHandler struct {
	admin ports.AdminService
}

func NewAdminHandler(admin ports.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type listUsersResponse struct {
	Users []*domain.User `json:"users"`
	Total int64          `json:"total"`
}

type updateUserRequest struct {
	Role      *string `json:"role,omitempty" validate:"omitempty,oneof=standard elevated admin"`
	ExpiresAt *string `json:"expires_at,omitempty"` // RFC3339; empty string clears expiration
}

type creditRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type creditResponse struct {
	NewBalance int64 `json:"new_balance"`
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	filter := ports.ListUsersFilter{
		Role:   c.QueryParam("role"),
		Search: c.QueryParam("search"),
		Page:   intQuery(c, "page", 1),
		Limit:  intQuery(c, "limit", 20),
	}
	if v := c.QueryParam("approved"); v != "" {
		approved := v == "true"
		filter.Approved = &approved
	}

	users, total, err := h.admin.ListUsers(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return c.JSON(http.StatusOK, listUsersResponse{Users: users, Total: total})
}

func (h *AdminHandler) Approve(c echo.Context) error {
	user, err := h.admin.Approve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) UpdateUser(c echo.Context) error {
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input := ports.UpdateUserInput{ID: c.Param("id"), Role: req.Role}
	if req.ExpiresAt != nil {
		if *req.ExpiresAt == "" {
			var never time.Time
			input.ExpiresAt = &never
		} else {
			t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "expires_at must be RFC3339")
			}
			input.ExpiresAt = &t
		}
	}

	user, err := h.admin.UpdateUser(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) CreditTokens(c echo.Context) error {
	var req creditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	balance, err := h.admin.CreditTokens(c.Request().Context(), c.Param("id"), req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, creditResponse{NewBalance: balance})
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	if err := h.admin.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// intQuery parses a positive integer query parameter with a fallback.
func intQuery(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
