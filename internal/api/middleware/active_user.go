package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

// ActiveUser loads the authenticated account and rejects the request before
// any provider call when the account is unapproved or expired. Runs after
// Auth, so a missing user_id claim means a stale token for a deleted user.
func ActiveUser(users ports.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get("user_id").(string)
			if userID == "" {
				return domain.ErrInvalidCredentials
			}

			u, err := users.FindByID(c.Request().Context(), userID)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if !u.Approved {
				return domain.ErrAccountNotApproved
			}
			if u.Expired(now) {
				return domain.ErrAccountExpired
			}

			return next(c)
		}
	}
}
