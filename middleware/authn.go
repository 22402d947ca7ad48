// Package middleware carries the bearer-token authentication layer for the
// HTTP API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/plaguebrands/ribbit/domain"
	apierrors "github.com/plaguebrands/ribbit/errors"
	"github.com/plaguebrands/ribbit/services"
)

// SessionAuth extracts and verifies an `Authorization: Bearer <token>`
// header. A missing header and a failed verification both leave the request
// anonymous; the middleware never rejects by itself, so public endpoints
// stay reachable and handlers see exactly two states.
func SessionAuth(sessions *services.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header != "" {
				parts := strings.SplitN(header, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					if claims := sessions.Verify(parts[1]); claims != nil {
						ctx := domain.ContextWithClaims(c.Request().Context(), claims)
						c.SetRequest(c.Request().WithContext(ctx))
					}
				}
			}
			return next(c)
		}
	}
}

// RequireSession rejects anonymous requests with 401.
func RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if domain.ClaimsFromContext(c.Request().Context()) == nil {
			return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized())
		}
		return next(c)
	}
}

// RequireHolder additionally rejects sessions whose holder snapshot is
// false. The snapshot is the one taken at login: selling the gating asset
// blocks writes only from the next login on.
func RequireHolder(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := domain.ClaimsFromContext(c.Request().Context())
		if claims == nil {
			return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized())
		}
		if !claims.HasPlagueNFT {
			return c.JSON(http.StatusForbidden, apierrors.NewHolderRequired())
		}
		return next(c)
	}
}
