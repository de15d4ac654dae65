package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	zlog "github.com/rs/zerolog/log"

	"splikz/internal/services"
)

// Context keys set by RequireAuth.
const (
	ContextUserUID   = "userUID"
	ContextUserEmail = "userEmail"
)

// RequireAuth returns a middleware that verifies Firebase ID tokens.
// The token is read from the Authorization header, or from an access_token
// query/form value for plain browser form posts.
func RequireAuth(verifier services.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if verifier == nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "auth_not_configured"})
			}

			token := bearerToken(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}

			decoded, err := verifier.VerifyIDToken(c.Request().Context(), token)
			if err != nil {
				zlog.Debug().Err(err).Msg("rejected id token")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}

			c.Set(ContextUserUID, decoded.UID)
			if email, ok := decoded.Claims["email"].(string); ok {
				c.Set(ContextUserEmail, email)
			}

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if token := c.QueryParam("access_token"); token != "" {
		return token
	}
	return c.FormValue("access_token")
}

// RequireSharedSecret rejects requests whose header does not carry secret.
// An empty secret rejects every request.
func RequireSharedSecret(header, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(header)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}

// UserUID returns the authenticated user id, or "" outside RequireAuth.
func UserUID(c echo.Context) string {
	if uid, ok := c.Get(ContextUserUID).(string); ok {
		return uid
	}
	return ""
}
