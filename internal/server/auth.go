package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/apikey"
)

// principalKey is the echo context key for the authenticated principal.
const principalKey = "authenticated_principal"

// requireAPIKey authenticates the bearer credential and stores the resolved
// principal in the echo context. Missing, malformed, unknown, and revoked
// keys all produce the same 401 so credentials cannot be enumerated.
func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return unauthorized(c)
		}

		p, err := s.keys.Validate(c.Request().Context(), raw)
		if err != nil {
			if !errors.Is(err, apikey.ErrInvalidKey) {
				s.logger.Error("credential validation failed", zap.Error(err))
				return fail(c, http.StatusInternalServerError, "authentication unavailable")
			}
			return unauthorized(c)
		}

		c.Set(principalKey, p)
		return next(c)
	}
}

// principal returns the authenticated principal set by requireAPIKey.
func principal(c echo.Context) *apikey.Principal {
	p, _ := c.Get(principalKey).(*apikey.Principal)
	return p
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, "invalid API key")
}
