package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	Subject string
	OrgID   string
	Role    string
}

const identityKey = "identity"

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(c echo.Context) (*Identity, bool) {
	id, ok := c.Get(identityKey).(*Identity)
	return id, ok
}

// Auth validates an HS256 bearer token signed with the shared secret and
// stores the caller identity on the context.
func Auth(secret string) echo.MiddlewareFunc {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
			}

			id := &Identity{}
			if sub, err := claims.GetSubject(); err == nil {
				id.Subject = sub
			}
			if org, ok := claims["org_id"].(string); ok {
				id.OrgID = org
			}
			if role, ok := claims["role"].(string); ok {
				id.Role = role
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// DevAuth grants every request a synthetic admin identity. Development only.
func DevAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(identityKey, &Identity{Subject: "dev", Role: "admin"})
			return next(c)
		}
	}
}
