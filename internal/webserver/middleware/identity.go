package middleware

import (
	"net/http"

	"github.com/beamstore/beamstore/internal/webserver/weberror"
	"github.com/labstack/echo/v4"
)

// OwnerKeyHeader carries the requester's stable account-section key. The
// identity layer sitting in front of this server authenticates the user and
// injects the header; this server never mints or verifies identities itself.
const OwnerKeyHeader = "X-Owner-Key"

// ownerKeyContextKey is the echo context key holding the owner key.
const ownerKeyContextKey = "owner_key"

// Identity extracts the owner key from the request and rejects requests
// without one.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			key := c.Request().Header.Get(OwnerKeyHeader)
			if key == "" {
				return weberror.New(http.StatusUnauthorized, "missing owner key")
			}

			c.Set(ownerKeyContextKey, key)
			return next(c)
		}
	}
}

// OwnerKey returns the owner key of the current request.
func OwnerKey(c echo.Context) string {
	key, _ := c.Get(ownerKeyContextKey).(string)
	return key
}
