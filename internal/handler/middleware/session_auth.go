package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/identity"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
	"github.com/fugitivebreach/arrow-api/internal/session"
)

// IdentityContextKey holds the identity.Identity resolved from the
// session cookie on dashboard routes.
const IdentityContextKey = "identity"

// SessionAuthMiddleware authenticates dashboard requests from the signed
// session cookie. When storage is unreachable the session itself still
// proves who the caller is, so the request proceeds with an ephemeral
// identity instead of failing.
func SessionAuthMiddleware(sessions *session.Manager, users user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(session.CookieName)
		if err != nil || raw == "" {
			c.Error(ierr.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := sessions.Parse(raw)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		u, err := users.FindByDiscordID(c.Request.Context(), claims.Subject)
		switch {
		case err == nil:
			c.Set(IdentityContextKey, identity.Persisted(u))
		case errors.Is(err, ierr.ErrStorageUnavailable), errors.Is(err, user.ErrUserNotFound):
			c.Set(IdentityContextKey, identity.Ephemeral(claims.Subject, claims.Username))
		default:
			c.Error(err)
			c.Abort()
			return
		}

		c.Next()
	}
}

// IdentityFromContext retrieves the identity stored by
// SessionAuthMiddleware.
func IdentityFromContext(c *gin.Context) (identity.Identity, bool) {
	v, ok := c.Get(IdentityContextKey)
	if !ok {
		return identity.Identity{}, false
	}
	ident, ok := v.(identity.Identity)
	return ident, ok
}
