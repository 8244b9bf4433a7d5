package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/fugitivebreach/arrow-api/internal/service"
)

const (
	apiKeyHeader = "api-key"

	// KeyIdentityContextKey holds the service.KeyIdentity for the
	// validated key on authenticated proxy routes.
	KeyIdentityContextKey = "keyIdentity"
)

// APIKeyAuthMiddleware validates the api-key header on every request it
// guards. Usage accounting happens inside Validate.
func APIKeyAuthMiddleware(keys *service.KeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := keys.Validate(c.Request.Context(), c.GetHeader(apiKeyHeader))
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(KeyIdentityContextKey, ident)
		c.Next()
	}
}

// KeyIdentityFromContext retrieves the identity stored by
// APIKeyAuthMiddleware.
func KeyIdentityFromContext(c *gin.Context) (*service.KeyIdentity, bool) {
	v, ok := c.Get(KeyIdentityContextKey)
	if !ok {
		return nil, false
	}
	ident, ok := v.(*service.KeyIdentity)
	return ident, ok
}
