package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"attendly/internal/apierr"
)

const claimsKey = "claims"

// Middleware enforces a signed token carried either in the "token" cookie or
// as an Authorization bearer header.
func Middleware(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, _ := c.Cookie("token")
		if tokenStr == "" {
			authz := c.GetHeader("Authorization")
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				tokenStr = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if tokenStr == "" {
			apierr.Abort(c, apierr.Unauthorized("missing or invalid token"))
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			apierr.Abort(c, apierr.Unauthorized("invalid token"))
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRoles aborts with 403 unless the authenticated user holds one of
// the given roles.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := FromContext(c)
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		apierr.Abort(c, apierr.Forbidden("insufficient permissions"))
	}
}

// FromContext returns the claims set by Middleware. Zero value when absent.
func FromContext(c *gin.Context) Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}
	}
	claims, _ := v.(Claims)
	return claims
}
