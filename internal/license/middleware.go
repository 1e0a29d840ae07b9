package license

import (
	"github.com/gin-gonic/gin"

	"attendly/internal/apierr"
	"attendly/internal/auth"
)

// Middleware rejects requests from institutions without a valid license,
// optionally restricting to the given roles. It runs after auth.Middleware.
func Middleware(svc *Service, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.FromContext(c)
		if claims.UserID == "" {
			apierr.Abort(c, apierr.Unauthorized("unauthorized"))
			return
		}
		if claims.InstitutionID == "" {
			apierr.Abort(c, apierr.Validation("user has no institution assigned"))
			return
		}
		if _, err := svc.Active(c.Request.Context(), claims.InstitutionID); err != nil {
			apierr.Abort(c, err)
			return
		}
		if len(roles) > 0 {
			ok := false
			for _, r := range roles {
				if claims.Role == r {
					ok = true
					break
				}
			}
			if !ok {
				apierr.Abort(c, apierr.Forbidden("insufficient permissions"))
				return
			}
		}
		c.Next()
	}
}
