package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// OpsKeyMiddleware creates a Gin middleware that validates the X-Ops-Key
// header against a bcrypt hash of the operations key. The plaintext key is
// never stored in configuration. Guards the retention purge endpoint, which
// is low-frequency by nature, so the per-request bcrypt cost is acceptable.
func OpsKeyMiddleware(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": gin.H{"code": "OPS_NOT_CONFIGURED", "message": "Operations endpoints are not configured"}})
			return
		}
		key := c.GetHeader("X-Ops-Key")
		if key == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "INVALID_OPS_KEY", "message": "Invalid or missing operations key"}})
			return
		}
		c.Next()
	}
}
