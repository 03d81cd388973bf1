package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"novelhub/pkg/utils"
)

// TokenAuth checks the static API token header on mutating routes. An empty
// configured token disables the check, which is the local-development
// default.
func TokenAuth(cfg utils.APIConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(cfg.TokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}
