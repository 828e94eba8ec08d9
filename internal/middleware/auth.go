package middleware

import (
	"net/http"

	"github.com/astrobalance/vaultgate/internal/config"
	"github.com/astrobalance/vaultgate/internal/identity"
	"github.com/gin-gonic/gin"
)

const (
	HeaderCallerAddress = "X-Caller-Address"
	HeaderGatewayKey    = "X-Gateway-Key"
	ContextCallerKey    = "caller"
)

// AuthMiddleware resolves the caller identity for every request. Execute
// routes rely on the caller address; authorization (admin/operator) happens
// in the core against the ledger config, not here.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg != nil && cfg.Auth.RequireAPIKey {
			if c.GetHeader(HeaderGatewayKey) != cfg.Auth.APIKey {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid API key"})
				c.Abort()
				return
			}
		}

		addr := c.GetHeader(HeaderCallerAddress)
		if addr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller address"})
			c.Abort()
			return
		}
		canonical, err := identity.Validate(addr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller address"})
			c.Abort()
			return
		}

		// 规范化后的调用者地址存入上下文
		c.Set(ContextCallerKey, canonical)
		c.Next()
	}
}

// Caller returns the canonical caller address set by AuthMiddleware.
func Caller(c *gin.Context) string {
	if v, exists := c.Get(ContextCallerKey); exists {
		if addr, ok := v.(string); ok {
			return addr
		}
	}
	return ""
}
