package middleware

import (
	"net/http"

	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// ReadOnlyMiddleware blocks all mutating routes while the vault is halted.
// Emergency withdrawals stay open so depositors can always exit.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		if c.FullPath() == "/v1/vault/emergency-withdraw" {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		default:
			_ = c.Error(apperrors.New(apperrors.ErrEmergencyModeActive, "vault is halted", nil))
			c.Abort()
			return
		}
	}
}
