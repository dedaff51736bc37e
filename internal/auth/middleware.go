package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// WalletKey is the gin context key the session middleware sets on success.
const WalletKey = "wallet_address"

// SessionMiddleware returns a Gin handler that requires a valid bearer
// session token minted by Authenticator.VerifyAndMint. On success the
// recovered wallet address is stored at WalletKey for downstream handlers.
func SessionMiddleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := strings.TrimPrefix(header, prefix)

		wallet, err := a.VerifySession(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_session_token"})
			return
		}

		c.Set(WalletKey, wallet)
		c.Next()
	}
}

// Wallet extracts the authenticated wallet address set by SessionMiddleware.
// It panics if called outside a request that passed the middleware, which
// is a handler wiring bug, not a runtime condition to recover from.
func Wallet(c *gin.Context) string {
	return c.MustGet(WalletKey).(string)
}
