package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// bridgeTicketKey is the gin context key BridgeTicketMiddleware sets.
const bridgeTicketKey = "bridge_ticket"

// BridgeTicketMiddleware requires a non-empty Bridge-Ticket header and
// stashes it for the handler. The ticket itself is validated downstream by
// the room actor (checkBridgeTicket) against the room's live ticket — this
// middleware only enforces that callers present one at all, the same
// separation of concerns the teacher keeps between auth.Middleware (is
// there a credential) and per-route ownership checks (is it the right one).
func BridgeTicketMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ticket := c.GetHeader("Bridge-Ticket")
		if ticket == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bridge ticket"})
			return
		}
		c.Set(bridgeTicketKey, ticket)
		c.Next()
	}
}

func bridgeTicket(c *gin.Context) string {
	return c.GetString(bridgeTicketKey)
}

// AdminBearerMiddleware requires an exact bearer-token match against the
// configured song-registry admin token. An empty configured token rejects
// every request rather than silently allowing writes.
func AdminBearerMiddleware(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if adminToken == "" || !strings.HasPrefix(header, prefix) || strings.TrimPrefix(header, prefix) != adminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}
