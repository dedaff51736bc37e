package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liverty-voice/controlplane/internal/auth"
)

func (s *Server) handleCreditsBalance(c *gin.Context) {
	wallet := auth.Wallet(c)
	bal, err := s.ledger.GetBalance(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "balance read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"remaining":     bal.Remaining,
		"total_debited": bal.TotalDebited,
	})
}
