package server

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type nonceRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

func (s *Server) handleAuthNonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	nonce, err := s.authn.RequestNonce(c.Request.Context(), req.Wallet)
	if err != nil {
		s.log.Error("auth nonce failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

type verifyRequest struct {
	Wallet    string `json:"wallet" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (s *Server) handleAuthVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature_encoding"})
		return
	}

	token, err := s.authn.VerifyAndMint(c.Request.Context(), req.Wallet, req.Nonce, sig)
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_token": token})
}
