package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liverty-voice/controlplane/internal/registry"
)

func (s *Server) handleSongsSearch(c *gin.Context) {
	results, err := s.registry.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type insertSongRequest struct {
	Title                string `json:"title" binding:"required"`
	Artist               string `json:"artist" binding:"required"`
	UpstreamIPID         string `json:"upstream_ip_id" binding:"required"`
	ControllerWallet     string `json:"controller_wallet" binding:"required"`
	PayoutChain          string `json:"payout_chain" binding:"required"`
	PayoutAddress        string `json:"payout_address" binding:"required"`
	UpstreamRoyaltyBps   int    `json:"upstream_royalty_bps"`
	AttestationSignature string `json:"attestation_signature" binding:"required"`
	LicensePreset        string `json:"license_preset"`
}

func (s *Server) handleSongsInsert(c *gin.Context) {
	var req insertSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entry, err := s.registry.Insert(c.Request.Context(), registry.InsertRequest{
		Title:                req.Title,
		Artist:               req.Artist,
		UpstreamIPID:         req.UpstreamIPID,
		ControllerWallet:     req.ControllerWallet,
		PayoutChain:          req.PayoutChain,
		PayoutAddress:        req.PayoutAddress,
		UpstreamRoyaltyBps:   req.UpstreamRoyaltyBps,
		AttestationSignature: req.AttestationSignature,
		LicensePreset:        req.LicensePreset,
	})
	if err != nil {
		if errors.Is(err, registry.ErrAttestationMismatch) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}
