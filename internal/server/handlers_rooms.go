package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/liverty-voice/controlplane/internal/auth"
	"github.com/liverty-voice/controlplane/internal/room"
)

type createRoomRequest struct {
	Capacity int `json:"capacity" binding:"required"`
}

func (s *Server) handleRoomCreate(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	wallet := auth.Wallet(c)
	roomID := uuid.NewString()
	actor := s.rooms.Get(roomID)
	if err := actor.Init(c.Request.Context(), room.Descriptor{
		RoomID:   roomID,
		Kind:     room.KindFree,
		Host:     wallet,
		Capacity: req.Capacity,
	}); err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room_id": roomID})
}

type joinRoomRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	VendorUID    string `json:"vendor_uid" binding:"required"`
}

func (s *Server) handleRoomJoin(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	wallet := auth.Wallet(c)
	actor := s.rooms.Get(c.Param("id"))
	result, err := actor.Join(c.Request.Context(), req.ConnectionID, wallet, req.VendorUID)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type connectionRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
}

func (s *Server) handleRoomHeartbeat(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor := s.rooms.Get(c.Param("id"))
	result, err := actor.Heartbeat(c.Request.Context(), req.ConnectionID)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRoomRenew(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor := s.rooms.Get(c.Param("id"))
	result, err := actor.Renew(c.Request.Context(), req.ConnectionID)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRoomLeave(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor := s.rooms.Get(c.Param("id"))
	if err := actor.Leave(c.Request.Context(), req.ConnectionID); err != nil {
		respondRoomError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
