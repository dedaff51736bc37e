package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/liverty-voice/controlplane/internal/auth"
	"github.com/liverty-voice/controlplane/internal/paymentgate"
	"github.com/liverty-voice/controlplane/internal/room"
)

type createDuetRequest struct {
	Capacity      int    `json:"capacity" binding:"required"`
	GuestWallet   string `json:"guest_wallet"`
	SplitAddress  string `json:"split_address" binding:"required"`
	AssetID       string `json:"asset_id" binding:"required"`
	NetworkID     string `json:"network_id" binding:"required"`
	LiveAmount    string `json:"live_amount" binding:"required"`
	ReplayAmount  string `json:"replay_amount" binding:"required"`
	ReplayMode    string `json:"replay_mode"`
}

func (s *Server) handleDuetCreate(c *gin.Context) {
	var req createDuetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	replayMode := room.ReplayModeWorkerGated
	if req.ReplayMode == string(room.ReplayModePublic) {
		replayMode = room.ReplayModePublic
	}

	wallet := auth.Wallet(c)
	roomID := uuid.NewString()
	actor := s.rooms.Get(roomID)
	if err := actor.Init(c.Request.Context(), room.Descriptor{
		RoomID:       roomID,
		Kind:         room.KindDuet,
		Host:         wallet,
		Capacity:     req.Capacity,
		ReplayMode:   replayMode,
		GuestWallet:  req.GuestWallet,
		SplitAddress: req.SplitAddress,
		AssetID:      req.AssetID,
		NetworkID:    req.NetworkID,
		LiveAmount:   req.LiveAmount,
		ReplayAmount: req.ReplayAmount,
	}); err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room_id": roomID})
}

func (s *Server) handleDuetStart(c *gin.Context) {
	ctx := c.Request.Context()
	wallet := auth.Wallet(c)
	actor := s.rooms.Get(c.Param("id"))

	r, _, err := actor.State(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room state read failed"})
		return
	}
	if r == nil {
		respondRoomError(c, room.ErrRoomNotLive)
		return
	}
	if r.Host != wallet {
		respondRoomError(c, room.ErrNotHost)
		return
	}

	ticket, alreadyLive, err := actor.Start(ctx)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bridge_ticket": ticket, "already_live": alreadyLive})
}

func (s *Server) handleDuetGuestAccept(c *gin.Context) {
	wallet := auth.Wallet(c)
	actor := s.rooms.Get(c.Param("id"))
	if err := actor.GuestAccept(c.Request.Context(), wallet); err != nil {
		respondRoomError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bridgeTokenRequest struct {
	VendorUID string `json:"vendor_uid" binding:"required"`
}

func (s *Server) handleDuetBridgeToken(c *gin.Context) {
	var req bridgeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	actor := s.rooms.Get(c.Param("id"))
	grant, err := actor.BridgeTokenRefresh(c.Request.Context(), bridgeTicket(c), req.VendorUID)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

type broadcastHeartbeatRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleDuetBroadcastHeartbeat(c *gin.Context) {
	var req broadcastHeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	actor := s.rooms.Get(c.Param("id"))
	if err := actor.BroadcastHeartbeat(c.Request.Context(), bridgeTicket(c), req.Mode); err != nil {
		respondRoomError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDuetPublicInfo(c *gin.Context) {
	interval := s.cfg.Room.HeartbeatIntervalSec
	if raw := c.Query("heartbeat_interval"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			interval = parsed
		}
	}
	actor := s.rooms.Get(c.Param("id"))
	info, err := actor.PublicInfo(c.Request.Context(), interval)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// resourceOp mirrors the room package's scopeOp mapping: the resource
// identifier's op segment matches the route name, not the entitlement
// scope string, so live and replay challenges never collide.
func resourceOp(scope string) string {
	if scope == "replay" {
		return "replay"
	}
	return "enter"
}

// mintChallenge builds and sends a 402 with a fresh PAYMENT-REQUIRED header
// for the given scope ("live" or "replay"), pricing pulled from the room's
// duet-only terms.
func (s *Server) mintChallenge(c *gin.Context, r *room.Room, scope string) {
	amount := r.LiveAmount
	if scope == "replay" {
		amount = r.ReplayAmount
	}
	resource := paymentgate.Resource(string(room.KindDuet), r.RoomID, resourceOp(scope), r.SegmentID)
	env, err := s.gate.Challenge(c.Request.Context(), resource, amount, r.AssetID, r.NetworkID, r.SplitAddress,
		map[string]string{"replay_mode": string(r.ReplayMode)})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "challenge issuance failed"})
		return
	}
	encoded, err := paymentgate.EncodeChallenge(env)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "challenge encoding failed"})
		return
	}
	c.Header(paymentgate.HeaderPaymentRequired, encoded)
	c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment_required"})
}

// setPaymentResponseHeader echoes PAYMENT-RESPONSE on a successful grant,
// recomputing the same resource identifier C4 verified the signature
// against.
func (s *Server) setPaymentResponseHeader(c *gin.Context, r *room.Room, scope string) {
	resource := paymentgate.Resource(string(room.KindDuet), r.RoomID, resourceOp(scope), r.SegmentID)
	if encoded, err := paymentgate.EncodeResponse(paymentgate.ResponseEnvelope{Resource: resource}); err == nil {
		c.Header(paymentgate.HeaderPaymentResponse, encoded)
	}
}

func (s *Server) handleDuetEnter(c *gin.Context) {
	ctx := c.Request.Context()
	wallet := auth.Wallet(c)
	actor := s.rooms.Get(c.Param("id"))

	r, _, err := actor.State(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room state read failed"})
		return
	}
	if r == nil {
		respondRoomError(c, room.ErrRoomNotLive)
		return
	}

	sigHeader := c.GetHeader(paymentgate.HeaderPaymentSignature)
	if sigHeader == "" {
		s.mintChallenge(c, r, "live")
		return
	}

	result, err := actor.Enter(ctx, wallet, sigHeader)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	s.setPaymentResponseHeader(c, r, "live")
	c.JSON(http.StatusOK, result)
}

type publicEnterRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

func (s *Server) handleDuetPublicEnter(c *gin.Context) {
	var req publicEnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()
	actor := s.rooms.Get(c.Param("id"))

	r, _, err := actor.State(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room state read failed"})
		return
	}
	if r == nil {
		respondRoomError(c, room.ErrRoomNotLive)
		return
	}

	sig := c.GetHeader(paymentgate.HeaderPaymentSignature)
	var sigHeader *string
	if sig != "" {
		sigHeader = &sig
	}

	result, err := actor.PublicEnter(ctx, req.Wallet, sigHeader)
	if err != nil {
		if err == room.ErrRoomNotLive && sigHeader == nil {
			s.mintChallenge(c, r, "live")
			return
		}
		respondRoomError(c, err)
		return
	}
	s.setPaymentResponseHeader(c, r, "live")
	c.JSON(http.StatusOK, result)
}

type recordingCompleteRequest struct {
	BlobRef string `json:"blob_ref" binding:"required"`
}

func (s *Server) handleDuetRecordingComplete(c *gin.Context) {
	var req recordingCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	actor := s.rooms.Get(c.Param("id"))
	if err := actor.RecordingComplete(c.Request.Context(), bridgeTicket(c), req.BlobRef); err != nil {
		respondRoomError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDuetReplay(c *gin.Context) {
	ctx := c.Request.Context()
	wallet := auth.Wallet(c)
	actor := s.rooms.Get(c.Param("id"))

	r, _, err := actor.State(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room state read failed"})
		return
	}
	if r == nil {
		respondRoomError(c, room.ErrRoomNotLive)
		return
	}

	sigHeader := c.GetHeader(paymentgate.HeaderPaymentSignature)
	if sigHeader == "" {
		s.mintChallenge(c, r, "replay")
		return
	}

	result, err := actor.Replay(ctx, wallet, sigHeader)
	if err != nil {
		respondRoomError(c, err)
		return
	}
	s.setPaymentResponseHeader(c, r, "replay")
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDuetEnd(c *gin.Context) {
	wallet := auth.Wallet(c)
	actor := s.rooms.Get(c.Param("id"))
	if err := actor.End(c.Request.Context(), wallet); err != nil {
		respondRoomError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
