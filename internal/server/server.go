// Package server is the HTTP surface of the control plane: one gin.Engine,
// routes matching spec §6, and a thin adapter layer translating requests
// into calls on the core components (auth, ledger, room, paymentgate,
// registry). Grounded on the teacher's proxy.Handler — a deps-holding
// struct with a Register(*gin.RouterGroup) method — generalized to several
// smaller per-resource handler groups instead of one catch-all proxy.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/auth"
	"github.com/liverty-voice/controlplane/internal/config"
	"github.com/liverty-voice/controlplane/internal/ledger"
	"github.com/liverty-voice/controlplane/internal/paymentgate"
	"github.com/liverty-voice/controlplane/internal/registry"
	"github.com/liverty-voice/controlplane/internal/room"
)

// Server holds every dependency the HTTP surface needs to adapt requests
// into core component calls.
type Server struct {
	authn    *auth.Authenticator
	ledger   *ledger.Ledger
	gate     *paymentgate.Gate
	rooms    *room.Registry
	registry *registry.Service
	cfg      *config.Config
	log      *zap.Logger
}

func New(
	authn *auth.Authenticator,
	l *ledger.Ledger,
	gate *paymentgate.Gate,
	rooms *room.Registry,
	reg *registry.Service,
	cfg *config.Config,
	log *zap.Logger,
) *Server {
	return &Server{
		authn:    authn,
		ledger:   l,
		gate:     gate,
		rooms:    rooms,
		registry: reg,
		cfg:      cfg,
		log:      log,
	}
}

// Router builds the gin.Engine and mounts every route in spec §6.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	authGroup := r.Group("/auth")
	authGroup.POST("/nonce", s.handleAuthNonce)
	authGroup.POST("/verify", s.handleAuthVerify)

	session := auth.SessionMiddleware(s.authn)

	credits := r.Group("/credits", session)
	credits.GET("/balance", s.handleCreditsBalance)

	r.POST("/rooms", session, s.handleRoomCreate)
	rooms := r.Group("/rooms", session)
	rooms.POST("/:id/join", s.handleRoomJoin)
	rooms.POST("/:id/heartbeat", s.handleRoomHeartbeat)
	rooms.POST("/:id/renew", s.handleRoomRenew)
	rooms.POST("/:id/leave", s.handleRoomLeave)

	duet := r.Group("/duet")
	duet.POST("/create", session, s.handleDuetCreate)
	duet.POST("/:id/start", session, s.handleDuetStart)
	duet.POST("/:id/guest/accept", session, s.handleDuetGuestAccept)
	duet.POST("/:id/bridge/token", BridgeTicketMiddleware(), s.handleDuetBridgeToken)
	duet.POST("/:id/broadcast/heartbeat", BridgeTicketMiddleware(), s.handleDuetBroadcastHeartbeat)
	duet.GET("/:id/public-info", s.handleDuetPublicInfo)
	duet.POST("/:id/enter", session, s.handleDuetEnter)
	duet.POST("/:id/public-enter", s.handleDuetPublicEnter)
	duet.POST("/:id/recording/complete", BridgeTicketMiddleware(), s.handleDuetRecordingComplete)
	duet.GET("/:id/replay", session, s.handleDuetReplay)
	duet.POST("/:id/end", session, s.handleDuetEnd)

	r.POST("/songs", AdminBearerMiddleware(s.cfg.Registry.AdminToken), s.handleSongsInsert)
	r.GET("/songs/search", s.handleSongsSearch)

	return r
}
