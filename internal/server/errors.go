package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liverty-voice/controlplane/internal/auth"
	"github.com/liverty-voice/controlplane/internal/room"
)

// roomErrorStatus maps the room package's sentinel errors to HTTP status
// codes. Any error not recognized here is an internal error.
func roomErrorStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, room.ErrRoomFull):
		return http.StatusConflict
	case errors.Is(err, room.ErrRoomNotLive), errors.Is(err, room.ErrNotLive):
		return http.StatusGone
	case errors.Is(err, room.ErrUnknownConnection):
		return http.StatusNotFound
	case errors.Is(err, room.ErrCreditsExhausted):
		return http.StatusPaymentRequired
	case errors.Is(err, room.ErrNotHost), errors.Is(err, room.ErrGuestMismatch):
		return http.StatusForbidden
	case errors.Is(err, room.ErrNoRecording):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondRoomError(c *gin.Context, err error) {
	c.JSON(roomErrorStatus(err), gin.H{"error": err.Error()})
}

func authErrorStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidSignature), errors.Is(err, auth.ErrNonceUnknown), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respondAuthError(c *gin.Context, err error) {
	c.JSON(authErrorStatus(err), gin.H{"error": err.Error()})
}
