package room

import "errors"

var (
	ErrAlreadyInitialized = errors.New("already_initialized")
	ErrRoomFull           = errors.New("room_full")
	ErrRoomNotLive        = errors.New("room_not_live")
	ErrUnknownConnection  = errors.New("unknown_connection")
	ErrCreditsExhausted   = errors.New("credits_exhausted")
	ErrNotHost            = errors.New("not_host")
	ErrGuestMismatch      = errors.New("guest_mismatch")
	ErrNotLive            = errors.New("not_live")
	ErrNoRecording        = errors.New("no_recording")
)
