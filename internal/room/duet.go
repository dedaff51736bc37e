package room

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/mediatoken"
	"github.com/liverty-voice/controlplane/internal/paymentgate"
)

// PublicInfoResult is the unauthenticated public view of a duet room.
type PublicInfoResult struct {
	Status            Status     `json:"status"`
	BroadcasterOnline bool       `json:"broadcaster_online"`
	BroadcasterMode   string     `json:"broadcaster_mode"`
	SegmentID         string     `json:"segment_id"`
	ReplayMode        ReplayMode `json:"replay_mode"`
}

// EnterResult is returned by Enter and PublicEnter on a successful grant.
type EnterResult struct {
	Token string `json:"token"`
	TTL   int64  `json:"expires_in_seconds"`
}

const broadcasterOfflineAfter = 3

// Start mints a bridge ticket idempotently: if the room is already live it
// returns the same ticket and AlreadyLive=true. The bridge ticket and the
// segment_id are minted only by the first Start on a pending room; a Start on
// an ended room fails with ErrRoomNotLive, and no operation re-segments a room.
func (a *Actor) Start(ctx context.Context) (ticket string, alreadyLive bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return "", false, err
	}
	if a.room == nil {
		return "", false, ErrRoomNotLive
	}
	if a.room.Status == StatusActive && a.room.BridgeTicket != "" {
		return a.room.BridgeTicket, true, nil
	}
	if isTerminal(a.room.Status) {
		return "", false, ErrRoomNotLive
	}

	a.room.BridgeTicket = uuid.NewString()
	a.room.SegmentID = uuid.NewString()
	a.room.Status = StatusActive
	if err := a.store.SaveRoom(ctx, a.room); err != nil {
		return "", false, fmt.Errorf("persist room start: %w", err)
	}
	a.dispatchAgentStart(a.roomID)
	return a.room.BridgeTicket, false, nil
}

// GuestAccept binds guest_wallet to the room. If the room was created with
// a prepared guest slot, the wallet must match it.
func (a *Actor) GuestAccept(ctx context.Context, guestWallet string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return err
	}
	if a.room == nil {
		return ErrRoomNotLive
	}
	if a.room.GuestWallet != "" && !strings.EqualFold(a.room.GuestWallet, guestWallet) {
		return ErrGuestMismatch
	}
	a.room.GuestWallet = guestWallet
	return a.store.SaveRoom(ctx, a.room)
}

func (a *Actor) checkBridgeTicket(bridgeTicket string) error {
	if a.room == nil || a.room.BridgeTicket == "" || bridgeTicket != a.room.BridgeTicket {
		return ErrNotLive
	}
	return nil
}

// BridgeTokenRefresh returns a refreshed broadcaster vendor token, bridge-
// ticket-authenticated.
func (a *Actor) BridgeTokenRefresh(ctx context.Context, bridgeTicket, vendorUID string) (mediatoken.Grant, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return mediatoken.Grant{}, err
	}
	if err := a.checkBridgeTicket(bridgeTicket); err != nil {
		return mediatoken.Grant{}, err
	}
	return a.minter.BroadcasterToken(a.roomID, vendorUID)
}

// BroadcastHeartbeat records the broadcaster's liveness, bridge-ticket-
// authenticated. mode is purely informational; it does not affect gating
// or metering.
func (a *Actor) BroadcastHeartbeat(ctx context.Context, bridgeTicket, mode string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := a.checkBridgeTicket(bridgeTicket); err != nil {
		return err
	}
	a.room.BroadcasterOnline = true
	a.room.BroadcasterMode = mode
	a.room.LastBeat = time.Now().Unix()
	return a.store.SaveRoom(ctx, a.room)
}

// PublicInfo is unauthenticated. broadcaster_online is computed live: the
// absence of a heartbeat for >= 3 heartbeat intervals flips it to false
// without needing a dedicated duet-room alarm.
func (a *Actor) PublicInfo(ctx context.Context, heartbeatIntervalSec int64) (PublicInfoResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return PublicInfoResult{}, err
	}
	if a.room == nil {
		return PublicInfoResult{}, ErrRoomNotLive
	}

	online := a.room.BroadcasterOnline &&
		time.Now().Unix()-a.room.LastBeat < broadcasterOfflineAfter*heartbeatIntervalSec

	return PublicInfoResult{
		Status:            a.room.Status,
		BroadcasterOnline: online,
		BroadcasterMode:   a.room.BroadcasterMode,
		SegmentID:         a.room.SegmentID,
		ReplayMode:        a.room.ReplayMode,
	}, nil
}

// Enter is gated by C4 with a fresh payment-signature header. On
// entitlement it issues a viewer vendor token via C3.
func (a *Actor) Enter(ctx context.Context, wallet, sigHeader string) (EnterResult, error) {
	return a.doEnter(ctx, wallet, &sigHeader, "live")
}

// PublicEnter is gated by C4 exactly like Enter, but is reachable without a
// bearer session: wallet is caller-supplied instead of session-derived.
// sigHeader is optional — nil short-circuits via an existing entitlement
// within the access window, matching Enter's challenge/grant shape when a
// signature is presented.
func (a *Actor) PublicEnter(ctx context.Context, wallet string, sigHeader *string) (EnterResult, error) {
	return a.doEnter(ctx, wallet, sigHeader, "live")
}

func (a *Actor) doEnter(ctx context.Context, wallet string, sigHeader *string, scope string) (EnterResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return EnterResult{}, err
	}
	if a.room == nil || isTerminal(a.room.Status) {
		return EnterResult{}, ErrRoomNotLive
	}
	if scope == "replay" && a.room.BlobRef == "" {
		return EnterResult{}, ErrNoRecording
	}

	resource := paymentgate.Resource(string(KindDuet), a.roomID, scopeOp(scope), a.room.SegmentID)

	has, err := a.gate.HasEntitlement(ctx, a.roomID, a.room.SegmentID, wallet, scope)
	if err != nil {
		return EnterResult{}, fmt.Errorf("check entitlement: %w", err)
	}
	if !has {
		if sigHeader == nil {
			return EnterResult{}, ErrRoomNotLive
		}
		if _, err := a.gate.VerifyAndGrant(ctx, resource, a.roomID, a.room.SegmentID, wallet, scope, *sigHeader, a.cfg.AccessWindowMinutes); err != nil {
			return EnterResult{}, err
		}
		if scope == "replay" {
			a.room.TotalReplayEntitlements++
		} else {
			a.room.TotalLiveEntitlements++
		}
		if err := a.store.SaveRoom(ctx, a.room); err != nil {
			a.log.Warn("enter: persist entitlement count failed", zap.String("room_id", a.roomID), zap.Error(err))
		}
	}

	grant, err := a.minter.ViewerToken(a.roomID, wallet)
	if err != nil {
		return EnterResult{}, fmt.Errorf("mint viewer token: %w", err)
	}
	return EnterResult{Token: grant.Token, TTL: grant.ExpiresInSeconds}, nil
}

// RecordingComplete stores the replay blob reference, bridge-ticket-
// authenticated. Required before replay entitlements may be redeemed.
func (a *Actor) RecordingComplete(ctx context.Context, bridgeTicket, blobRef string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := a.checkBridgeTicket(bridgeTicket); err != nil {
		return err
	}
	a.room.BlobRef = blobRef
	return a.store.SaveRoom(ctx, a.room)
}

// Replay is gated by C4 with scope=replay. A recording must have been
// completed before any replay entitlement can be redeemed; doEnter enforces
// this after ensureLoaded so the check holds even on a cold actor.
func (a *Actor) Replay(ctx context.Context, wallet, sigHeader string) (EnterResult, error) {
	return a.doEnter(ctx, wallet, &sigHeader, "replay")
}

// scopeOp maps an entitlement scope to the resource op segment used in C4's
// resource identifier, keeping live and replay payment challenges on
// distinct resources even though they share the same segment_id.
func scopeOp(scope string) string {
	if scope == "replay" {
		return "replay"
	}
	return "enter"
}

// End is terminal: host-only, transitions the room to ended so the
// attestation sweeper picks it up on its next sweep.
func (a *Actor) End(ctx context.Context, hostWallet string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return err
	}
	if a.room == nil {
		return ErrRoomNotLive
	}
	if !strings.EqualFold(a.room.Host, hostWallet) {
		return ErrNotHost
	}
	if isTerminal(a.room.Status) {
		return nil
	}

	a.dispatchAgentStop(a.roomID, a.room.AgentID)
	a.room.Status = StatusEnded
	return a.store.SaveRoom(ctx, a.room)
}
