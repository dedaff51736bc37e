package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/config"
	"github.com/liverty-voice/controlplane/internal/ledger"
	"github.com/liverty-voice/controlplane/internal/mediatoken"
	"github.com/liverty-voice/controlplane/internal/paymentgate"
)

// Descriptor is the caller-supplied shape of a new room, passed to Init.
type Descriptor struct {
	RoomID     string
	Kind       Kind
	Host       string
	Capacity   int
	ReplayMode ReplayMode

	// Duet-only pricing terms, carried verbatim into the room record and
	// surfaced to C4 when a payment challenge is minted.
	GuestWallet  string
	SplitAddress string
	AssetID      string
	NetworkID    string
	LiveAmount   string
	ReplayAmount string
}

// JoinResult is returned by Join.
type JoinResult struct {
	Token             string `json:"token"`
	TTL               int64  `json:"ttl"`
	HeartbeatInterval *int64 `json:"heartbeat_interval,omitempty"`
	RenewAfter        *int64 `json:"renew_after,omitempty"`
	Remaining         *int64 `json:"remaining,omitempty"`
}

// HeartbeatResult is returned by Heartbeat.
type HeartbeatResult struct {
	Remaining int64   `json:"remaining"`
	Events    []Event `json:"events"`
}

// RenewResult is returned by Renew.
type RenewResult struct {
	Denied    bool    `json:"denied"`
	Reason    string  `json:"reason,omitempty"`
	Token     string  `json:"token,omitempty"`
	TTL       int64   `json:"ttl,omitempty"`
	Remaining int64   `json:"remaining,omitempty"`
	Events    []Event `json:"events,omitempty"`
}

// Actor is the Room Actor: exactly one live instance per room_id, owning
// one mutex and one scheduled alarm. Every entry point re-reads its own
// state from durable storage on first touch (ensureLoaded), so the actor
// tolerates process restarts transparently.
type Actor struct {
	mu sync.Mutex

	roomID       string
	room         *Room
	participants map[string]*Participant
	loaded       bool
	alarmState   alarm

	store  *Store
	ledger *ledger.Ledger
	minter *mediatoken.Minter
	gate   *paymentgate.Gate
	agent  AgentHooks
	cfg    config.RoomConfig
	log    *zap.Logger
}

func newActor(
	roomID string,
	store *Store,
	l *ledger.Ledger,
	m *mediatoken.Minter,
	g *paymentgate.Gate,
	agent AgentHooks,
	cfg config.RoomConfig,
	log *zap.Logger,
) *Actor {
	return &Actor{
		roomID:       roomID,
		participants: make(map[string]*Participant),
		store:        store,
		ledger:       l,
		minter:       m,
		gate:         g,
		agent:        agent,
		cfg:          cfg,
		log:          log,
	}
}

// ensureLoaded lazily hydrates room + participant state from durable
// storage the first time this actor is touched in this process. Must be
// called with a.mu held.
func (a *Actor) ensureLoaded(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	r, err := a.store.GetRoom(ctx, a.roomID)
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	a.room = r
	if r != nil {
		ps, err := a.store.ListParticipants(ctx, a.roomID)
		if err != nil {
			return fmt.Errorf("load participants: %w", err)
		}
		for _, p := range ps {
			if !p.Left {
				a.participants[p.ConnectionID] = p
			}
		}
	}
	a.loaded = true
	return nil
}

// Init installs the room on its first call; subsequent calls return
// ErrAlreadyInitialized.
func (a *Actor) Init(ctx context.Context, d Descriptor) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return err
	}
	if a.room != nil {
		return ErrAlreadyInitialized
	}

	a.room = &Room{
		RoomID:       d.RoomID,
		Kind:         d.Kind,
		Status:       StatusPending,
		Host:         d.Host,
		Capacity:     d.Capacity,
		ReplayMode:   d.ReplayMode,
		CreatedAt:    time.Now().Unix(),
		GuestWallet:  d.GuestWallet,
		SplitAddress: d.SplitAddress,
		AssetID:      d.AssetID,
		NetworkID:    d.NetworkID,
		LiveAmount:   d.LiveAmount,
		ReplayAmount: d.ReplayAmount,
	}
	return a.store.SaveRoom(ctx, a.room)
}

// Join admits a new participant. Free rooms issue a short-TTL token and
// schedule the heartbeat alarm on the 0->1 transition; duet rooms issue a
// booked-TTL token and never meter by presence (paid access flows through
// enter/publicEnter instead).
func (a *Actor) Join(ctx context.Context, connectionID, wallet, vendorUID string) (JoinResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return JoinResult{}, err
	}
	if a.room == nil || isTerminal(a.room.Status) {
		return JoinResult{}, ErrRoomNotLive
	}
	if len(a.participants) >= a.room.Capacity {
		return JoinResult{}, ErrRoomFull
	}

	now := time.Now().Unix()
	wasEmpty := len(a.participants) == 0

	p := &Participant{
		ConnectionID:  connectionID,
		RoomID:        a.roomID,
		Wallet:        wallet,
		VendorUID:     vendorUID,
		JoinedAt:      now,
		LastMeteredAt: now,
	}

	var grant mediatoken.Grant
	var err error
	if a.room.Kind == KindFree {
		grant, err = a.minter.ShortToken(a.roomID, vendorUID)
	} else {
		grant, err = a.minter.BookedToken(a.roomID, vendorUID)
	}
	if err != nil {
		return JoinResult{}, fmt.Errorf("mint join token: %w", err)
	}

	a.participants[connectionID] = p
	if err := a.store.SaveParticipant(ctx, p); err != nil {
		delete(a.participants, connectionID)
		return JoinResult{}, fmt.Errorf("persist participant: %w", err)
	}

	if a.room.Status == StatusPending {
		a.room.Status = StatusActive
		if err := a.store.SaveRoom(ctx, a.room); err != nil {
			a.log.Warn("join: persist room activation", zap.String("room_id", a.roomID), zap.Error(err))
		}
	}

	if wasEmpty {
		a.dispatchAgentStart(a.roomID)
		if a.room.Kind == KindFree {
			a.scheduleHeartbeatAlarmLocked()
		}
	}

	result := JoinResult{Token: grant.Token, TTL: grant.ExpiresInSeconds}
	if a.room.Kind == KindFree {
		interval := a.cfg.HeartbeatIntervalSec
		result.HeartbeatInterval = &interval
		bal, err := a.ledger.GetBalance(ctx, wallet)
		if err != nil {
			return JoinResult{}, fmt.Errorf("read balance: %w", err)
		}
		result.Remaining = &bal.Remaining
	}
	return result, nil
}

// Heartbeat meters the single participant and returns any threshold events
// raised by this tick. Free rooms only — duet rooms use
// broadcastHeartbeat/publicInfo instead.
func (a *Actor) Heartbeat(ctx context.Context, connectionID string) (HeartbeatResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return HeartbeatResult{}, err
	}
	p, ok := a.participants[connectionID]
	if !ok {
		return HeartbeatResult{}, ErrUnknownConnection
	}

	_, events, remaining, err := a.meterParticipant(ctx, p)
	if err != nil {
		return HeartbeatResult{}, err
	}
	if err := a.store.SaveParticipant(ctx, p); err != nil {
		return HeartbeatResult{}, fmt.Errorf("persist participant: %w", err)
	}
	return HeartbeatResult{Remaining: remaining, Events: events}, nil
}

// Renew meters the participant, then — for free rooms with insufficient
// remaining balance — denies instead of issuing a fresh token. The source
// does not auto-leave on denial; the client is expected to call Leave.
func (a *Actor) Renew(ctx context.Context, connectionID string) (RenewResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return RenewResult{}, err
	}
	p, ok := a.participants[connectionID]
	if !ok {
		return RenewResult{}, ErrUnknownConnection
	}

	_, events, remaining, err := a.meterParticipant(ctx, p)
	if err != nil {
		return RenewResult{}, err
	}
	if err := a.store.SaveParticipant(ctx, p); err != nil {
		return RenewResult{}, fmt.Errorf("persist participant: %w", err)
	}

	if a.room.Kind == KindFree && remaining < a.cfg.RenewMinSeconds {
		return RenewResult{Denied: true, Reason: "credits_exhausted", Remaining: remaining, Events: events}, nil
	}

	var grant mediatoken.Grant
	if a.room.Kind == KindFree {
		grant, err = a.minter.ShortToken(a.roomID, p.VendorUID)
	} else {
		grant, err = a.minter.BookedToken(a.roomID, p.VendorUID)
	}
	if err != nil {
		return RenewResult{}, fmt.Errorf("mint renew token: %w", err)
	}

	return RenewResult{Token: grant.Token, TTL: grant.ExpiresInSeconds, Remaining: remaining, Events: events}, nil
}

// Leave performs a final meter, removes the participant, and — if the room
// becomes empty — stops the AI agent, cancels the alarm, and (free rooms
// only) marks the room closed. Paid rooms stay active; they only end on
// explicit host action via End.
func (a *Actor) Leave(ctx context.Context, connectionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return err
	}
	p, ok := a.participants[connectionID]
	if !ok {
		return ErrUnknownConnection
	}

	if _, _, _, err := a.meterParticipant(ctx, p); err != nil {
		a.log.Warn("leave: final meter failed", zap.String("room_id", a.roomID), zap.Error(err))
	}
	p.Left = true
	if err := a.store.DeleteParticipant(ctx, a.roomID, connectionID); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	delete(a.participants, connectionID)

	if len(a.participants) == 0 {
		a.onRoomEmptyLocked(ctx)
	}
	return nil
}

// onRoomEmptyLocked handles the common "room just became empty" transition
// shared by Leave and the heartbeat alarm. Must be called with a.mu held.
func (a *Actor) onRoomEmptyLocked(ctx context.Context) {
	a.dispatchAgentStop(a.roomID, a.room.AgentID)
	a.cancelAlarm()
	if a.room.Kind == KindFree {
		a.room.Status = StatusClosed
		if err := a.store.SaveRoom(ctx, a.room); err != nil {
			a.log.Warn("close empty room", zap.String("room_id", a.roomID), zap.Error(err))
		}
	}
}

// Close is host-only: meters every participant, marks each left, stops the
// agent, and transitions the room to closed.
func (a *Actor) Close(ctx context.Context, hostConnectionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return err
	}
	if a.room == nil {
		return ErrRoomNotLive
	}
	host, ok := a.participants[hostConnectionID]
	if !ok || host.Wallet != a.room.Host {
		return ErrNotHost
	}

	for id, p := range a.participants {
		if _, _, _, err := a.meterParticipant(ctx, p); err != nil {
			a.log.Warn("close: meter participant failed", zap.String("room_id", a.roomID), zap.String("connection_id", id), zap.Error(err))
		}
		p.Left = true
		if err := a.store.DeleteParticipant(ctx, a.roomID, id); err != nil {
			a.log.Warn("close: delete participant failed", zap.String("room_id", a.roomID), zap.String("connection_id", id), zap.Error(err))
		}
	}
	a.participants = make(map[string]*Participant)

	a.dispatchAgentStop(a.roomID, a.room.AgentID)
	a.cancelAlarm()
	a.room.Status = StatusClosed
	return a.store.SaveRoom(ctx, a.room)
}

// Destroy is emergency cleanup for rollback paths: it drops durable state
// and cancels the alarm. It has no side effects on the ledger — prior
// debits stand. Callers must also evict the actor from the Registry.
func (a *Actor) Destroy(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelAlarm()
	for id := range a.participants {
		_ = a.store.DeleteParticipant(ctx, a.roomID, id)
	}
	a.participants = make(map[string]*Participant)
	if err := a.store.DeleteRoom(ctx, a.roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	a.room = nil
	a.loaded = false
	return nil
}

// State is a debug read-only view of the room and its participants.
func (a *Actor) State(ctx context.Context) (*Room, []*Participant, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureLoaded(ctx); err != nil {
		return nil, nil, err
	}
	ps := make([]*Participant, 0, len(a.participants))
	for _, p := range a.participants {
		ps = append(ps, p)
	}
	return a.room, ps, nil
}

func isTerminal(s Status) bool {
	return s == StatusClosed || s == StatusEnded
}
