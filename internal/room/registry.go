package room

import (
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/config"
	"github.com/liverty-voice/controlplane/internal/ledger"
	"github.com/liverty-voice/controlplane/internal/mediatoken"
	"github.com/liverty-voice/controlplane/internal/paymentgate"
)

// Registry is the process-wide map of live Room Actors, one per room_id,
// guarded by a single mutex. Grounded on spec's explicit guidance ("one
// object per room_id guarded by a mutex, stored in a process-wide map") and
// the mutex-guarded-map idiom in the Solana wallet service's subscription
// manager.
type Registry struct {
	mu     sync.Mutex
	actors map[string]*Actor

	store  *Store
	ledger *ledger.Ledger
	minter *mediatoken.Minter
	gate   *paymentgate.Gate
	agent  AgentHooks
	cfg    config.RoomConfig
	log    *zap.Logger
}

func NewRegistry(
	rdb *redis.Client,
	l *ledger.Ledger,
	m *mediatoken.Minter,
	g *paymentgate.Gate,
	agent AgentHooks,
	cfg config.RoomConfig,
	log *zap.Logger,
) *Registry {
	return &Registry{
		actors: make(map[string]*Actor),
		store:  NewStore(rdb),
		ledger: l,
		minter: m,
		gate:   g,
		agent:  agent,
		cfg:    cfg,
		log:    log,
	}
}

// Get returns the in-process Actor for roomID, constructing it (without
// loading durable state — that happens lazily in the actor's own entry
// points) if this is the first touch in this process.
func (r *Registry) Get(roomID string) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actors[roomID]; ok {
		return a
	}
	a := newActor(roomID, r.store, r.ledger, r.minter, r.gate, r.agent, r.cfg, r.log)
	r.actors[roomID] = a
	return a
}

// Forget drops an actor from the process-wide map, e.g. after Destroy.
// Safe to call even if the actor was never registered.
func (r *Registry) Forget(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, roomID)
}
