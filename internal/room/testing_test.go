package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/config"
	"github.com/liverty-voice/controlplane/internal/ledger"
	"github.com/liverty-voice/controlplane/internal/mediatoken"
	"github.com/liverty-voice/controlplane/internal/paymentgate"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// fakeAgent is an in-memory AgentHooks double, safe for concurrent use since
// the actor dispatches Start/Stop on their own goroutines. Start/Stop record
// their calls so tests can assert lifecycle dispatch without a real
// orchestrator sidecar.
type fakeAgent struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{}
}

func (f *fakeAgent) Start(ctx context.Context, roomID, channel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, roomID)
	return "agent-" + roomID, nil
}

func (f *fakeAgent) Stop(ctx context.Context, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, agentID)
	return nil
}

func (f *fakeAgent) startedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

func (f *fakeAgent) stoppedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stopped)
}

// waitForCount polls get (a thread-safe counter) until it reaches at least
// want or a short deadline elapses, since agent dispatch runs fire-and-forget
// on its own goroutine.
func waitForCount(t *testing.T, get func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := get(); got < want {
		t.Fatalf("expected count >= %d, got %d", want, got)
	}
}

func testConfig() config.RoomConfig {
	return config.RoomConfig{
		HeartbeatIntervalSec: 30,
		TokenTTLShortSec:     90,
		TokenTTLBookedSec:    3600,
		RenewMinSeconds:      10,
		CreditsLowThreshold:  60,
		AccessWindowMinutes:  60,
	}
}

// testActor wires a single Actor directly (bypassing Registry, since tests
// want a handle to the concrete *Actor rather than going through Get).
func testActor(t *testing.T, roomID string, kind Kind) (*Actor, *redis.Client, *fakeAgent) {
	t.Helper()
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	l := ledger.New(rdb)
	m := mediatoken.New("test-app", "0000000000000000000000000000000000000000000000000000000000000000", 0, 0)
	g := paymentgate.New(rdb, nil)
	agent := newFakeAgent()
	cfg := testConfig()
	log := zap.NewNop()

	a := newActor(roomID, store, l, m, g, agent, cfg, log)

	if kind != "" {
		ctx := context.Background()
		if err := a.Init(ctx, Descriptor{RoomID: roomID, Kind: kind, Host: "0xHost", Capacity: 10}); err != nil {
			t.Fatalf("Init: %v", err)
		}
	}
	return a, rdb, agent
}
