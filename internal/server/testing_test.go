package server

import (
	"math/big"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/auth"
	"github.com/liverty-voice/controlplane/internal/config"
	"github.com/liverty-voice/controlplane/internal/ledger"
	"github.com/liverty-voice/controlplane/internal/mediatoken"
	"github.com/liverty-voice/controlplane/internal/paymentgate"
	"github.com/liverty-voice/controlplane/internal/registry"
	"github.com/liverty-voice/controlplane/internal/room"
)

const testSessionSecret = "test-session-secret"
const testAdminToken = "test-admin-token"

func init() { gin.SetMode(gin.TestMode) }

func testConfig() *config.Config {
	return &config.Config{
		Session:  config.SessionConfig{JWTSecret: testSessionSecret},
		Registry: config.RegistryConfig{AdminToken: testAdminToken},
		Room: config.RoomConfig{
			HeartbeatIntervalSec: 30,
			TokenTTLShortSec:     90,
			TokenTTLBookedSec:    3600,
			RenewMinSeconds:      10,
			CreditsLowThreshold:  60,
			AccessWindowMinutes:  60,
		},
	}
}

// testServer wires a full Server against a single miniredis instance, the
// same dependency shape cmd/controlplane/main.go assembles in production.
func testServer(t *testing.T) (*gin.Engine, *Server, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := zap.NewNop()

	cfg := testConfig()
	authn := auth.NewAuthenticator(rdb, cfg.Session.JWTSecret)
	l := ledger.New(rdb)
	minter := mediatoken.New("test-app", "0000000000000000000000000000000000000000000000000000000000000000", 0, 0)
	gate := paymentgate.New(rdb, nil)
	rooms := room.NewRegistry(rdb, l, minter, gate, nil, cfg.Room, log)

	regStore := registry.NewStore(rdb)
	regSvc := registry.NewService(regStore, big.NewInt(1), common.HexToAddress("0x4444444444444444444444444444444444444444"), log)

	srv := New(authn, l, gate, rooms, regSvc, cfg, log)
	return srv.Router(), srv, rdb
}

// bearerFor mints a ready-to-use session token for wallet without going
// through the nonce/signature dance, the way the handler tests only care
// about what happens once a session already exists.
func bearerFor(wallet string) string {
	token, err := auth.NewSessionSigner(testSessionSecret).Mint(wallet)
	if err != nil {
		panic(err)
	}
	return "Bearer " + token
}
