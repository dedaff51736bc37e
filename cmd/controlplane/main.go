package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/agent"
	"github.com/liverty-voice/controlplane/internal/auth"
	"github.com/liverty-voice/controlplane/internal/config"
	"github.com/liverty-voice/controlplane/internal/ledger"
	"github.com/liverty-voice/controlplane/internal/mediatoken"
	"github.com/liverty-voice/controlplane/internal/paymentgate"
	"github.com/liverty-voice/controlplane/internal/registry"
	"github.com/liverty-voice/controlplane/internal/room"
	"github.com/liverty-voice/controlplane/internal/server"
	"github.com/liverty-voice/controlplane/internal/sweeper"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Core components ───────────────────────────────────────────────────
	authn := auth.NewAuthenticator(rdb, cfg.Session.JWTSecret)
	creditLedger := ledger.New(rdb)
	minter := mediatoken.New(
		cfg.MediaVendor.AppID, cfg.MediaVendor.AppCertificate,
		time.Duration(cfg.Room.TokenTTLShortSec)*time.Second,
		time.Duration(cfg.Room.TokenTTLBookedSec)*time.Second,
	)
	gate := paymentgate.New(rdb, paymentgate.PermissiveVerifier{})

	var agentHooks room.AgentHooks
	if cfg.Agent.OrchestratorAddr != "" {
		agentClient, err := agent.Dial(cfg.Agent.OrchestratorAddr)
		if err != nil {
			log.Fatal("agent orchestrator dial failed", zap.Error(err))
		}
		defer agentClient.Close() //nolint:errcheck
		agentHooks = agentClient
	}

	rooms := room.NewRegistry(rdb, creditLedger, minter, gate, agentHooks, cfg.Room, log)

	chainID := big.NewInt(cfg.Chain.ChainID)
	settlementContract := common.HexToAddress(cfg.Chain.SettlementContractAddress)
	registryContract := common.HexToAddress(cfg.Chain.RegistryContractAddress)

	roomStore := room.NewStore(rdb)
	submitter := sweeper.NewHTTPSubmitter(cfg.Oracle.SettlementURL)
	attestationSweeper, err := sweeper.New(roomStore, cfg.Oracle.PrivateKey, chainID, settlementContract, submitter, log)
	if err != nil {
		log.Fatal("attestation sweeper init failed", zap.Error(err))
	}

	registryStore := registry.NewStore(rdb)
	registrySvc := registry.NewService(registryStore, chainID, registryContract, log)

	// ── Goroutines ────────────────────────────────────────────────────────
	sweepInterval := time.Duration(cfg.Oracle.SweepInterval) * time.Second
	go attestationSweeper.Run(ctx, sweepInterval)

	// ── HTTP server ───────────────────────────────────────────────────────
	srv := server.New(authn, creditLedger, gate, rooms, registrySvc, cfg, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.WithCORS(srv.Router()),
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
