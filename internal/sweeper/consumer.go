// Package sweeper implements C6, the attestation sweeper: a scheduled loop
// that scans ended, unattested paid rooms and emits signed settlement
// attestations to an external oracle.
package sweeper

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/room"
	"github.com/liverty-voice/controlplane/internal/typedsig"
)

// domainName binds this sweeper's signatures to a distinct EIP-712 domain
// from the song registry's controller attestations, even though both share
// the underlying typedsig.Signer implementation.
const domainName = "Liverty Voice Settlement"

// Sweeper scans ended duet rooms and attests each one exactly once,
// grounded on the teacher's RunGenerator ticker-driven scan loop
// (internal/billing/generator.go), adapted from a per-wallet voucher scan
// to a per-room attestation scan.
type Sweeper struct {
	store     *room.Store
	oracleKey *ecdsa.PrivateKey
	signer    *typedsig.Signer
	submitter SettlementSubmitter
	log       *zap.Logger
}

// New builds a Sweeper. An empty oracleKeyHex disables attestation entirely
// per spec §6: "ORACLE_PRIVATE_KEY — if unset, the attestation sweeper
// no-ops." In that case Run logs that the sweeper is disabled and returns
// at once.
func New(store *room.Store, oracleKeyHex string, chainID *big.Int, contractAddr common.Address, submitter SettlementSubmitter, log *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		store:     store,
		signer:    typedsig.NewSigner(domainName, chainID, contractAddr),
		submitter: submitter,
		log:       log,
	}
	if oracleKeyHex == "" {
		return s, nil
	}
	key, err := crypto.HexToECDSA(oracleKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse oracle private key: %w", err)
	}
	s.oracleKey = key
	return s, nil
}

func (s *Sweeper) enabled() bool { return s.oracleKey != nil }

// Run drives the sweep on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if !s.enabled() {
		s.log.Info("attestation sweeper disabled: no oracle key configured")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("attestation sweeper started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("attestation sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce is one sweep pass, kept unexported but called directly by
// tests so it can be exercised synchronously without a ticker.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	rooms, err := s.store.ScanEndedUnattestedDuets(ctx)
	if err != nil {
		s.log.Error("sweeper: scan ended unattested duets", zap.Error(err))
		return
	}

	for _, r := range rooms {
		if err := s.attestOne(ctx, r); err != nil {
			r.AttestFailures++
			s.log.Warn("sweeper: attest room failed, will retry next sweep",
				zap.String("room_id", r.RoomID), zap.Int("attempt", r.AttestFailures), zap.Error(err))
			if saveErr := s.store.SaveRoom(ctx, r); saveErr != nil {
				s.log.Error("sweeper: persist failure count", zap.String("room_id", r.RoomID), zap.Error(saveErr))
			}
			continue
		}
		r.Attested = true
		if err := s.store.SaveRoom(ctx, r); err != nil {
			s.log.Error("sweeper: persist attested flag", zap.String("room_id", r.RoomID), zap.Error(err))
		}
	}
}

func (s *Sweeper) attestOne(ctx context.Context, r *room.Room) error {
	a := buildAttestation(r)
	if err := signAttestation(s.signer, a, s.oracleKey); err != nil {
		return fmt.Errorf("sign attestation: %w", err)
	}
	if err := s.submitter.Submit(ctx, a); err != nil {
		return fmt.Errorf("submit attestation: %w", err)
	}
	return nil
}
