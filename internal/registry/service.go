package registry

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/typedsig"
)

// domainName binds registry insert attestations to their own EIP-712
// domain, distinct from the sweeper's settlement domain even though both
// share the typedsig.Signer implementation.
const domainName = "Liverty Voice Song Registry"

const entryTypeSig = "SongRegistryEntry(string upstreamIpId,string payoutChain,address payoutAddress,uint256 upstreamRoyaltyBps)"

var ErrAttestationMismatch = errors.New("registry: attestation does not recover to controller wallet")

// InsertRequest is the caller-supplied payload for POST /songs, spec §6.
type InsertRequest struct {
	Title                string
	Artist               string
	UpstreamIPID         string
	ControllerWallet     string
	PayoutChain          string
	PayoutAddress        string
	UpstreamRoyaltyBps   int
	AttestationSignature string
	LicensePreset        string
}

// Service is the song registry's write path: it refuses to record any
// entry whose attestation signature does not recover to ControllerWallet,
// per spec §3.
type Service struct {
	store  *Store
	signer *typedsig.Signer
	log    *zap.Logger
}

func NewService(store *Store, chainID *big.Int, contractAddr common.Address, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		signer: typedsig.NewSigner(domainName, chainID, contractAddr),
		log:    log,
	}
}

func (s *Service) Insert(ctx context.Context, req InsertRequest) (*Entry, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(req.AttestationSignature, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode attestation signature: %w", err)
	}

	fields := entryFields(req.UpstreamIPID, req.PayoutChain, req.PayoutAddress, req.UpstreamRoyaltyBps)
	recovered, err := s.signer.Recover(sig, entryTypeSig, fields...)
	if err != nil {
		return nil, fmt.Errorf("recover attestation signer: %w", err)
	}
	if !strings.EqualFold(recovered.Hex(), req.ControllerWallet) {
		s.log.Warn("registry: attestation recovered to unexpected address",
			zap.String("expected", req.ControllerWallet), zap.String("recovered", recovered.Hex()))
		return nil, ErrAttestationMismatch
	}

	e := &Entry{
		SongID:               uuid.NewString(),
		Title:                req.Title,
		Artist:               req.Artist,
		UpstreamIPID:         req.UpstreamIPID,
		ControllerWallet:     req.ControllerWallet,
		PayoutChain:          req.PayoutChain,
		PayoutAddress:        req.PayoutAddress,
		UpstreamRoyaltyBps:   req.UpstreamRoyaltyBps,
		AttestationSignature: req.AttestationSignature,
		LicensePreset:        req.LicensePreset,
	}
	if err := s.store.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("save registry entry: %w", err)
	}
	return e, nil
}

func (s *Service) Search(ctx context.Context, q string) ([]*Entry, error) {
	return s.store.Search(ctx, q)
}

func entryFields(upstreamIPID, payoutChain, payoutAddress string, royaltyBps int) [][32]byte {
	return [][32]byte{
		typedsig.EncodeString(upstreamIPID),
		typedsig.EncodeString(payoutChain),
		typedsig.EncodeAddress(common.HexToAddress(payoutAddress)),
		typedsig.EncodeUint256(big.NewInt(int64(royaltyBps))),
	}
}
