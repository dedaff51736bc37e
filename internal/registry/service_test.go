package registry

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/liverty-voice/controlplane/internal/typedsig"
)

var (
	testChainID      = big.NewInt(1)
	testContractAddr = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func TestInsert_AcceptsValidAttestation(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	log := zap.NewNop()
	svc := NewService(store, testChainID, testContractAddr, log)
	ctx := context.Background()

	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	controller := crypto.PubkeyToAddress(privKey.PublicKey)

	upstreamIPID := "ip-123"
	payoutChain := "base"
	payoutAddress := "0x2222222222222222222222222222222222222222"
	royaltyBps := 500

	signer := typedsig.NewSigner(domainName, testChainID, testContractAddr)
	fields := entryFields(upstreamIPID, payoutChain, payoutAddress, royaltyBps)
	sig, err := signer.Sign(privKey, entryTypeSig, fields...)
	if err != nil {
		t.Fatal(err)
	}

	req := InsertRequest{
		Title:                "Midnight Drive",
		Artist:               "The Analogs",
		UpstreamIPID:         upstreamIPID,
		ControllerWallet:     controller.Hex(),
		PayoutChain:          payoutChain,
		PayoutAddress:        payoutAddress,
		UpstreamRoyaltyBps:   royaltyBps,
		AttestationSignature: "0x" + hex.EncodeToString(sig),
	}

	entry, err := svc.Insert(ctx, req)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if entry.SongID == "" {
		t.Error("expected a generated song_id")
	}

	got, err := store.Get(ctx, entry.SongID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected entry persisted")
	}
	if got.ControllerWallet != controller.Hex() {
		t.Errorf("ControllerWallet: got %q want %q", got.ControllerWallet, controller.Hex())
	}
}

func TestInsert_RejectsSignatureFromWrongWallet(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	svc := NewService(store, testChainID, testContractAddr, zap.NewNop())
	ctx := context.Background()

	signerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	otherController, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	upstreamIPID := "ip-999"
	payoutChain := "base"
	payoutAddress := "0x2222222222222222222222222222222222222222"
	royaltyBps := 500

	signer := typedsig.NewSigner(domainName, testChainID, testContractAddr)
	fields := entryFields(upstreamIPID, payoutChain, payoutAddress, royaltyBps)
	sig, err := signer.Sign(signerKey, entryTypeSig, fields...)
	if err != nil {
		t.Fatal(err)
	}

	req := InsertRequest{
		Title:                "Wrong Claim",
		Artist:               "Impostor",
		UpstreamIPID:         upstreamIPID,
		ControllerWallet:     crypto.PubkeyToAddress(otherController.PublicKey).Hex(),
		PayoutChain:          payoutChain,
		PayoutAddress:        payoutAddress,
		UpstreamRoyaltyBps:   royaltyBps,
		AttestationSignature: "0x" + hex.EncodeToString(sig),
	}

	if _, err := svc.Insert(ctx, req); err != ErrAttestationMismatch {
		t.Fatalf("expected ErrAttestationMismatch, got %v", err)
	}
}

func TestInsert_RejectsTamperedField(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	svc := NewService(store, testChainID, testContractAddr, zap.NewNop())
	ctx := context.Background()

	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	controller := crypto.PubkeyToAddress(privKey.PublicKey)

	payoutChain := "base"
	payoutAddress := "0x2222222222222222222222222222222222222222"

	signer := typedsig.NewSigner(domainName, testChainID, testContractAddr)
	fields := entryFields("ip-123", payoutChain, payoutAddress, 500)
	sig, err := signer.Sign(privKey, entryTypeSig, fields...)
	if err != nil {
		t.Fatal(err)
	}

	// Royalty bps in the request doesn't match what was actually signed.
	req := InsertRequest{
		Title:                "Tampered",
		Artist:               "Someone",
		UpstreamIPID:         "ip-123",
		ControllerWallet:     controller.Hex(),
		PayoutChain:          payoutChain,
		PayoutAddress:        payoutAddress,
		UpstreamRoyaltyBps:   9999,
		AttestationSignature: "0x" + hex.EncodeToString(sig),
	}

	if _, err := svc.Insert(ctx, req); err != ErrAttestationMismatch {
		t.Fatalf("expected ErrAttestationMismatch for tampered field, got %v", err)
	}
}

func TestInsert_RejectsMalformedSignature(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	svc := NewService(store, testChainID, testContractAddr, zap.NewNop())
	ctx := context.Background()

	req := InsertRequest{
		Title:                "Broken",
		Artist:               "Nobody",
		UpstreamIPID:         "ip-1",
		ControllerWallet:     "0x1111111111111111111111111111111111111111",
		PayoutChain:          "base",
		PayoutAddress:        "0x2222222222222222222222222222222222222222",
		UpstreamRoyaltyBps:   100,
		AttestationSignature: "not-hex",
	}

	if _, err := svc.Insert(ctx, req); err == nil {
		t.Fatal("expected an error for a malformed signature")
	}
}

func TestSearch_DelegatesToStore(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	svc := NewService(store, testChainID, testContractAddr, zap.NewNop())
	ctx := context.Background()

	if err := store.Save(ctx, &Entry{SongID: "s1", Title: "Echoes", Artist: "Nobody"}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Search(ctx, "echo")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}
