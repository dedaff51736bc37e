package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/liverty-voice/controlplane/internal/typedsig"
)

// Mirrors the unexported constants internal/registry.Service signs against,
// so these tests can mint a valid attestation without reaching into that
// package's internals.
const (
	registryDomainName  = "Liverty Voice Song Registry"
	registryEntryTypeSig = "SongRegistryEntry(string upstreamIpId,string payoutChain,address payoutAddress,uint256 upstreamRoyaltyBps)"
)

func signRegistryEntry(t *testing.T, upstreamIPID, payoutChain, payoutAddress string, royaltyBps int) ([]byte, string) {
	t.Helper()
	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	controller := crypto.PubkeyToAddress(privKey.PublicKey)

	signer := typedsig.NewSigner(registryDomainName, big.NewInt(1), common.HexToAddress("0x4444444444444444444444444444444444444444"))
	fields := [][32]byte{
		typedsig.EncodeString(upstreamIPID),
		typedsig.EncodeString(payoutChain),
		typedsig.EncodeAddress(common.HexToAddress(payoutAddress)),
		typedsig.EncodeUint256(big.NewInt(int64(royaltyBps))),
	}
	sig, err := signer.Sign(privKey, registryEntryTypeSig, fields...)
	if err != nil {
		t.Fatal(err)
	}
	return sig, controller.Hex()
}

func TestSongsInsert_RequiresAdminBearer(t *testing.T) {
	router, _, _ := testServer(t)

	body, _ := json.Marshal(map[string]interface{}{"title": "x"})
	req := httptest.NewRequest(http.MethodPost, "/songs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an admin bearer, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSongsInsert_AcceptsValidAttestation(t *testing.T) {
	router, _, _ := testServer(t)

	sig, controller := signRegistryEntry(t, "ip-123", "base", "0x2222222222222222222222222222222222222222", 500)

	body, _ := json.Marshal(map[string]interface{}{
		"title":                 "Midnight Drive",
		"artist":                "The Analogs",
		"upstream_ip_id":        "ip-123",
		"controller_wallet":     controller,
		"payout_chain":          "base",
		"payout_address":        "0x2222222222222222222222222222222222222222",
		"upstream_royalty_bps":  500,
		"attestation_signature": "0x" + hex.EncodeToString(sig),
	})
	req := httptest.NewRequest(http.MethodPost, "/songs", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSongsInsert_RejectsAttestationMismatch(t *testing.T) {
	router, _, _ := testServer(t)

	sig, _ := signRegistryEntry(t, "ip-999", "base", "0x2222222222222222222222222222222222222222", 500)

	body, _ := json.Marshal(map[string]interface{}{
		"title":                 "Wrong Claim",
		"artist":                "Impostor",
		"upstream_ip_id":        "ip-999",
		"controller_wallet":     "0x9999999999999999999999999999999999999999",
		"payout_chain":          "base",
		"payout_address":        "0x2222222222222222222222222222222222222222",
		"upstream_royalty_bps":  500,
		"attestation_signature": "0x" + hex.EncodeToString(sig),
	})
	req := httptest.NewRequest(http.MethodPost, "/songs", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an attestation mismatch, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSongsSearch_ReturnsInsertedEntry(t *testing.T) {
	router, _, _ := testServer(t)

	sig, controller := signRegistryEntry(t, "ip-555", "base", "0x2222222222222222222222222222222222222222", 250)
	insertBody, _ := json.Marshal(map[string]interface{}{
		"title":                 "Harbor Lights",
		"artist":                "Nocturne",
		"upstream_ip_id":        "ip-555",
		"controller_wallet":     controller,
		"payout_chain":          "base",
		"payout_address":        "0x2222222222222222222222222222222222222222",
		"upstream_royalty_bps":  250,
		"attestation_signature": "0x" + hex.EncodeToString(sig),
	})
	insertReq := httptest.NewRequest(http.MethodPost, "/songs", bytes.NewReader(insertBody))
	insertReq.Header.Set("Authorization", "Bearer "+testAdminToken)
	insertW := httptest.NewRecorder()
	router.ServeHTTP(insertW, insertReq)
	if insertW.Code != http.StatusCreated {
		t.Fatalf("insert: expected 201, got %d: %s", insertW.Code, insertW.Body.String())
	}

	searchReq := httptest.NewRequest(http.MethodGet, "/songs/search?q=Harbor", nil)
	searchW := httptest.NewRecorder()
	router.ServeHTTP(searchW, searchReq)
	if searchW.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", searchW.Code, searchW.Body.String())
	}

	var resp struct {
		Results []struct {
			Title string `json:"title"`
		} `json:"results"`
	}
	if err := json.Unmarshal(searchW.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Title != "Harbor Lights" {
		t.Errorf("expected one result titled 'Harbor Lights', got %+v", resp.Results)
	}
}
