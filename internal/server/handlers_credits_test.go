package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liverty-voice/controlplane/internal/ledger"
)

func TestCreditsBalance_ReturnsZeroForUnknownWallet(t *testing.T) {
	router, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/credits/balance", nil)
	req.Header.Set("Authorization", bearerFor("0xWallet"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Remaining int64 `json:"remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", resp.Remaining)
	}
}

func TestCreditsBalance_ReflectsTopups(t *testing.T) {
	router, _, rdb := testServer(t)

	l := ledger.New(rdb)
	if err := l.Topup(context.Background(), "0xWallet", 120, "topup:1"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/credits/balance", nil)
	req.Header.Set("Authorization", bearerFor("0xWallet"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Remaining int64 `json:"remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Remaining != 120 {
		t.Errorf("expected 120 remaining, got %d", resp.Remaining)
	}
}

func TestCreditsBalance_RejectsMissingSession(t *testing.T) {
	router, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/credits/balance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
