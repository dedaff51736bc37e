package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSetup creates a miniredis instance, a Redis client, and an
// Authenticator wired to a Gin engine guarded by SessionMiddleware.
func testSetup(t *testing.T) (*miniredis.Miniredis, *Authenticator, *gin.Engine) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewAuthenticator(rdb, "test-secret")

	r := gin.New()
	r.POST("/test", SessionMiddleware(a), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"wallet": Wallet(c)})
	})
	return mr, a, r
}

func signNonce(t *testing.T, nonce string) (string, []byte) {
	t.Helper()
	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	wallet := crypto.PubkeyToAddress(privKey.PublicKey).Hex()

	hash := HashMessage(NonceMessage(nonce))
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27
	return wallet, sig
}

func TestAuthenticator_FullFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewAuthenticator(rdb, "test-secret")

	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	wallet := crypto.PubkeyToAddress(privKey.PublicKey).Hex()

	nonce, err := a.RequestNonce(t.Context(), wallet)
	if err != nil {
		t.Fatal(err)
	}

	hash := HashMessage(NonceMessage(nonce))
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27

	token, err := a.VerifyAndMint(t.Context(), wallet, nonce, sig)
	if err != nil {
		t.Fatalf("VerifyAndMint: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty session token")
	}

	got, err := a.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if got != wallet {
		t.Errorf("got wallet %s, want %s", got, wallet)
	}
}

func TestAuthenticator_NonceUnknown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewAuthenticator(rdb, "test-secret")

	wallet, sig := signNonce(t, "never-issued")
	_, err := a.VerifyAndMint(t.Context(), wallet, "never-issued", sig)
	if err != ErrNonceUnknown {
		t.Fatalf("expected ErrNonceUnknown, got %v", err)
	}
}

func TestAuthenticator_InvalidSignature(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewAuthenticator(rdb, "test-secret")

	wallet, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	walletAddr := crypto.PubkeyToAddress(wallet.PublicKey).Hex()

	nonce, err := a.RequestNonce(t.Context(), walletAddr)
	if err != nil {
		t.Fatal(err)
	}

	// Sign with a different, unrelated key.
	_, badSig := signNonce(t, nonce)

	_, err = a.VerifyAndMint(t.Context(), walletAddr, nonce, badSig)
	if err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestAuthenticator_NonceConsumedOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewAuthenticator(rdb, "test-secret")

	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	wallet := crypto.PubkeyToAddress(privKey.PublicKey).Hex()

	nonce, err := a.RequestNonce(t.Context(), wallet)
	if err != nil {
		t.Fatal(err)
	}
	hash := HashMessage(NonceMessage(nonce))
	sig, _ := crypto.Sign(hash, privKey)
	sig[64] += 27

	if _, err := a.VerifyAndMint(t.Context(), wallet, nonce, sig); err != nil {
		t.Fatalf("first verify: %v", err)
	}

	// Replay with the same nonce+signature must fail: nonce was consumed.
	if _, err := a.VerifyAndMint(t.Context(), wallet, nonce, sig); err != ErrNonceUnknown {
		t.Fatalf("expected ErrNonceUnknown on replay, got %v", err)
	}
}

func TestAuthenticator_MostRecentNonceWins(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewAuthenticator(rdb, "test-secret")

	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	wallet := crypto.PubkeyToAddress(privKey.PublicKey).Hex()

	first, err := a.RequestNonce(t.Context(), wallet)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.RequestNonce(t.Context(), wallet); err != nil {
		t.Fatal(err)
	}

	hash := HashMessage(NonceMessage(first))
	sig, _ := crypto.Sign(hash, privKey)
	sig[64] += 27

	if _, err := a.VerifyAndMint(t.Context(), wallet, first, sig); err != ErrNonceUnknown {
		t.Fatalf("expected superseded first nonce to be unknown, got %v", err)
	}
}

func TestSessionMiddleware_ValidToken(t *testing.T) {
	_, a, r := testSetup(t)

	privKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	wallet := crypto.PubkeyToAddress(privKey.PublicKey).Hex()

	nonce, err := a.RequestNonce(t.Context(), wallet)
	if err != nil {
		t.Fatal(err)
	}
	hash := HashMessage(NonceMessage(nonce))
	sig, _ := crypto.Sign(hash, privKey)
	sig[64] += 27

	token, err := a.VerifyAndMint(t.Context(), wallet, nonce, sig)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSessionMiddleware_MissingHeader(t *testing.T) {
	_, _, r := testSetup(t)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSessionMiddleware_GarbageToken(t *testing.T) {
	_, _, r := testSetup(t)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSessionMiddleware_WrongSecretToken(t *testing.T) {
	_, _, r := testSetup(t)

	other := NewSessionSigner("a-different-secret")
	token, err := other.Mint("0xabc")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
