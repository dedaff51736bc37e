package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNonceUnknown is returned when a wallet has no outstanding nonce, it was
// already consumed, or its TTL elapsed. Redis does not distinguish an
// expired key from one that never existed, which matches spec's requirement
// to never leak which of the two conditions applies to the caller.
var ErrNonceUnknown = errors.New("nonce_unknown")

const nonceTTL = 5 * time.Minute

// NonceStore issues single-use, most-recent-wins nonces per wallet.
type NonceStore struct {
	rdb *redis.Client
}

func NewNonceStore(rdb *redis.Client) *NonceStore {
	return &NonceStore{rdb: rdb}
}

func nonceKey(wallet string) string {
	return "auth:nonce:" + strings.ToLower(wallet)
}

// Issue generates a fresh random nonce for wallet and persists it, replacing
// any prior unconsumed nonce for that wallet (most-recent wins).
func (s *NonceStore) Issue(ctx context.Context, wallet string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	if err := s.rdb.Set(ctx, nonceKey(wallet), nonce, nonceTTL).Err(); err != nil {
		return "", fmt.Errorf("persist nonce: %w", err)
	}
	return nonce, nil
}

// Consume validates that nonce is the current outstanding value for wallet
// and deletes it. It must only be called after the caller has independently
// verified the signature recovers to wallet — consuming on a failed
// signature check would let an attacker burn a legitimate nonce by guessing.
func (s *NonceStore) Consume(ctx context.Context, wallet, nonce string) error {
	key := nonceKey(wallet)
	got, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNonceUnknown
	}
	if err != nil {
		return fmt.Errorf("read nonce: %w", err)
	}
	if got != nonce {
		return ErrNonceUnknown
	}

	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete nonce: %w", err)
	}
	return nil
}
