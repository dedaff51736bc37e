package paymentgate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeTTL = 15 * time.Minute

// Gate implements C4: it mints 402 challenges, verifies the client's
// payment-signature envelope against the live challenge, and records
// entitlements. Challenges follow the teacher's session.go HSet/HGetAll-per-record
// idiom (internal/billing/session.go); entitlement and signature-replay
// records are plain string keys with a TTL.
type Gate struct {
	rdb      *redis.Client
	verifier PaymentVerifier
}

func New(rdb *redis.Client, verifier PaymentVerifier) *Gate {
	if verifier == nil {
		verifier = PermissiveVerifier{}
	}
	return &Gate{rdb: rdb, verifier: verifier}
}

func challengeKey(resource string) string {
	return "paygate:challenge:" + resource
}

func replayKey(resource, sigHeader string) string {
	sum := sha256.Sum256([]byte(sigHeader))
	return "paygate:replay:" + resource + ":" + hex.EncodeToString(sum[:])
}

func entitlementKey(room, segmentID, wallet, scope string) string {
	return fmt.Sprintf("paygate:entitlement:%s:%s:%s:%s", room, segmentID, strings.ToLower(wallet), scope)
}

// Challenge persists the live challenge for resource and returns the
// envelope to base64-encode into the PAYMENT-REQUIRED header.
func (g *Gate) Challenge(ctx context.Context, resource, price, asset, network, payTo string, extensions map[string]string) (ChallengeEnvelope, error) {
	env := ChallengeEnvelope{
		Resource:   resource,
		Amount:     price,
		Asset:      asset,
		Network:    network,
		PayTo:      payTo,
		Extensions: extensions,
	}
	fields := map[string]interface{}{
		"amount":  price,
		"asset":   asset,
		"network": network,
		"payTo":   payTo,
	}
	key := challengeKey(resource)
	if err := g.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return ChallengeEnvelope{}, fmt.Errorf("persist challenge: %w", err)
	}
	if err := g.rdb.Expire(ctx, key, challengeTTL).Err(); err != nil {
		return ChallengeEnvelope{}, fmt.Errorf("set challenge ttl: %w", err)
	}
	return env, nil
}

// VerifyAndGrant validates the client's PAYMENT-SIGNATURE envelope against
// the live challenge for resource, records an entitlement on success, and
// returns the PAYMENT-RESPONSE header value.
func (g *Gate) VerifyAndGrant(ctx context.Context, resource, room, segmentID, wallet, scope, sigHeader string, accessWindowMinutes int64) (string, error) {
	sig, err := DecodeSignature(sigHeader)
	if err != nil {
		return "", fmt.Errorf("invalid_payment_signature: %w", err)
	}

	challenge, err := g.rdb.HGetAll(ctx, challengeKey(resource)).Result()
	if err != nil {
		return "", fmt.Errorf("read challenge: %w", err)
	}
	if len(challenge) == 0 {
		return "", fmt.Errorf("invalid_payment_signature: no live challenge for resource")
	}

	if sig.Resource != resource {
		return "", fmt.Errorf("invalid_payment_signature: resource mismatch")
	}
	if !strings.EqualFold(sig.Wallet, wallet) {
		return "", fmt.Errorf("invalid_payment_signature: wallet mismatch")
	}
	if sig.PayTo != challenge["payTo"] || sig.Amount != challenge["amount"] ||
		sig.Asset != challenge["asset"] || sig.Network != challenge["network"] {
		return "", fmt.Errorf("invalid_payment_signature: terms mismatch")
	}

	// Replay check: this (resource, signature) pair may only ever be bound
	// to one wallet. The same wallet replaying is an idempotent success (no
	// duplicate entitlement row); a different wallet replaying is rejected.
	rKey := replayKey(resource, sigHeader)
	prevWallet, err := g.rdb.Get(ctx, rKey).Result()
	if err != nil && err != redis.Nil {
		return "", fmt.Errorf("read replay record: %w", err)
	}
	alreadyGranted := err == nil
	if alreadyGranted && !strings.EqualFold(prevWallet, wallet) {
		return "", fmt.Errorf("invalid_payment_signature: signature already bound to a different wallet")
	}

	if !alreadyGranted {
		if err := g.verifier.VerifyProof(ctx, sig); err != nil {
			return "", fmt.Errorf("invalid_payment_signature: %w", err)
		}

		expiresAt := time.Now().Add(time.Duration(accessWindowMinutes) * time.Minute).Unix()
		eKey := entitlementKey(room, segmentID, wallet, scope)
		if err := g.rdb.Set(ctx, eKey, strconv.FormatInt(expiresAt, 10), time.Duration(accessWindowMinutes)*time.Minute).Err(); err != nil {
			return "", fmt.Errorf("persist entitlement: %w", err)
		}
		if err := g.rdb.Set(ctx, rKey, wallet, challengeTTL).Err(); err != nil {
			return "", fmt.Errorf("persist replay record: %w", err)
		}
	}

	return EncodeResponse(ResponseEnvelope{Resource: resource})
}

// HasEntitlement reports whether wallet already holds a live entitlement
// for {room, segment, scope}, short-circuiting a re-enter without a fresh
// signature.
func (g *Gate) HasEntitlement(ctx context.Context, room, segmentID, wallet, scope string) (bool, error) {
	exists, err := g.rdb.Exists(ctx, entitlementKey(room, segmentID, wallet, scope)).Result()
	if err != nil {
		return false, fmt.Errorf("read entitlement: %w", err)
	}
	return exists > 0, nil
}
