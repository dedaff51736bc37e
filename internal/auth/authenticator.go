package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidSignature is returned when a signature does not recover to the
// claimed wallet address.
var ErrInvalidSignature = errors.New("invalid_signature")

// NonceMessage is the canonical payload a wallet signs to prove control of
// an address: the issued nonce and nothing else. Keeping this minimal (vs.
// the teacher's richer SignedRequest envelope) matches spec §4.1, which only
// ever verifies a nonce-bearing message, not a full action payload — request
// binding for individual actions is handled downstream by the session token
// and each handler's own input, not by this signature.
func NonceMessage(nonce string) []byte {
	return []byte(fmt.Sprintf("Sign in to liverty-voice\nnonce: %s", nonce))
}

// Authenticator implements C1: nonce issuance, EIP-191 verification, and
// session-token minting.
type Authenticator struct {
	nonces *NonceStore
	signer *SessionSigner
}

func NewAuthenticator(rdb *redis.Client, sessionSecret string) *Authenticator {
	return &Authenticator{
		nonces: NewNonceStore(rdb),
		signer: NewSessionSigner(sessionSecret),
	}
}

// RequestNonce issues a fresh nonce for wallet.
func (a *Authenticator) RequestNonce(ctx context.Context, wallet string) (string, error) {
	return a.nonces.Issue(ctx, wallet)
}

// VerifyAndMint recovers the signer of sig over the nonce message, confirms
// it matches wallet, consumes the nonce, and mints a session token.
//
// The nonce is deleted only after the signature check passes: consuming it
// on a failed check would let an attacker burn a legitimate nonce just by
// guessing at it, forcing the real wallet to request a new one.
func (a *Authenticator) VerifyAndMint(ctx context.Context, wallet, nonce string, sig []byte) (string, error) {
	msg := NonceMessage(nonce)
	recovered, err := Recover(msg, sig)
	if err != nil {
		return "", ErrInvalidSignature
	}
	if !strings.EqualFold(recovered.Hex(), wallet) {
		return "", ErrInvalidSignature
	}

	if err := a.nonces.Consume(ctx, wallet, nonce); err != nil {
		return "", err
	}

	return a.signer.Mint(wallet)
}

// VerifySession validates a bearer session token and returns the bound
// wallet address.
func (a *Authenticator) VerifySession(token string) (string, error) {
	return a.signer.Verify(token)
}
