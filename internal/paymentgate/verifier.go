package paymentgate

import (
	"context"
	"fmt"
	"strings"
)

// PaymentVerifier is the seam between the gate's field-matching logic and
// whatever settles payment proofs on-chain. The gate only ever checks that
// the client's envelope matches the live challenge — it never itself
// validates the wallet cryptography behind Proof. A production deployment
// would swap in a verifier backed by the settlement oracle; tests and local
// development use PermissiveVerifier.
type PaymentVerifier interface {
	// VerifyProof is called after the gate's own field matching succeeds.
	// Returning an error rejects the payment outright.
	VerifyProof(ctx context.Context, sig SignatureEnvelope) error
}

// PermissiveVerifier accepts any non-empty proof string. It exists so the
// room/duet flows can be exercised end to end without a live settlement
// oracle; the field-matching invariants in Gate.VerifyAndGrant (resource,
// wallet, payTo, amount, asset, network, replay) still apply regardless of
// which PaymentVerifier is wired in.
type PermissiveVerifier struct{}

func (PermissiveVerifier) VerifyProof(_ context.Context, sig SignatureEnvelope) error {
	if strings.TrimSpace(sig.Proof) == "" {
		return fmt.Errorf("empty payment proof")
	}
	return nil
}
