package sweeper

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liverty-voice/controlplane/internal/room"
	"github.com/liverty-voice/controlplane/internal/typedsig"
)

// attestationTypeSig is the EIP-712 struct signature for a session
// settlement summary, spec §4.6: {room_id, host, guest?,
// total_live_entitlements, total_replay_entitlements, blob_ref}.
const attestationTypeSig = "SessionAttestation(string roomId,address host,address guest,uint256 totalLiveEntitlements,uint256 totalReplayEntitlements,bytes32 blobRefHash)"

// Attestation is the signed settlement intent the sweeper hands to the
// external oracle.
type Attestation struct {
	RoomID                  string
	Host                    common.Address
	Guest                   common.Address
	TotalLiveEntitlements   *big.Int
	TotalReplayEntitlements *big.Int
	BlobRef                 string
	Signature               []byte
}

func (a *Attestation) fields() [][32]byte {
	return [][32]byte{
		typedsig.EncodeString(a.RoomID),
		typedsig.EncodeAddress(a.Host),
		typedsig.EncodeAddress(a.Guest),
		typedsig.EncodeUint256(a.TotalLiveEntitlements),
		typedsig.EncodeUint256(a.TotalReplayEntitlements),
		typedsig.EncodeString(a.BlobRef),
	}
}

// buildAttestation assembles the session summary from a durable room row.
// A room with no guest bound attests with the zero address.
func buildAttestation(r *room.Room) *Attestation {
	var guest common.Address
	if r.GuestWallet != "" {
		guest = common.HexToAddress(r.GuestWallet)
	}
	return &Attestation{
		RoomID:                  r.RoomID,
		Host:                    common.HexToAddress(r.Host),
		Guest:                   guest,
		TotalLiveEntitlements:   big.NewInt(r.TotalLiveEntitlements),
		TotalReplayEntitlements: big.NewInt(r.TotalReplayEntitlements),
		BlobRef:                 r.BlobRef,
	}
}

func signAttestation(signer *typedsig.Signer, a *Attestation, privKey *ecdsa.PrivateKey) error {
	sig, err := signer.Sign(privKey, attestationTypeSig, a.fields()...)
	if err != nil {
		return err
	}
	a.Signature = sig
	return nil
}

// Verify recovers the signer address from a, for tests and external
// pre-verification.
func Verify(signer *typedsig.Signer, a *Attestation) (common.Address, error) {
	return signer.Recover(a.Signature, attestationTypeSig, a.fields()...)
}
