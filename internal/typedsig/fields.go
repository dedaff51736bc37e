package typedsig

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EncodeAddress right-aligns an address within its 32-byte word, the way
// Solidity's abi.encode does.
func EncodeAddress(a common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], a.Bytes())
	return out
}

// EncodeUint256 left-pads v within its 32-byte word.
func EncodeUint256(v *big.Int) [32]byte {
	var out [32]byte
	v.FillBytes(out[:])
	return out
}

// EncodeString hashes a dynamic "string" or "bytes" field, per EIP-712's
// encodeData rule for non-atomic types.
func EncodeString(s string) [32]byte {
	return crypto.Keccak256Hash([]byte(s))
}

// EncodeBytes32 passes a fixed-size bytes32 field through unchanged.
func EncodeBytes32(b [32]byte) [32]byte {
	return b
}
