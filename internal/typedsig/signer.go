// Package typedsig implements the EIP-712 domain-separated struct-hash-
// then-sign technique, factored out of the teacher's voucher-specific
// domainSeparator/hashVoucher pair (internal/voucher/eip712.go) into a
// reusable signer so every typed-data signer in this codebase — the
// attestation sweeper's settlement summary, the song registry's
// controller-wallet attestation — shares one implementation instead of
// each hand-rolling its own struct hash.
package typedsig

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var domainTypeHash = crypto.Keccak256Hash([]byte(
	"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
))

// Signer binds one EIP-712 domain (name, chain, verifying contract) and
// signs/recovers over arbitrary struct shapes, each identified by its own
// type signature string (e.g. "Foo(address a,uint256 b)") and an ordered
// list of already word-encoded fields.
type Signer struct {
	nameHash     [32]byte
	versionHash  [32]byte
	chainID      *big.Int
	contractAddr common.Address
}

func NewSigner(domainName string, chainID *big.Int, contractAddr common.Address) *Signer {
	return &Signer{
		nameHash:     crypto.Keccak256Hash([]byte(domainName)),
		versionHash:  crypto.Keccak256Hash([]byte("1")),
		chainID:      chainID,
		contractAddr: contractAddr,
	}
}

func (s *Signer) domainSeparator() [32]byte {
	encoded := make([]byte, 5*32)
	copy(encoded[0:32], domainTypeHash[:])
	copy(encoded[32:64], s.nameHash[:])
	copy(encoded[64:96], s.versionHash[:])
	s.chainID.FillBytes(encoded[96:128])
	copy(encoded[140:160], s.contractAddr.Bytes())
	return crypto.Keccak256Hash(encoded)
}

// StructHash hashes typeSig together with the caller's already-encoded
// 32-byte field words, in declaration order.
func (s *Signer) StructHash(typeSig string, fields ...[32]byte) [32]byte {
	typeHash := crypto.Keccak256Hash([]byte(typeSig))
	encoded := make([]byte, (1+len(fields))*32)
	copy(encoded[0:32], typeHash[:])
	for i, f := range fields {
		copy(encoded[(i+1)*32:(i+2)*32], f[:])
	}
	return crypto.Keccak256Hash(encoded)
}

// Digest is the final EIP-191-wrapped ("\x19\x01" || domainSeparator ||
// structHash) hash that gets signed.
func (s *Signer) Digest(typeSig string, fields ...[32]byte) [32]byte {
	structHash := s.StructHash(typeSig, fields...)
	sep := s.domainSeparator()

	msg := make([]byte, 2+32+32)
	msg[0] = 0x19
	msg[1] = 0x01
	copy(msg[2:34], sep[:])
	copy(msg[34:66], structHash[:])
	return crypto.Keccak256Hash(msg)
}

// Sign signs the digest with privKey, normalizing the recovery id to
// Solidity's ecrecover convention (27/28).
func (s *Signer) Sign(privKey *ecdsa.PrivateKey, typeSig string, fields ...[32]byte) ([]byte, error) {
	digest := s.Digest(typeSig, fields...)
	sig, err := crypto.Sign(digest[:], privKey)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// Recover returns the address that produced sig over the same type
// signature and fields.
func (s *Signer) Recover(sig []byte, typeSig string, fields ...[32]byte) (common.Address, error) {
	digest := s.Digest(typeSig, fields...)
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
