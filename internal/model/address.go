// Package model defines the domain types shared by every layer of the
// registry: addresses, code hashes, badges, contract instances, and the
// events they emit. Plain values with no behaviour beyond derivation
// and validation helpers.
package model

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Address is an opaque cryptographic identity, encoded as lowercase hex.
//
// Account addresses are the hex encoding of an ed25519 public key
// (32 bytes → 64 hex characters). Contract addresses are derived
// deterministically from the deploying triple, see DeriveContractAddress.
// Either way an address is 64 hex characters; nothing outside the auth
// package ever looks inside one.
type Address string

// CodeHash identifies a registered contract implementation, the
// equivalent of an uploaded bytecode hash on a real ledger.
type CodeHash string

// Salt is a caller-supplied uniqueness value. The same (deployer,
// code hash, salt) triple always derives the same contract address, so
// reusing a salt is a collision, not an overwrite.
type Salt string

// addressLen is the hex length of both account and contract addresses.
const addressLen = 64

// DeriveContractAddress computes the address of a contract deployed by
// `deployer` from code `code` with uniqueness value `salt`.
//
// The derivation is sha3-256 over a domain-separated concatenation of
// the triple. Deterministic by design: deploying the same triple twice
// must collide rather than mint a second instance.
func DeriveContractAddress(deployer Address, code CodeHash, salt Salt) Address {
	h := sha3.New256()
	h.Write([]byte("contract\x00"))
	h.Write([]byte(deployer))
	h.Write([]byte{0})
	h.Write([]byte(code))
	h.Write([]byte{0})
	h.Write([]byte(salt))
	return Address(hex.EncodeToString(h.Sum(nil)))
}

// DeriveCodeHash computes the identity of a contract implementation
// from its kind and version. This stands in for the hash a ledger would
// assign to uploaded bytecode: stable, content-addressed, and usable as
// a map key in the code registry.
func DeriveCodeHash(kind string, version uint32) CodeHash {
	h := sha3.New256()
	fmt.Fprintf(h, "code\x00%s\x00%d", kind, version)
	return CodeHash(hex.EncodeToString(h.Sum(nil)))
}

// Valid reports whether a is a well-formed address: exactly 64 lowercase
// hex characters. It says nothing about whether anything lives there.
func (a Address) Valid() bool {
	if len(a) != addressLen {
		return false
	}
	b, err := hex.DecodeString(string(a))
	return err == nil && len(b) == addressLen/2
}

// Valid reports whether h is a well-formed code hash (same shape as an
// address: 32 bytes of hex).
func (h CodeHash) Valid() bool {
	return Address(h).Valid()
}
