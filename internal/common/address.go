// Package common holds the domain primitives shared by the state, market,
// wire and server packages: account addresses, order sides, event types,
// the fixed-point scale factor, and the sentinel errors the rest of the
// tree returns.
package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// AddressLen is the width of an Address, matching the on-chain pubkey this
// system's account model descends from.
const AddressLen = 32

// Address identifies an account: a user, a vault, an authority, or the
// market itself. It is a fixed 32-byte value so Order, Event and UserBalance
// records stay flat and addressable (§6 of SPEC_FULL.md).
type Address [AddressLen]byte

// ZeroAddress is the sentinel absent-account value: an Out event's taker, or
// a lookup miss in a balance set.
var ZeroAddress Address

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return hex.EncodeToString(a[:4]) + "…" + hex.EncodeToString(a[len(a)-4:])
}

// AddressFromSeed deterministically derives an Address from an arbitrary
// label. It exists for tests and CLI tooling that want stable, readable
// identities ("alice", "bob", "base-vault") without standing up a real
// key-management flow, which is explicitly out of scope (SPEC_FULL.md §1).
func AddressFromSeed(seed string) Address {
	sum := sha256.Sum256([]byte(seed))
	var a Address
	copy(a[:], sum[:])
	return a
}
