package state

import (
	"fmt"

	"clob/internal/common"
)

// BalanceLen is the packed size of a UserBalance record (SPEC_FULL.md §6):
// owner[32] | market[32] | six uint64 buckets.
const BalanceLen = 2*common.AddressLen + 8*6

// UserBalance is one user's six-bucket accounting state for one market:
// funds available to lock, funds locked against a resting order, and funds
// pending a TokenLedger transfer after a fill (SPEC_FULL.md §3).
type UserBalance struct {
	Owner  common.Address
	Market common.Address

	AvailableBase  uint64
	AvailableQuote uint64
	LockedBase     uint64
	LockedQuote    uint64
	PendingBase    uint64
	PendingQuote   uint64
}

// NewUserBalance returns a zeroed balance record for owner in market.
func NewUserBalance(owner, market common.Address) *UserBalance {
	return &UserBalance{Owner: owner, Market: market}
}

// HasPending reports whether either pending bucket is non-zero, i.e.
// whether Settle has anything to do (SPEC_FULL.md §4.6).
func (b *UserBalance) HasPending() bool {
	return b.PendingBase != 0 || b.PendingQuote != 0
}

// LockBase moves amount from AvailableBase to LockedBase. Returns
// ErrInsufficientFunds if AvailableBase is short.
func (b *UserBalance) LockBase(amount uint64) error {
	if b.AvailableBase < amount {
		return common.ErrInsufficientFunds
	}
	b.AvailableBase -= amount
	b.LockedBase += amount
	return nil
}

// LockQuote moves amount from AvailableQuote to LockedQuote. Returns
// ErrInsufficientFunds if AvailableQuote is short.
func (b *UserBalance) LockQuote(amount uint64) error {
	if b.AvailableQuote < amount {
		return common.ErrInsufficientFunds
	}
	b.AvailableQuote -= amount
	b.LockedQuote += amount
	return nil
}

// UnlockBase releases amount from LockedBase back to AvailableBase. Per
// SPEC_FULL.md §4.2, callers that may race with a prior synchronous unlock
// (the Out-event path) must check or clamp amount against LockedBase rather
// than relying on this panicking; this method enforces the invariant that
// LockedBase never goes negative.
func (b *UserBalance) UnlockBase(amount uint64) {
	if amount > b.LockedBase {
		panic(fmt.Sprintf("%v: unlock base %d exceeds locked %d", common.ErrInvariantViolation, amount, b.LockedBase))
	}
	b.LockedBase -= amount
	b.AvailableBase += amount
}

// UnlockQuote releases amount from LockedQuote back to AvailableQuote. See
// UnlockBase for the clamping contract.
func (b *UserBalance) UnlockQuote(amount uint64) {
	if amount > b.LockedQuote {
		panic(fmt.Sprintf("%v: unlock quote %d exceeds locked %d", common.ErrInvariantViolation, amount, b.LockedQuote))
	}
	b.LockedQuote -= amount
	b.AvailableQuote += amount
}

// MarshalBinary packs the UserBalance into its 112-byte little-endian wire
// layout: owner[32] | market[32] | available_base | available_quote |
// locked_base | locked_quote | pending_base | pending_quote (each uint64).
func (b *UserBalance) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BalanceLen)
	off := 0
	copy(buf[off:], b.Owner[:])
	off += common.AddressLen
	copy(buf[off:], b.Market[:])
	off += common.AddressLen
	for _, v := range []uint64{b.AvailableBase, b.AvailableQuote, b.LockedBase, b.LockedQuote, b.PendingBase, b.PendingQuote} {
		putUint64(buf[off:], v)
		off += 8
	}
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (b *UserBalance) UnmarshalBinary(buf []byte) error {
	if len(buf) < BalanceLen {
		return fmt.Errorf("balance: short buffer: got %d want %d", len(buf), BalanceLen)
	}
	off := 0
	copy(b.Owner[:], buf[off:off+common.AddressLen])
	off += common.AddressLen
	copy(b.Market[:], buf[off:off+common.AddressLen])
	off += common.AddressLen
	b.AvailableBase = getUint64(buf[off:])
	off += 8
	b.AvailableQuote = getUint64(buf[off:])
	off += 8
	b.LockedBase = getUint64(buf[off:])
	off += 8
	b.LockedQuote = getUint64(buf[off:])
	off += 8
	b.PendingBase = getUint64(buf[off:])
	off += 8
	b.PendingQuote = getUint64(buf[off:])
	return nil
}
