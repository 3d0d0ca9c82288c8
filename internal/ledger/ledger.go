// Package ledger provides the abstract token-transfer boundary that
// settlement (SPEC_FULL.md §4.6) drains pending balances through. The
// matching engine never touches wallet funds directly; it moves amounts
// between the available/locked/pending buckets of a UserBalance, and calls
// into a TokenLedger to pull deposits and order collateral from a wallet
// into a vault and, at settlement time, to pay pending amounts back out.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"clob/internal/common"
)

// TokenLedger moves amount of some asset from one address to another. The
// matching engine is agnostic to what backs it: an SPL-token-style vault,
// a database column, or — as here — an in-memory map.
type TokenLedger interface {
	Transfer(ctx context.Context, from, to common.Address, amount uint64) error
}

// MemoryLedger is a TokenLedger backed by a single in-process map of
// per-address balances, keyed with no notion of asset: callers that need
// to keep base and quote separate run two MemoryLedger instances (one per
// mint), mirroring the two-vault-account model of SPEC_FULL.md §3.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[common.Address]uint64
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[common.Address]uint64)}
}

// Credit seeds addr with amount, for deposits and test fixtures. It never
// fails; there is no notion of a "from" account.
func (l *MemoryLedger) Credit(addr common.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] += amount
}

// Balance returns addr's current balance.
func (l *MemoryLedger) Balance(addr common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// Transfer moves amount from from to to. Fails without mutating state if
// from's balance is insufficient.
func (l *MemoryLedger) Transfer(ctx context.Context, from, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return fmt.Errorf("ledger: %s has %d, cannot transfer %d: %w", from, l.balances[from], amount, common.ErrInsufficientFunds)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
