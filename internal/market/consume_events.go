package market

import (
	"clob/internal/common"
	"clob/internal/state"
)

// ConsumeEvents drains up to MaxConsumeBatch unconsumed events, applying
// each one's balance transitions, then compacts the queue
// (SPEC_FULL.md §4.5). resolvable is the set of addresses the caller is
// able to resolve to a UserBalance this invocation — mirroring the
// account-list constraint the original on-chain instruction operates
// under. An event whose maker or taker is not in resolvable (or has never
// deposited) is silently skipped for that side; it is still counted as
// consumed. Returns the number of events consumed.
func (m *Market) ConsumeEvents(resolvable []common.Address) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[common.Address]bool, len(resolvable))
	for _, addr := range resolvable {
		allowed[addr] = true
	}
	resolve := func(addr common.Address) *state.UserBalance {
		if addr.IsZero() || !allowed[addr] {
			return nil
		}
		return m.balances[addr]
	}

	pending := m.Events.Pending()
	consumed := uint64(0)
	for i := 0; i < len(pending) && consumed < common.MaxConsumeBatch; i++ {
		e := pending[i]
		if !e.IsHole() {
			switch e.Type {
			case common.Fill:
				m.applyFill(e, resolve)
			case common.Out:
				m.applyOut(e, resolve)
			}
		}
		consumed++
	}

	m.Events.Compact(consumed)
	return int(consumed)
}

// applyFill applies a single Fill event's balance transitions
// (SPEC_FULL.md §4.2), including the self-trade unilateral-unlock case.
func (m *Market) applyFill(e state.Event, resolve func(common.Address) *state.UserBalance) {
	amt := quoteAmount(e.Quantity, e.Price)

	if e.Maker == e.Taker {
		// Both locks this one account holds against the trade — the
		// maker-side lock from the resting order and the taker-side lock
		// from the crossing order — are released; no pending_* movement
		// occurs (SPEC_FULL.md §4.5, §8 scenario 6).
		if bal := resolve(e.Taker); bal != nil {
			unlockBaseClamped(bal, e.Quantity)
			unlockQuoteClamped(bal, amt)
		}
		return
	}

	// The locked collateral is spent by the trade: it leaves locked_* and
	// the counter-asset is credited to pending_*, never back to available_*.
	if maker := resolve(e.Maker); maker != nil {
		switch e.Side {
		case common.Buy: // taker bought: maker was resting on the sell side
			maker.LockedBase -= min(maker.LockedBase, e.Quantity)
			maker.PendingQuote += amt
		case common.Sell: // taker sold: maker was resting on the buy side
			maker.LockedQuote -= min(maker.LockedQuote, amt)
			maker.PendingBase += e.Quantity
		}
	}

	if taker := resolve(e.Taker); taker != nil {
		switch e.Side {
		case common.Buy:
			taker.LockedQuote -= min(taker.LockedQuote, amt)
			taker.PendingBase += e.Quantity
		case common.Sell:
			taker.LockedBase -= min(taker.LockedBase, e.Quantity)
			taker.PendingQuote += amt
		}
	}
}

// applyOut applies a cancellation event's balance transition: the amount
// moves from locked to available only if the locked bucket still holds all
// of it, and the event is a no-op otherwise. Because CancelOrder already
// unlocked the same collateral synchronously, this is ordinarily a no-op
// (SPEC_FULL.md §4.2, §9).
func (m *Market) applyOut(e state.Event, resolve func(common.Address) *state.UserBalance) {
	maker := resolve(e.Maker)
	if maker == nil {
		return
	}
	switch e.Side {
	case common.Buy:
		if amt := quoteAmount(e.Quantity, e.Price); maker.LockedQuote >= amt {
			maker.UnlockQuote(amt)
		}
	case common.Sell:
		if maker.LockedBase >= e.Quantity {
			maker.UnlockBase(e.Quantity)
		}
	}
}
