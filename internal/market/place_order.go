package market

import (
	"context"
	"fmt"
	"time"

	"clob/internal/common"
	"clob/internal/state"
)

// simulateFillCount replays the crossing loop's matching logic — including
// its swap-with-tail removal of fully-filled makers — against a scratch
// copy of opposite's active orders, and returns how many Fill events a real
// PlaceOrder call with these parameters would append. It mutates nothing
// real; opposite and its Orders array are left untouched.
func simulateFillCount(opposite *state.OrderBook, side common.Side, price, quantity uint64) int {
	activeCount := opposite.ActiveCount
	scratch := make([]state.Order, activeCount)
	copy(scratch, opposite.Orders[:activeCount])

	remaining := quantity
	fills := 0
	i := uint64(0)
	for i < activeCount && remaining > 0 {
		maker := scratch[i]

		var crosses bool
		if side == common.Buy {
			crosses = price >= maker.Price
		} else {
			crosses = price <= maker.Price
		}
		if !crosses {
			i++
			continue
		}

		fillQty := min(remaining, maker.Remaining())
		scratch[i].FilledQuantity += fillQty
		remaining -= fillQty
		fills++

		if scratch[i].FilledQuantity >= scratch[i].Quantity {
			last := activeCount - 1
			scratch[i] = scratch[last]
			activeCount--
			continue
		}
		i++
	}
	return fills
}

// PlaceOrder locks the taker's full collateral, walks the opposite book in
// insertion order filling whatever crosses, and rests any residual
// quantity as a new resting order (SPEC_FULL.md §4.3). It returns the new
// resting order's id, or 0 if the order filled completely and nothing was
// rested.
//
// Collateral is locked and pulled into the vault before the book is
// touched. If a residual later fails to rest (ErrBookFull), the fills that
// already happened against makers stand: once a trade is recorded and a
// vault transfer has gone through, it cannot be unwound, the same
// constraint the original program is built under. This is a deliberate,
// narrow exception to "all-or-nothing" and is documented rather than
// silently accepted.
func (m *Market) PlaceOrder(ctx context.Context, owner common.Address, side common.Side, price, quantity uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if price == 0 || quantity == 0 || (side != common.Buy && side != common.Sell) {
		return 0, common.ErrInvalidInstructionData
	}

	quoteAmt, err := checkedQuoteAmount(quantity, price)
	if err != nil {
		return 0, err
	}
	if side == common.Buy && quoteAmt == 0 {
		return 0, common.ErrZeroQuoteAmount
	}

	bal := m.balanceFor(owner)

	var required uint64
	switch side {
	case common.Buy:
		required = quoteAmt
		if err := bal.LockQuote(required); err != nil {
			return 0, err
		}
	case common.Sell:
		required = quantity
		if err := bal.LockBase(required); err != nil {
			return 0, err
		}
	}

	var transferErr error
	if side == common.Buy {
		transferErr = m.quoteLedger.Transfer(ctx, owner, m.state.QuoteVault, required)
	} else {
		transferErr = m.baseLedger.Transfer(ctx, owner, m.state.BaseVault, required)
	}
	if transferErr != nil {
		if side == common.Buy {
			bal.UnlockQuote(required)
		} else {
			bal.UnlockBase(required)
		}
		return 0, transferErr
	}

	opposite := m.Asks
	if side == common.Sell {
		opposite = m.Bids
	}

	// Every maker this crossing loop touches appends exactly one Fill
	// event, so the loop can run out of queue capacity partway through —
	// an ordinary precondition failure (SPEC_FULL.md §7 kind 2), not
	// corruption. Count how many fills the real pass would produce against
	// a scratch copy of the book before mutating anything for real, and
	// reject up front if the queue can't hold that many. Without this, a
	// QueueFull discovered mid-loop would leave already-matched makers
	// debited or removed with no event recorded for them, and no unwind of
	// the taker's lock and vault transfer above — exactly the partial
	// commit §4.3's failure-atomicity guarantee forbids.
	plannedFills := simulateFillCount(opposite, side, price, quantity)
	if uint64(plannedFills) > m.Events.RemainingCapacity() {
		m.refundLock(ctx, owner, side, bal, required)
		return 0, common.ErrQueueFull
	}

	now := time.Now().Unix()
	remaining := quantity
	i := uint64(0)
	for i < opposite.ActiveCount && remaining > 0 {
		maker := opposite.Orders[i]

		var crosses bool
		if side == common.Buy {
			crosses = price >= maker.Price
		} else {
			crosses = price <= maker.Price
		}
		if !crosses {
			i++
			continue
		}

		fillQty := min(remaining, maker.Remaining())
		opposite.Orders[i].FilledQuantity += fillQty
		remaining -= fillQty

		if err := m.Events.Append(state.Event{
			Type:         common.Fill,
			Maker:        maker.Owner,
			Taker:        owner,
			MakerOrderID: maker.OrderID,
			Quantity:     fillQty,
			Price:        maker.Price,
			Timestamp:    now,
			Side:         side,
		}); err != nil {
			// simulateFillCount already proved the queue has room for
			// every fill this loop can produce; reaching capacity here
			// means the simulation and the real loop disagreed.
			panic(fmt.Sprintf("%v: event append failed after capacity was pre-validated: %v", common.ErrInvariantViolation, err))
		}

		if opposite.Orders[i].FilledQuantity >= opposite.Orders[i].Quantity {
			opposite.RemoveAt(int(i))
			continue
		}
		i++
	}

	if remaining == 0 {
		return 0, nil
	}

	own := m.Bids
	if side == common.Sell {
		own = m.Asks
	}

	orderID := m.state.AllocateOrderID()
	if err := own.Insert(state.Order{
		OrderID:   orderID,
		Owner:     owner,
		Market:    m.state.Market,
		Side:      side,
		Price:     price,
		Quantity:  remaining,
		Timestamp: now,
	}); err != nil {
		// Nothing crossed (remaining == quantity), so this failure is fully
		// reversible: give back the lock and the vault transfer.
		if remaining == quantity {
			m.refundLock(ctx, owner, side, bal, required)
		}
		return 0, err
	}
	return orderID, nil
}

// refundLock reverses a lock-and-vault-transfer that PlaceOrder performed
// up front, once it's established nothing crossed against that
// collateral. The vault-side transfer back to owner is best-effort: if it
// fails, the locked funds are still returned to available_*, and the
// vault simply holds a balance not currently accounted to any locked
// order — better than leaving owner's funds stranded in locked state.
func (m *Market) refundLock(ctx context.Context, owner common.Address, side common.Side, bal *state.UserBalance, required uint64) {
	if side == common.Buy {
		bal.UnlockQuote(required)
		_ = m.quoteLedger.Transfer(ctx, m.state.QuoteVault, owner, required)
	} else {
		bal.UnlockBase(required)
		_ = m.baseLedger.Transfer(ctx, m.state.BaseVault, owner, required)
	}
}
