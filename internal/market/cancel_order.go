package market

import (
	"fmt"
	"time"

	"clob/internal/common"
	"clob/internal/state"
)

// CancelOrder removes caller's resting order, unlocks its collateral
// synchronously, and appends an Out event recording the removal
// (SPEC_FULL.md §4.4). Returns ErrOrderNotFound if no live order with that
// id belongs to caller on either side of the book.
func (m *Market) CancelOrder(caller common.Address, orderID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, book := range [2]*state.OrderBook{m.Bids, m.Asks} {
		slot, ok := book.FindByID(orderID)
		if !ok {
			continue
		}
		o := book.Orders[slot]
		if o.Owner != caller {
			continue
		}

		// Reject up front, before touching the book or the balance, if
		// the queue has no room left for the Out event this cancel must
		// record. A QueueFull discovered after RemoveAt/unlock would
		// otherwise leave the order gone and the collateral unlocked with
		// the cancellation never recorded — a partial commit on an
		// ordinary precondition failure (SPEC_FULL.md §7 kind 2), which
		// §4.3's failure-atomicity guarantee forbids.
		if m.Events.RemainingCapacity() < 1 {
			return common.ErrQueueFull
		}

		remaining := o.Remaining()
		bal := m.balanceFor(caller)
		switch o.Side {
		case common.Buy:
			unlockQuoteClamped(bal, quoteAmount(remaining, o.Price))
		case common.Sell:
			unlockBaseClamped(bal, remaining)
		}

		book.RemoveAt(slot)

		if err := m.Events.Append(state.Event{
			Type:         common.Out,
			Maker:        caller,
			Taker:        common.ZeroAddress,
			MakerOrderID: orderID,
			Quantity:     remaining,
			Price:        o.Price,
			Timestamp:    time.Now().Unix(),
			Side:         o.Side,
		}); err != nil {
			panic(fmt.Sprintf("%v: event append failed after capacity was pre-validated: %v", common.ErrInvariantViolation, err))
		}
		return nil
	}
	return common.ErrOrderNotFound
}
