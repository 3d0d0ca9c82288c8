package state

import (
	"fmt"

	"github.com/tidwall/btree"

	"clob/internal/common"
)

// orderSlot is an index entry mapping an order_id to its slot in the fixed
// Orders array. It exists purely as a lookup accelerator over the
// authoritative array — see SPEC_FULL.md §4.3, "Order-id index". Matching
// never consults it; the array itself is always authoritative.
type orderSlot struct {
	OrderID uint64
	Slot    int
}

func lessOrderSlot(a, b orderSlot) bool { return a.OrderID < b.OrderID }

// OrderBook is a fixed-capacity, insertion-order sequence of resting
// orders for one side of one market (SPEC_FULL.md §3, §4.3). It is
// deliberately NOT a price-sorted structure: matching scans Orders[0:ActiveCount]
// from the front, and removal is swap-with-tail compaction, so priority is
// FIFO-by-arrival only until the first removal reshuffles the tail.
type OrderBook struct {
	Market      common.Address
	Side        common.Side
	Orders      [common.MaxOrders]Order
	ActiveCount uint64

	index *btree.BTreeG[orderSlot]
}

// NewOrderBook returns an empty book for the given market and side.
func NewOrderBook(market common.Address, side common.Side) *OrderBook {
	b := &OrderBook{Market: market, Side: side}
	b.index = btree.NewBTreeG(lessOrderSlot)
	return b
}

// ensureIndex rebuilds the order-id index from the array, used after
// UnmarshalBinary has populated Orders/ActiveCount directly.
func (b *OrderBook) ensureIndex() {
	if b.index != nil {
		return
	}
	b.index = btree.NewBTreeG(lessOrderSlot)
	for i := uint64(0); i < b.ActiveCount; i++ {
		b.index.Set(orderSlot{OrderID: b.Orders[i].OrderID, Slot: int(i)})
	}
}

// Insert appends o as the new tail of the book. Fails with ErrBookFull if
// the book is at capacity (SPEC_FULL.md §4.3, precondition 2).
func (b *OrderBook) Insert(o Order) error {
	b.ensureIndex()
	if b.ActiveCount >= common.MaxOrders {
		return common.ErrBookFull
	}
	slot := int(b.ActiveCount)
	b.Orders[slot] = o
	b.ActiveCount++
	b.index.Set(orderSlot{OrderID: o.OrderID, Slot: slot})
	return nil
}

// RemoveAt removes the order at slot using swap-with-tail compaction: the
// order at ActiveCount-1 moves into slot, ActiveCount decrements, and the
// vacated tail slot is zeroed (SPEC_FULL.md §4.3). Returns the removed order.
func (b *OrderBook) RemoveAt(slot int) Order {
	b.ensureIndex()
	if b.ActiveCount == 0 || slot < 0 || uint64(slot) >= b.ActiveCount {
		panic(fmt.Sprintf("%v: order book remove out of range: slot %d active %d", common.ErrInvariantViolation, slot, b.ActiveCount))
	}
	removed := b.Orders[slot]
	last := int(b.ActiveCount - 1)
	b.index.Delete(orderSlot{OrderID: removed.OrderID})
	if slot != last {
		b.Orders[slot] = b.Orders[last]
		b.index.Set(orderSlot{OrderID: b.Orders[slot].OrderID, Slot: slot})
	}
	b.Orders[last] = Order{}
	b.ActiveCount--
	return removed
}

// FindByID returns the slot of the live order with the given order_id, if any.
func (b *OrderBook) FindByID(orderID uint64) (int, bool) {
	b.ensureIndex()
	entry, ok := b.index.Get(orderSlot{OrderID: orderID})
	if !ok {
		return 0, false
	}
	return entry.Slot, true
}

// PriceLevel is a read-only aggregation of the resting orders at one price,
// used only for the diagnostic depth view (SPEC_FULL.md §6.1) — never for
// matching.
type PriceLevel struct {
	Price    uint64
	Quantity uint64
	Orders   int
}

// Depth aggregates the live orders into price levels, sorted best-first
// (highest price first for a bid book, lowest first for an ask book). It is
// recomputed from the authoritative array on every call; the book itself
// carries no persistent price index.
func (b *OrderBook) Depth(levels int) []PriceLevel {
	b.ensureIndex()
	better := func(a, bPrice uint64) bool {
		if b.Side == common.Buy {
			return a > bPrice
		}
		return a < bPrice
	}
	tree := btree.NewBTreeG(func(x, y PriceLevel) bool { return better(x.Price, y.Price) })
	for i := uint64(0); i < b.ActiveCount; i++ {
		o := b.Orders[i]
		lvl, ok := tree.Get(PriceLevel{Price: o.Price})
		if !ok {
			lvl = PriceLevel{Price: o.Price}
		}
		lvl.Quantity += o.Remaining()
		lvl.Orders++
		tree.Set(lvl)
	}
	out := make([]PriceLevel, 0, levels)
	tree.Scan(func(lvl PriceLevel) bool {
		if len(out) >= levels {
			return false
		}
		out = append(out, lvl)
		return true
	})
	return out
}

// OrderBookHeaderLen is the fixed portion of the persisted OrderBook layout:
// market[32] | side[1] | active_count[8] (SPEC_FULL.md §6).
const OrderBookHeaderLen = common.AddressLen + 1 + 8

// OrderBookLen is the full packed size of an OrderBook record.
const OrderBookLen = OrderBookHeaderLen + common.MaxOrders*OrderLen

// MarshalBinary packs the OrderBook into its persisted layout: header
// (market, side, active_count) followed by the full MAX_ORDERS array,
// inactive slots included, so the layout has a fixed size regardless of
// occupancy (SPEC_FULL.md §6).
func (b *OrderBook) MarshalBinary() ([]byte, error) {
	buf := make([]byte, OrderBookLen)
	off := 0
	copy(buf[off:], b.Market[:])
	off += common.AddressLen
	buf[off] = byte(b.Side)
	off++
	putUint64(buf[off:], b.ActiveCount)
	off += 8
	for i := 0; i < common.MaxOrders; i++ {
		ob, err := b.Orders[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		copy(buf[off:], ob)
		off += OrderLen
	}
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary and rebuilds the order-id index.
func (b *OrderBook) UnmarshalBinary(buf []byte) error {
	if len(buf) < OrderBookLen {
		return fmt.Errorf("orderbook: short buffer: got %d want %d", len(buf), OrderBookLen)
	}
	off := 0
	copy(b.Market[:], buf[off:off+common.AddressLen])
	off += common.AddressLen
	b.Side = common.Side(buf[off])
	off++
	b.ActiveCount = getUint64(buf[off:])
	off += 8
	for i := 0; i < common.MaxOrders; i++ {
		if err := b.Orders[i].UnmarshalBinary(buf[off : off+OrderLen]); err != nil {
			return err
		}
		off += OrderLen
	}
	b.index = nil
	b.ensureIndex()
	return nil
}
