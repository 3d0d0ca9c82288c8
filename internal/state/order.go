// Package state holds the matching engine's data model: Order, Event, the
// fixed-capacity OrderBook and EventQueue, MarketState and UserBalance, and
// the binary layouts SPEC_FULL.md §6 requires them to round-trip through.
package state

import (
	"encoding/binary"
	"fmt"

	"clob/internal/common"
)

// OrderLen is the packed size of an Order record (SPEC_FULL.md §6).
const OrderLen = 2*common.AddressLen + 8 + 8*4 + 1

// Order is a single resting (or just-placed) limit order.
type Order struct {
	OrderID        uint64
	Owner          common.Address
	Market         common.Address
	Side           common.Side
	Price          uint64
	Quantity       uint64
	FilledQuantity uint64
	Timestamp      int64
}

// Remaining returns the quantity not yet filled. A well-formed Order never
// has FilledQuantity exceed Quantity (SPEC_FULL.md §3), so this never
// underflows in practice.
func (o Order) Remaining() uint64 {
	if o.FilledQuantity > o.Quantity {
		panic(fmt.Sprintf("%v: order %d filled %d exceeds quantity %d", common.ErrInvariantViolation, o.OrderID, o.FilledQuantity, o.Quantity))
	}
	return o.Quantity - o.FilledQuantity
}

// IsZero reports whether o is a zeroed (inactive) book slot.
func (o Order) IsZero() bool {
	return o.OrderID == 0 && o.Side == 0
}

// MarshalBinary packs an Order into its 105-byte little-endian wire layout:
// owner[32] | market[32] | timestamp:int64 | order_id:uint64 | price:uint64
// | quantity:uint64 | filled_quantity:uint64 | side:uint8.
func (o Order) MarshalBinary() ([]byte, error) {
	buf := make([]byte, OrderLen)
	off := 0
	copy(buf[off:], o.Owner[:])
	off += common.AddressLen
	copy(buf[off:], o.Market[:])
	off += common.AddressLen
	binary.LittleEndian.PutUint64(buf[off:], uint64(o.Timestamp))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], o.OrderID)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], o.Price)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], o.Quantity)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], o.FilledQuantity)
	off += 8
	buf[off] = byte(o.Side)
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (o *Order) UnmarshalBinary(buf []byte) error {
	if len(buf) < OrderLen {
		return fmt.Errorf("order: short buffer: got %d want %d", len(buf), OrderLen)
	}
	off := 0
	copy(o.Owner[:], buf[off:off+common.AddressLen])
	off += common.AddressLen
	copy(o.Market[:], buf[off:off+common.AddressLen])
	off += common.AddressLen
	o.Timestamp = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	o.OrderID = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	o.Price = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	o.Quantity = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	o.FilledQuantity = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	o.Side = common.Side(buf[off])
	return nil
}
