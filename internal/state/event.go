package state

import (
	"encoding/binary"
	"fmt"

	"clob/internal/common"
)

// EventLen is the packed size of an Event record (SPEC_FULL.md §6).
const EventLen = 2*common.AddressLen + 8 + 8*3 + 1 + 1

// Event records either a trade (Fill) or an order removal without a trade
// (Out). For Out, Taker is the zero Address and Side is the cancelled
// order's side.
type Event struct {
	SeqNum       uint64
	Type         common.EventType
	Maker        common.Address
	Taker        common.Address
	MakerOrderID uint64
	Quantity     uint64
	Price        uint64
	Timestamp    int64
	Side         common.Side
}

// IsHole reports whether the event is the skip sentinel described in
// SPEC_FULL.md §4.5: both maker and taker are the zero Address.
func (e Event) IsHole() bool {
	return e.Maker.IsZero() && e.Taker.IsZero()
}

// MarshalBinary packs an Event into its 98-byte little-endian wire layout:
// maker[32] | taker[32] | timestamp:int64 | maker_order_id:uint64 |
// quantity:uint64 | price:uint64 | event_type:uint8 | side:uint8.
//
// SeqNum is queue-position metadata, not part of the persisted record, and
// is not included in this layout.
func (e Event) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EventLen)
	off := 0
	copy(buf[off:], e.Maker[:])
	off += common.AddressLen
	copy(buf[off:], e.Taker[:])
	off += common.AddressLen
	binary.LittleEndian.PutUint64(buf[off:], uint64(e.Timestamp))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.MakerOrderID)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.Quantity)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.Price)
	off += 8
	buf[off] = byte(e.Type)
	off++
	buf[off] = byte(e.Side)
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (e *Event) UnmarshalBinary(buf []byte) error {
	if len(buf) < EventLen {
		return fmt.Errorf("event: short buffer: got %d want %d", len(buf), EventLen)
	}
	off := 0
	copy(e.Maker[:], buf[off:off+common.AddressLen])
	off += common.AddressLen
	copy(e.Taker[:], buf[off:off+common.AddressLen])
	off += common.AddressLen
	e.Timestamp = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	e.MakerOrderID = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.Quantity = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.Price = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.Type = common.EventType(buf[off])
	off++
	e.Side = common.Side(buf[off])
	return nil
}
