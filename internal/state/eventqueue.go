package state

import (
	"fmt"

	"clob/internal/common"
)

// EventQueue (MarketEvents in SPEC_FULL.md §3/§6) is the append-only,
// fixed-capacity log of fills and cancels for a market, with a consumer
// cursor expressed as EventsToProcess.
type EventQueue struct {
	Market          common.Address
	Events          [common.MaxEvents]Event
	Count           uint64 // total ever appended; never decremented
	SeqNum          uint64 // strictly monotonic across the market's life
	EventsToProcess uint64 // <= Count; the unconsumed prefix length
}

// NewEventQueue returns an empty queue for the given market.
func NewEventQueue(market common.Address) *EventQueue {
	return &EventQueue{Market: market}
}

// Append adds e to the tail of the queue, stamping it with the next
// SeqNum. Fails with ErrQueueFull at capacity (SPEC_FULL.md §4.7).
func (q *EventQueue) Append(e Event) error {
	if q.Count >= common.MaxEvents {
		return common.ErrQueueFull
	}
	q.SeqNum++
	e.SeqNum = q.SeqNum
	q.Events[q.Count] = e
	q.Count++
	q.EventsToProcess++
	return nil
}

// RemainingCapacity returns how many more events Append can accept before
// ErrQueueFull. Callers that are about to perform several mutations each
// needing their own event (a crossing PlaceOrder, a CancelOrder) check
// this against their worst-case event count up front, so a
// precondition-failure reject per SPEC_FULL.md §7 kind 2 never happens
// after mutation has already started (§4.3, "failure atomicity").
func (q *EventQueue) RemainingCapacity() uint64 {
	return common.MaxEvents - q.Count
}

// Pending returns the unconsumed prefix of the queue, in enqueue order. The
// caller (EventConsumer, SPEC_FULL.md §4.5) decides how much of it to apply
// and then calls Compact with however many it actually consumed.
func (q *EventQueue) Pending() []Event {
	return q.Events[:q.EventsToProcess]
}

// Compact removes the first n events from the unconsumed prefix by
// left-shifting the remainder down to index 0, and decrements
// EventsToProcess by n (SPEC_FULL.md §4.5). Count is untouched: only
// EventsToProcess is semantically meaningful after consumption.
func (q *EventQueue) Compact(n uint64) {
	if n == 0 {
		return
	}
	if n > q.EventsToProcess {
		panic(fmt.Sprintf("%v: compacting %d events but only %d pending", common.ErrInvariantViolation, n, q.EventsToProcess))
	}
	remaining := q.EventsToProcess - n
	for i := uint64(0); i < remaining; i++ {
		q.Events[i] = q.Events[i+n]
	}
	for i := remaining; i < q.EventsToProcess; i++ {
		q.Events[i] = Event{}
	}
	q.EventsToProcess = remaining
}

// EventQueueHeaderLen is the fixed portion of the persisted MarketEvents
// layout: market[32] | count[8] | seq_num[8] | events_to_process[8].
const EventQueueHeaderLen = common.AddressLen + 8 + 8 + 8

// EventQueueLen is the full packed size of a MarketEvents record.
const EventQueueLen = EventQueueHeaderLen + common.MaxEvents*EventLen

// MarshalBinary packs the EventQueue into its persisted layout.
func (q *EventQueue) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EventQueueLen)
	off := 0
	copy(buf[off:], q.Market[:])
	off += common.AddressLen
	putUint64(buf[off:], q.Count)
	off += 8
	putUint64(buf[off:], q.SeqNum)
	off += 8
	putUint64(buf[off:], q.EventsToProcess)
	off += 8
	for i := 0; i < common.MaxEvents; i++ {
		eb, err := q.Events[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		copy(buf[off:], eb)
		off += EventLen
	}
	return buf, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (q *EventQueue) UnmarshalBinary(buf []byte) error {
	if len(buf) < EventQueueLen {
		return fmt.Errorf("eventqueue: short buffer: got %d want %d", len(buf), EventQueueLen)
	}
	off := 0
	copy(q.Market[:], buf[off:off+common.AddressLen])
	off += common.AddressLen
	q.Count = getUint64(buf[off:])
	off += 8
	q.SeqNum = getUint64(buf[off:])
	off += 8
	q.EventsToProcess = getUint64(buf[off:])
	off += 8
	for i := 0; i < common.MaxEvents; i++ {
		if err := q.Events[i].UnmarshalBinary(buf[off : off+EventLen]); err != nil {
			return err
		}
		off += EventLen
	}
	return nil
}
