// Package wire implements the TCP request/response framing described in
// SPEC_FULL.md §6.1: a 2-byte big-endian operation tag followed by a
// fixed-width, manually packed body, hand-rolled over encoding/binary
// rather than a generic serialization library.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"clob/internal/common"
)

var (
	ErrMessageTooShort = errors.New("message too short for its header")
	ErrUnknownOp        = errors.New("unknown operation tag")
)

// Op is the 2-byte operation tag at the front of every request.
type Op uint16

const (
	OpInitializeMarket Op = iota
	OpDepositBase
	OpDepositQuote
	OpPlaceOrder
	OpCancelOrder
	OpConsumeEvents
	OpSettleBalance
	OpLogBook
)

// InitializeMarketMessage carries an InitializeMarket request (SPEC_FULL.md
// §6): market[32] | base_mint[32] | quote_mint[32] | base_vault[32] |
// quote_vault[32] | admin[32] | consume_authority[32] | min_order_size:uint64
// | tick_size:uint64 | fee_rate_bps:uint64.
type InitializeMarketMessage struct {
	Market           common.Address
	BaseMint         common.Address
	QuoteMint        common.Address
	BaseVault        common.Address
	QuoteVault       common.Address
	Admin            common.Address
	ConsumeAuthority common.Address
	MinOrderSize     uint64
	TickSize         uint64
	FeeRateBps       uint64
}

const initializeMarketBodyLen = 7*common.AddressLen + 3*8

func (m InitializeMarketMessage) Serialize() []byte {
	buf := make([]byte, BaseHeaderLen+initializeMarketBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(OpInitializeMarket))
	off := 2
	for _, addr := range []common.Address{m.Market, m.BaseMint, m.QuoteMint, m.BaseVault, m.QuoteVault, m.Admin, m.ConsumeAuthority} {
		copy(buf[off:], addr[:])
		off += common.AddressLen
	}
	binary.BigEndian.PutUint64(buf[off:], m.MinOrderSize)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], m.TickSize)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], m.FeeRateBps)
	return buf
}

func parseInitializeMarket(body []byte) (InitializeMarketMessage, error) {
	if len(body) < initializeMarketBodyLen {
		return InitializeMarketMessage{}, ErrMessageTooShort
	}
	var m InitializeMarketMessage
	off := 0
	addrs := []*common.Address{&m.Market, &m.BaseMint, &m.QuoteMint, &m.BaseVault, &m.QuoteVault, &m.Admin, &m.ConsumeAuthority}
	for _, a := range addrs {
		copy(a[:], body[off:off+common.AddressLen])
		off += common.AddressLen
	}
	m.MinOrderSize = binary.BigEndian.Uint64(body[off:])
	off += 8
	m.TickSize = binary.BigEndian.Uint64(body[off:])
	off += 8
	m.FeeRateBps = binary.BigEndian.Uint64(body[off:])
	return m, nil
}

// LogBookMessage carries a LogBook (order book depth) request:
// side:uint8 | levels:uint16.
type LogBookMessage struct {
	Side   common.Side
	Levels uint16
}

const logBookBodyLen = 1 + 2

func (m LogBookMessage) Serialize() []byte {
	buf := make([]byte, BaseHeaderLen+logBookBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(OpLogBook))
	buf[2] = byte(m.Side)
	binary.BigEndian.PutUint16(buf[3:5], m.Levels)
	return buf
}

func parseLogBook(body []byte) (LogBookMessage, error) {
	if len(body) < logBookBodyLen {
		return LogBookMessage{}, ErrMessageTooShort
	}
	return LogBookMessage{Side: common.Side(body[0]), Levels: binary.BigEndian.Uint16(body[1:3])}, nil
}

// BaseHeaderLen is the shared 2-byte operation tag every request starts with.
const BaseHeaderLen = 2

// DepositMessage carries a DepositBase/DepositQuote request: owner[32] | quantity:uint64.
type DepositMessage struct {
	Owner    common.Address
	Quantity uint64
}

const depositBodyLen = common.AddressLen + 8

func (m DepositMessage) Serialize(op Op) []byte {
	buf := make([]byte, BaseHeaderLen+depositBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(op))
	copy(buf[2:2+common.AddressLen], m.Owner[:])
	binary.BigEndian.PutUint64(buf[2+common.AddressLen:], m.Quantity)
	return buf
}

func parseDeposit(body []byte) (DepositMessage, error) {
	if len(body) < depositBodyLen {
		return DepositMessage{}, ErrMessageTooShort
	}
	var m DepositMessage
	copy(m.Owner[:], body[0:common.AddressLen])
	m.Quantity = binary.BigEndian.Uint64(body[common.AddressLen:])
	return m, nil
}

// PlaceOrderMessage carries a PlaceOrder request:
// owner[32] | side:uint8 | price:uint64 | quantity:uint64.
type PlaceOrderMessage struct {
	Owner    common.Address
	Side     common.Side
	Price    uint64
	Quantity uint64
}

const placeOrderBodyLen = common.AddressLen + 1 + 8 + 8

func (m PlaceOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseHeaderLen+placeOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(OpPlaceOrder))
	off := 2
	copy(buf[off:off+common.AddressLen], m.Owner[:])
	off += common.AddressLen
	buf[off] = byte(m.Side)
	off++
	binary.BigEndian.PutUint64(buf[off:], m.Price)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], m.Quantity)
	return buf
}

func parsePlaceOrder(body []byte) (PlaceOrderMessage, error) {
	if len(body) < placeOrderBodyLen {
		return PlaceOrderMessage{}, ErrMessageTooShort
	}
	var m PlaceOrderMessage
	off := 0
	copy(m.Owner[:], body[off:off+common.AddressLen])
	off += common.AddressLen
	m.Side = common.Side(body[off])
	off++
	m.Price = binary.BigEndian.Uint64(body[off:])
	off += 8
	m.Quantity = binary.BigEndian.Uint64(body[off:])
	return m, nil
}

// CancelOrderMessage carries a CancelOrder request: owner[32] | order_id:uint64.
type CancelOrderMessage struct {
	Owner   common.Address
	OrderID uint64
}

const cancelOrderBodyLen = common.AddressLen + 8

func (m CancelOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseHeaderLen+cancelOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(OpCancelOrder))
	copy(buf[2:2+common.AddressLen], m.Owner[:])
	binary.BigEndian.PutUint64(buf[2+common.AddressLen:], m.OrderID)
	return buf
}

func parseCancelOrder(body []byte) (CancelOrderMessage, error) {
	if len(body) < cancelOrderBodyLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	var m CancelOrderMessage
	copy(m.Owner[:], body[0:common.AddressLen])
	m.OrderID = binary.BigEndian.Uint64(body[common.AddressLen:])
	return m, nil
}

// SettleBalanceMessage carries a SettleBalance request: owner[32], with no
// further payload.
type SettleBalanceMessage struct {
	Owner common.Address
}

func (m SettleBalanceMessage) Serialize() []byte {
	buf := make([]byte, BaseHeaderLen+common.AddressLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(OpSettleBalance))
	copy(buf[2:], m.Owner[:])
	return buf
}

func parseSettleBalance(body []byte) (SettleBalanceMessage, error) {
	if len(body) < common.AddressLen {
		return SettleBalanceMessage{}, ErrMessageTooShort
	}
	var m SettleBalanceMessage
	copy(m.Owner[:], body[0:common.AddressLen])
	return m, nil
}

// ConsumeEventsMessage carries the resolvable-account list the keeper or an
// authority can vouch for: count:uint16 | owner[32] * count.
type ConsumeEventsMessage struct {
	Resolvable []common.Address
}

func (m ConsumeEventsMessage) Serialize() []byte {
	buf := make([]byte, BaseHeaderLen+2+len(m.Resolvable)*common.AddressLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(OpConsumeEvents))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(m.Resolvable)))
	off := 4
	for _, addr := range m.Resolvable {
		copy(buf[off:], addr[:])
		off += common.AddressLen
	}
	return buf
}

func parseConsumeEvents(body []byte) (ConsumeEventsMessage, error) {
	if len(body) < 2 {
		return ConsumeEventsMessage{}, ErrMessageTooShort
	}
	count := int(binary.BigEndian.Uint16(body[0:2]))
	want := 2 + count*common.AddressLen
	if len(body) < want {
		return ConsumeEventsMessage{}, ErrMessageTooShort
	}
	m := ConsumeEventsMessage{Resolvable: make([]common.Address, count)}
	off := 2
	for i := 0; i < count; i++ {
		copy(m.Resolvable[i][:], body[off:off+common.AddressLen])
		off += common.AddressLen
	}
	return m, nil
}

// Request is the parsed form of any inbound message, tagged by Op.
type Request struct {
	Op               Op
	InitializeMarket InitializeMarketMessage
	Deposit          DepositMessage
	PlaceOrder       PlaceOrderMessage
	CancelOrder      CancelOrderMessage
	SettleBalance    SettleBalanceMessage
	ConsumeEvents    ConsumeEventsMessage
	LogBook          LogBookMessage
}

// Parse reads the operation tag and dispatches to the matching body parser.
func Parse(raw []byte) (Request, error) {
	if len(raw) < BaseHeaderLen {
		return Request{}, ErrMessageTooShort
	}
	op := Op(binary.BigEndian.Uint16(raw[0:2]))
	body := raw[BaseHeaderLen:]

	switch op {
	case OpInitializeMarket:
		m, err := parseInitializeMarket(body)
		return Request{Op: op, InitializeMarket: m}, err
	case OpDepositBase, OpDepositQuote:
		m, err := parseDeposit(body)
		return Request{Op: op, Deposit: m}, err
	case OpPlaceOrder:
		m, err := parsePlaceOrder(body)
		return Request{Op: op, PlaceOrder: m}, err
	case OpCancelOrder:
		m, err := parseCancelOrder(body)
		return Request{Op: op, CancelOrder: m}, err
	case OpSettleBalance:
		m, err := parseSettleBalance(body)
		return Request{Op: op, SettleBalance: m}, err
	case OpConsumeEvents:
		m, err := parseConsumeEvents(body)
		return Request{Op: op, ConsumeEvents: m}, err
	case OpLogBook:
		m, err := parseLogBook(body)
		return Request{Op: op, LogBook: m}, err
	default:
		return Request{}, fmt.Errorf("%w: %d", ErrUnknownOp, op)
	}
}

// ReportKind distinguishes a successful execution report, an error report
// and a depth (LogBook) report.
type ReportKind uint8

const (
	ReportExecution ReportKind = iota
	ReportError
	ReportDepth
)

// PriceLevel mirrors state.PriceLevel for the wire, so this package does not
// need to import the domain state package just to describe a LogBook reply.
type PriceLevel struct {
	Price    uint64
	Quantity uint64
	Orders   uint32
}

// Report is pushed back to a connection after a request is handled: a
// fixed header followed by either an error tail (ReportError) or a price
// level tail (ReportDepth).
type Report struct {
	Kind     ReportKind
	OrderID  uint64
	ErrorMsg string
	Levels   []PriceLevel
}

const reportFixedLen = 1 + 8 + 2
const priceLevelLen = 8 + 8 + 4

// Serialize packs a Report for the wire: kind:uint8 | order_id:uint64 |
// tail_len:uint16 | tail. For ReportError, tail is the error string. For
// ReportDepth, tail is tail_len/priceLevelLen fixed-width PriceLevel
// records, each price:uint64 | quantity:uint64 | orders:uint32.
func (r Report) Serialize() []byte {
	if r.Kind == ReportDepth {
		tail := make([]byte, len(r.Levels)*priceLevelLen)
		off := 0
		for _, lvl := range r.Levels {
			binary.BigEndian.PutUint64(tail[off:], lvl.Price)
			binary.BigEndian.PutUint64(tail[off+8:], lvl.Quantity)
			binary.BigEndian.PutUint32(tail[off+16:], lvl.Orders)
			off += priceLevelLen
		}
		buf := make([]byte, reportFixedLen+len(tail))
		buf[0] = byte(r.Kind)
		binary.BigEndian.PutUint64(buf[1:9], r.OrderID)
		binary.BigEndian.PutUint16(buf[9:11], uint16(len(tail)))
		copy(buf[reportFixedLen:], tail)
		return buf
	}

	buf := make([]byte, reportFixedLen+len(r.ErrorMsg))
	buf[0] = byte(r.Kind)
	binary.BigEndian.PutUint64(buf[1:9], r.OrderID)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(r.ErrorMsg)))
	copy(buf[reportFixedLen:], r.ErrorMsg)
	return buf
}
