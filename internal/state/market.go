package state

import "clob/internal/common"

// MarketState is the in-memory configuration and counters for a single
// trading pair. Unlike Order, Event, OrderBook and EventQueue it has no
// persisted binary layout (SPEC_FULL.md §6 does not list it among the
// packed records); it is rebuilt from its constructor arguments whenever a
// Market aggregate is created.
type MarketState struct {
	Market      common.Address
	BaseMint    common.Address
	QuoteMint   common.Address
	BaseVault   common.Address
	QuoteVault  common.Address

	MinOrderSize uint64
	TickSize     uint64
	FeeRateBps   uint64

	NextOrderID uint64

	AdminAuthority         common.Address
	ConsumeEventsAuthority common.Address

	// LastPrice and Volume24h are carried over from the original program's
	// state layout. Neither the distilled spec nor this implementation
	// assigns them behavior; they exist so future instrumentation has a
	// place to land without a schema change.
	LastPrice uint64
	Volume24h uint64
}

// NewMarketState constructs a market's configuration with NextOrderID
// seeded at 1 (order_id 0 is reserved to mean "no order" throughout the
// book and index). Rejects a zero TickSize or MinOrderSize with
// ErrInvalidInstructionData (SPEC_FULL.md §7 kind 1, InitializeMarket's
// input validation) — either would let every order price or quantity
// round to a degenerate value downstream.
func NewMarketState(market, baseMint, quoteMint, baseVault, quoteVault common.Address, minOrderSize, tickSize, feeRateBps uint64, admin, consumeAuthority common.Address) (*MarketState, error) {
	if tickSize == 0 || minOrderSize == 0 {
		return nil, common.ErrInvalidInstructionData
	}
	return &MarketState{
		Market:                 market,
		BaseMint:               baseMint,
		QuoteMint:              quoteMint,
		BaseVault:              baseVault,
		QuoteVault:             quoteVault,
		MinOrderSize:           minOrderSize,
		TickSize:               tickSize,
		FeeRateBps:             feeRateBps,
		NextOrderID:            1,
		AdminAuthority:         admin,
		ConsumeEventsAuthority: consumeAuthority,
	}, nil
}

// AllocateOrderID returns the next unique order_id and advances the
// counter. Order ids are unique and monotonically increasing for the life
// of the market (SPEC_FULL.md §8).
func (m *MarketState) AllocateOrderID() uint64 {
	id := m.NextOrderID
	m.NextOrderID++
	return id
}
